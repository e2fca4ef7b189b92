package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseverify/internal/cases/models"
	dErrors "caseverify/pkg/domain-errors"
)

func neverTaken(context.Context, string) (bool, error) {
	return false, nil
}

func TestNumberGenerator_Random(t *testing.T) {
	g := newNumberGenerator(NumberFormatRandom)
	c := &models.Case{IndividualNumber: "UGA-00000001"}

	for range 200 {
		number, err := g.next(context.Background(), c, time.Now(), neverTaken)
		require.NoError(t, err)
		assert.Regexp(t, `^NSSF[1-9]\d{5}$`, number)
	}
}

func TestNumberGenerator_RetriesTakenCandidates(t *testing.T) {
	values := []int64{111111, 222222, 333333}
	g := &numberGenerator{format: NumberFormatRandom, digits: func() (int64, error) {
		v := values[0]
		values = values[1:]
		return v, nil
	}}
	taken := map[string]bool{"NSSF111111": true, "NSSF222222": true}

	var checked []string
	number, err := g.next(context.Background(), &models.Case{}, time.Now(), func(_ context.Context, n string) (bool, error) {
		checked = append(checked, n)
		return taken[n], nil
	})
	require.NoError(t, err)
	assert.Equal(t, "NSSF333333", number)
	assert.Equal(t, []string{"NSSF111111", "NSSF222222", "NSSF333333"}, checked)
}

func TestNumberGenerator_Exhausted(t *testing.T) {
	g := newNumberGenerator(NumberFormatRandom)
	attempts := 0

	_, err := g.next(context.Background(), &models.Case{}, time.Now(), func(context.Context, string) (bool, error) {
		attempts++
		return true, nil
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeStorageFailure))
	assert.Equal(t, maxNumberAttempts, attempts)
}

func TestNumberGenerator_RandomSourceFailure(t *testing.T) {
	g := &numberGenerator{format: NumberFormatRandom, digits: func() (int64, error) {
		return 0, errors.New("entropy unavailable")
	}}

	_, err := g.next(context.Background(), &models.Case{}, time.Now(), neverTaken)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
}

func TestNumberGenerator_Timestamp(t *testing.T) {
	g := newNumberGenerator(NumberFormatTimestamp)
	c := &models.Case{IndividualNumber: "UGA-00004821"}
	now := time.Date(2025, 7, 9, 14, 3, 22, 0, time.UTC)

	t.Run("uses time and identifier tail", func(t *testing.T) {
		number, err := g.next(context.Background(), c, now, neverTaken)
		require.NoError(t, err)
		assert.Equal(t, "NSSF-20250709140322-4821", number)
	})

	t.Run("same-second collision gets a suffix", func(t *testing.T) {
		number, err := g.next(context.Background(), c, now, func(_ context.Context, n string) (bool, error) {
			return n == "NSSF-20250709140322-4821", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "NSSF-20250709140322-4821-1", number)
	})

	t.Run("short identifiers are used whole", func(t *testing.T) {
		number, err := g.next(context.Background(), &models.Case{IndividualNumber: "AB"}, now, neverTaken)
		require.NoError(t, err)
		assert.Equal(t, "NSSF-20250709140322-AB", number)
	})
}

func TestParseNumberFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    NumberFormat
		wantErr bool
	}{
		{in: "", want: NumberFormatRandom},
		{in: "random", want: NumberFormatRandom},
		{in: "timestamp", want: NumberFormatTimestamp},
		{in: "sequential", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseNumberFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
