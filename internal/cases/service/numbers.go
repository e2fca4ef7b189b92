package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"caseverify/internal/cases/models"
	dErrors "caseverify/pkg/domain-errors"
)

// NumberFormat selects how issued numbers are derived.
type NumberFormat string

const (
	// NumberFormatRandom yields NSSF followed by six random digits.
	NumberFormatRandom NumberFormat = "random"
	// NumberFormatTimestamp yields NSSF-YYYYMMDDHHMMSS-XXXX where XXXX is the
	// tail of the individual number.
	NumberFormatTimestamp NumberFormat = "timestamp"
)

// ParseNumberFormat accepts the configured format name; empty means random.
func ParseNumberFormat(s string) (NumberFormat, error) {
	switch NumberFormat(s) {
	case "", NumberFormatRandom:
		return NumberFormatRandom, nil
	case NumberFormatTimestamp:
		return NumberFormatTimestamp, nil
	}
	return "", fmt.Errorf("unknown issued number format %q", s)
}

const (
	maxNumberAttempts = 64
	randomNumberMin   = 100000
	randomNumberSpan  = 900000
	suffixLength      = 4
)

var errNumberSpaceExhausted = dErrors.New(dErrors.CodeStorageFailure, "issued number space exhausted")

type existsFunc func(ctx context.Context, number string) (bool, error)

type numberGenerator struct {
	format NumberFormat
	digits func() (int64, error)
}

func newNumberGenerator(format NumberFormat) *numberGenerator {
	return &numberGenerator{format: format, digits: cryptoDigits}
}

func cryptoDigits() (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(randomNumberSpan))
	if err != nil {
		return 0, err
	}
	return n.Int64() + randomNumberMin, nil
}

// next returns a candidate that exists reports as unused.
func (g *numberGenerator) next(ctx context.Context, c *models.Case, now time.Time, exists existsFunc) (string, error) {
	for attempt := range maxNumberAttempts {
		candidate, err := g.candidate(c, now, attempt)
		if err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate issued number")
		}
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to check issued number")
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", errNumberSpaceExhausted
}

func (g *numberGenerator) candidate(c *models.Case, now time.Time, attempt int) (string, error) {
	if g.format == NumberFormatTimestamp {
		base := fmt.Sprintf("NSSF-%s-%s", now.Format("20060102150405"), tail(c.IndividualNumber, suffixLength))
		if attempt == 0 {
			return base, nil
		}
		return fmt.Sprintf("%s-%d", base, attempt), nil
	}
	n, err := g.digits()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("NSSF%06d", n), nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
