package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyStore rejects its first n appends, n being failures.
type flakyStore struct {
	mu       sync.Mutex
	failures int
	calls    int
	stored   []Entry
}

func (s *flakyStore) Append(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return errors.New("broker unavailable")
	}
	s.stored = append(s.stored, e)
	return nil
}

func TestWorker_DrainsInboxUntilClosed(t *testing.T) {
	store := NewInMemoryStore()
	inbox := make(chan Entry, 3)
	inbox <- Entry{IssuedNumber: "NSSF000001"}
	inbox <- Entry{IssuedNumber: "NSSF000002"}
	inbox <- Entry{IssuedNumber: "NSSF000003"}
	close(inbox)

	err := NewWorker(store, inbox, discardLogger()).Run(context.Background())
	require.NoError(t, err)

	entries, err := store.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "NSSF000003", entries[2].IssuedNumber)
}

func TestWorker_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewWorker(NewInMemoryStore(), make(chan Entry), discardLogger()).Run(ctx)
	}()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestWorker_ContinuesAfterFailures(t *testing.T) {
	store := &flakyStore{failures: 4}
	inbox := make(chan Entry, 6)
	for _, n := range []string{"NSSF000001", "NSSF000002", "NSSF000003", "NSSF000004", "NSSF000005", "NSSF000006"} {
		inbox <- Entry{IssuedNumber: n}
	}
	close(inbox)

	w := NewWorker(store, inbox, discardLogger())
	require.NoError(t, w.Run(context.Background()))

	assert.Equal(t, 6, store.calls, "every entry is attempted while the breaker is open")
	require.Len(t, store.stored, 2, "failed entries are dropped")
	assert.Equal(t, "NSSF000005", store.stored[0].IssuedNumber)
	assert.False(t, w.breaker.IsOpen(), "a success closes the breaker")
}
