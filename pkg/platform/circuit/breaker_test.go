package circuit

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failN(b *Breaker, n int) (useFallback bool, change StateChange) {
	for range n {
		useFallback, change = b.RecordFailure()
	}
	return useFallback, change
}

func succeedN(b *Breaker, n int) (usePrimary bool, change StateChange) {
	for range n {
		usePrimary, change = b.RecordSuccess()
	}
	return usePrimary, change
}

func TestBreaker(t *testing.T) {
	t.Run("starts closed with defaults", func(t *testing.T) {
		b := New("ratelimit-redis")
		assert.Equal(t, "ratelimit-redis", b.Name())
		assert.Equal(t, StateClosed, b.State())
		assert.Equal(t, "closed", b.State().String())

		useFallback, _ := failN(b, 4)
		assert.False(t, useFallback, "default threshold is five failures")
		useFallback, change := b.RecordFailure()
		assert.True(t, useFallback)
		assert.True(t, change.Opened)
		assert.Equal(t, "open", b.State().String())
	})

	t.Run("opens only on the threshold failure", func(t *testing.T) {
		b := New("store", WithFailureThreshold(2))

		useFallback, change := b.RecordFailure()
		assert.False(t, useFallback)
		assert.False(t, change.Opened)

		useFallback, change = b.RecordFailure()
		assert.True(t, useFallback)
		assert.True(t, change.Opened)

		useFallback, change = b.RecordFailure()
		assert.True(t, useFallback, "stays on the fallback")
		assert.False(t, change.Opened, "already open")
	})

	t.Run("failures must be consecutive", func(t *testing.T) {
		b := New("store", WithFailureThreshold(3))
		failN(b, 2)
		b.RecordSuccess()
		failN(b, 2)
		assert.False(t, b.IsOpen())
		b.RecordFailure()
		assert.True(t, b.IsOpen())
	})

	t.Run("closes after consecutive successes", func(t *testing.T) {
		b := New("store", WithFailureThreshold(1), WithSuccessThreshold(3))
		b.RecordFailure()
		require.True(t, b.IsOpen())

		usePrimary, _ := succeedN(b, 2)
		assert.False(t, usePrimary)
		b.RecordFailure()
		usePrimary, _ = succeedN(b, 2)
		assert.False(t, usePrimary, "a failure restarts the success count")

		usePrimary, change := b.RecordSuccess()
		assert.True(t, usePrimary)
		assert.True(t, change.Closed)
		assert.False(t, b.IsOpen())
	})

	t.Run("non-positive thresholds keep defaults", func(t *testing.T) {
		b := New("store", WithFailureThreshold(0), WithSuccessThreshold(-1))
		failN(b, 5)
		require.True(t, b.IsOpen())
		usePrimary, _ := b.RecordSuccess()
		assert.True(t, usePrimary)
	})

	t.Run("concurrent callers", func(t *testing.T) {
		b := New("store", WithFailureThreshold(50))
		var wg sync.WaitGroup
		opened := make(chan struct{}, 100)
		for range 100 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, change := b.RecordFailure(); change.Opened {
					opened <- struct{}{}
				}
			}()
		}
		wg.Wait()
		close(opened)
		assert.Len(t, opened, 1)
		assert.True(t, b.IsOpen())
	})
}
