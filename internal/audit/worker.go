package audit

import (
	"context"
	"log/slog"

	"caseverify/pkg/platform/circuit"
)

// Worker consumes audit entries from a channel and forwards them to a
// secondary store. Failures drop the entry; the CSV log written by
// Publisher remains the record of truth. While the breaker is open,
// per-entry failures are not logged.
type Worker struct {
	store   Store
	inbox   <-chan Entry
	logger  *slog.Logger
	breaker *circuit.Breaker
}

func NewWorker(store Store, inbox <-chan Entry, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		store:   store,
		inbox:   inbox,
		logger:  logger,
		breaker: circuit.New("audit-forward", circuit.WithFailureThreshold(3), circuit.WithSuccessThreshold(1)),
	}
}

// Run blocks until ctx is cancelled or the inbox is closed.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-w.inbox:
			if !ok {
				return nil
			}
			w.forward(ctx, e)
		}
	}
}

func (w *Worker) forward(ctx context.Context, e Entry) {
	if err := w.store.Append(ctx, e); err != nil {
		wasOpen := w.breaker.IsOpen()
		_, change := w.breaker.RecordFailure()
		if change.Opened {
			w.logger.ErrorContext(ctx, "audit forward circuit opened", "breaker", w.breaker.Name(), "error", err)
			return
		}
		if !wasOpen {
			w.logger.ErrorContext(ctx, "failed to forward audit entry",
				"nssf_number", e.IssuedNumber,
				"individual_number", e.IndividualNumber,
				"error", err,
			)
		}
		return
	}
	if _, change := w.breaker.RecordSuccess(); change.Closed {
		w.logger.InfoContext(ctx, "audit forward circuit closed", "breaker", w.breaker.Name())
	}
}
