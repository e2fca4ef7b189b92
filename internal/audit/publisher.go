package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists audit entries. Implementations must be append-only.
type Store interface {
	Append(ctx context.Context, e Entry) error
}

// Publisher writes entries to the primary store synchronously and, when a
// forward channel is configured, hands a copy to the background worker.
// Forwarding never blocks issuance: a full channel drops the copy, and so
// does a publisher that has been closed.
type Publisher struct {
	store   Store
	forward chan<- Entry
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
}

type PublisherOption func(*Publisher)

// WithForward enables asynchronous fan-out to secondary sinks.
func WithForward(ch chan<- Entry) PublisherOption {
	return func(p *Publisher) {
		p.forward = ch
	}
}

func WithLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit appends the entry, stamping an event id and the current time if unset.
func (p *Publisher) Emit(ctx context.Context, e Entry) error {
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if err := p.store.Append(ctx, e); err != nil {
		return err
	}
	p.forwardEntry(ctx, e)
	return nil
}

func (p *Publisher) forwardEntry(ctx context.Context, e Entry) {
	if p.forward == nil {
		return
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.logger.WarnContext(ctx, "audit forwarding stopped, dropping entry",
			"nssf_number", e.IssuedNumber,
			"individual_number", e.IndividualNumber,
		)
		return
	}
	select {
	case p.forward <- e:
	default:
		p.logger.WarnContext(ctx, "audit forward queue full, dropping entry",
			"nssf_number", e.IssuedNumber,
			"individual_number", e.IndividualNumber,
		)
	}
}

// Close stops forwarding and closes the forward channel so the worker can
// drain it. Emit keeps writing to the primary store afterwards.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.forward == nil {
		p.closed = true
		return
	}
	p.closed = true
	close(p.forward)
}
