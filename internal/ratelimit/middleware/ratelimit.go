package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"caseverify/internal/ratelimit/metrics"
	"caseverify/internal/ratelimit/models"
	"caseverify/internal/ratelimit/store/bucket"
	dErrors "caseverify/pkg/domain-errors"
	"caseverify/pkg/platform/circuit"
	"caseverify/pkg/platform/httputil"
	"caseverify/pkg/requestcontext"
)

// BucketStore records requests against a sliding window.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)
}

type Middleware struct {
	store    BucketStore
	fallback BucketStore
	breaker  *circuit.Breaker
	limit    models.Limit
	logger   *slog.Logger
	metrics  *metrics.Metrics
	disabled bool
}

type Option func(*Middleware)

// WithDisabled disables rate limiting entirely (for tests and demo mode).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Middleware) {
		m.metrics = mt
	}
}

// WithFallback replaces the in-memory store used while the primary store is
// failing.
func WithFallback(store BucketStore) Option {
	return func(m *Middleware) {
		m.fallback = store
	}
}

func New(store BucketStore, limit models.Limit, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		store:    store,
		fallback: bucket.NewInMemoryBucketStore(),
		breaker:  circuit.New("ratelimit-store", circuit.WithFailureThreshold(5), circuit.WithSuccessThreshold(3)),
		limit:    limit,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// RateLimit limits requests per client IP. Store failures fail open until
// the breaker opens, after which the in-memory fallback takes over and
// responses carry X-RateLimit-Status: degraded.
func (m *Middleware) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.disabled {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		ip := requestcontext.ClientIP(ctx)
		key := models.NewIPKey(ip)

		result, degraded, err := m.check(ctx, key)
		if err != nil {
			m.logger.ErrorContext(ctx, "failed to check IP rate limit",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
			next.ServeHTTP(w, r)
			return
		}

		addRateLimitHeaders(w, result)
		if degraded {
			w.Header().Set("X-RateLimit-Status", "degraded")
		}

		if !result.Allowed {
			m.metrics.IncrementRejected()
			m.logger.WarnContext(ctx, "rate limit exceeded",
				"request_id", requestcontext.RequestID(ctx),
				"client_ip", ip,
				"path", r.URL.Path,
			)
			writeRateLimitExceeded(w, result)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) check(ctx context.Context, key string) (*models.RateLimitResult, bool, error) {
	result, err := m.store.Allow(ctx, key, m.limit.RequestsPerWindow, m.limit.Window)
	if err != nil {
		m.metrics.IncrementStoreErrors()
		useFallback, change := m.breaker.RecordFailure()
		if change.Opened {
			m.logger.WarnContext(ctx, "rate limit store circuit opened", "breaker", m.breaker.Name(), "error", err)
		}
		if !useFallback {
			return nil, false, err
		}
		return m.checkFallback(ctx, key)
	}

	usePrimary, change := m.breaker.RecordSuccess()
	if change.Closed {
		m.logger.InfoContext(ctx, "rate limit store circuit closed", "breaker", m.breaker.Name())
	}
	if !usePrimary {
		return m.checkFallback(ctx, key)
	}
	return result, false, nil
}

func (m *Middleware) checkFallback(ctx context.Context, key string) (*models.RateLimitResult, bool, error) {
	m.metrics.IncrementFallbackChecks()
	result, err := m.fallback.Allow(ctx, key, m.limit.RequestsPerWindow, m.limit.Window)
	if err != nil {
		return nil, true, err
	}
	return result, true, nil
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.RateLimitResult) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.RateLimitExceededResponse{
		Success:    false,
		Error:      string(dErrors.CodeRateLimited),
		Message:    "Too many requests from this IP address. Please try again later.",
		RetryAfter: result.RetryAfter,
	})
}
