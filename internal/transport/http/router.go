package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"caseverify/internal/platform/metrics"
	"caseverify/internal/platform/middleware"
	"caseverify/pkg/platform/httputil"
	"caseverify/pkg/platform/middleware/metadata"
	"caseverify/pkg/platform/middleware/requesttime"
	"caseverify/pkg/requestcontext"
)

const healthTimeout = 2 * time.Second

// Registrar mounts a feature's routes.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck reports whether a backing dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Config wires the router. RateLimit and Health are optional.
type Config struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	RequestTimeout time.Duration
	RateLimit      func(http.Handler) http.Handler
	Health         HealthCheck
}

type HealthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// NewRouter wires the public endpoints. Health and metrics sit outside the
// rate limiter so probes are never throttled.
func NewRouter(cfg Config, features ...Registrar) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.LatencyMiddleware(cfg.Metrics))

	r.Get("/health", healthHandler(cfg.Logger, cfg.Health))
	r.Handle("/metrics", metrics.Handler(cfg.Gatherer))

	r.Group(func(r chi.Router) {
		if cfg.RateLimit != nil {
			r.Use(cfg.RateLimit)
		}
		if cfg.RequestTimeout > 0 {
			r.Use(middleware.Timeout(cfg.RequestTimeout))
		}
		for _, f := range features {
			f.Register(r)
		}
	})
	return r
}

func healthHandler(logger *slog.Logger, check HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()
			if err := check(ctx); err != nil {
				logger.WarnContext(ctx, "health check failed",
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
				httputil.WriteJSON(w, http.StatusServiceUnavailable, HealthResponse{
					Status:  "unavailable",
					Message: "case store is unreachable",
				})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Message: "Refugee verification service is running",
		})
	}
}
