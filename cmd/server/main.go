package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"caseverify/internal/audit"
	"caseverify/internal/cases/handler"
	casemetrics "caseverify/internal/cases/metrics"
	"caseverify/internal/cases/service"
	"caseverify/internal/cases/store"
	"caseverify/internal/platform/config"
	"caseverify/internal/platform/httpserver"
	"caseverify/internal/platform/logger"
	"caseverify/internal/platform/metrics"
	platformredis "caseverify/internal/platform/redis"
	ratelimitmetrics "caseverify/internal/ratelimit/metrics"
	ratelimitmw "caseverify/internal/ratelimit/middleware"
	ratelimitmodels "caseverify/internal/ratelimit/models"
	"caseverify/internal/ratelimit/store/bucket"
	httptransport "caseverify/internal/transport/http"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(os.Stdout, cfg.LogFormat, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	cases, err := store.Open(ctx, cfg.Store, log)
	if err != nil {
		return fmt.Errorf("open case store: %w", err)
	}
	defer func() {
		if err := cases.Close(); err != nil {
			log.Warn("failed to close case store", "error", err)
		}
	}()
	log.Info("case store ready", "driver", cfg.Store.Driver)

	numberFormat, err := service.ParseNumberFormat(cfg.Issuance.NumberFormat)
	if err != nil {
		return err
	}

	auditLog := audit.NewCSVStore(cfg.Audit.LogPath)
	publisherOpts := []audit.PublisherOption{audit.WithLogger(log)}

	var worker *audit.Worker
	if len(cfg.Audit.KafkaBrokers) > 0 {
		kafka, err := audit.NewKafkaStore(cfg.Audit.KafkaBrokers, cfg.Audit.KafkaTopic)
		if err != nil {
			return fmt.Errorf("create kafka audit sink: %w", err)
		}
		defer kafka.Close()
		inbox := make(chan audit.Entry, cfg.Audit.QueueSize)
		worker = audit.NewWorker(kafka, inbox, log)
		publisherOpts = append(publisherOpts, audit.WithForward(inbox))
		log.Info("audit forwarding enabled", "topic", cfg.Audit.KafkaTopic)
	}

	publisher := audit.NewPublisher(auditLog, publisherOpts...)
	svc, err := service.New(cases,
		service.WithLogger(log),
		service.WithMetrics(casemetrics.New(reg)),
		service.WithNumberFormat(numberFormat),
		service.WithAuditPublisher(publisher),
		service.WithIssueDates(auditLog),
	)
	if err != nil {
		return err
	}

	limiter, closeLimiter, err := newRateLimiter(ctx, cfg, log, reg)
	if err != nil {
		return err
	}
	defer closeLimiter()

	router := httptransport.NewRouter(httptransport.Config{
		Logger:         log,
		Metrics:        metrics.New(reg),
		Gatherer:       reg,
		RequestTimeout: cfg.RequestTimeout,
		RateLimit:      limiter.RateLimit,
		Health:         cases.Ping,
	}, handler.New(svc, log))
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting caseverify", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	if worker != nil {
		// The worker drains the inbox after shutdown closes it.
		g.Go(func() error {
			return worker.Run(context.WithoutCancel(gctx))
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		// Handlers still running after a failed shutdown only write the CSV log.
		publisher.Close()
		if err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// newRateLimiter keeps counters in Redis when configured and in memory
// otherwise.
func newRateLimiter(ctx context.Context, cfg config.Server, log *slog.Logger, reg prometheus.Registerer) (*ratelimitmw.Middleware, func(), error) {
	limit := ratelimitmodels.Limit{
		RequestsPerWindow: cfg.RateLimit.Requests,
		Window:            cfg.RateLimit.Window,
	}
	opts := []ratelimitmw.Option{
		ratelimitmw.WithDisabled(cfg.RateLimit.Disabled),
		ratelimitmw.WithMetrics(ratelimitmetrics.New(reg)),
	}

	client, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	if client == nil {
		return ratelimitmw.New(bucket.NewInMemoryBucketStore(), limit, log, opts...), func() {}, nil
	}
	log.Info("rate limit counters in redis")
	closeFn := func() {
		if err := client.Close(); err != nil {
			log.Warn("failed to close redis client", "error", err)
		}
	}
	return ratelimitmw.New(bucket.NewRedis(client.Client), limit, log, opts...), closeFn, nil
}
