package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"prospector_backend/internal/address"
	"prospector_backend/internal/enrich"
	"prospector_backend/internal/geocode"
	leadrepo "prospector_backend/internal/leads/repository"
	"prospector_backend/internal/pipeline"
	"prospector_backend/internal/postal"
	"prospector_backend/internal/ratelimit"
	"prospector_backend/internal/recalc"
	"prospector_backend/internal/registry"
	scoringrepo "prospector_backend/internal/scoring/repository"
	"prospector_backend/internal/scoring/rules"
	scoringservice "prospector_backend/internal/scoring/service"
	"prospector_backend/platform/config"
	"prospector_backend/platform/db"
	"prospector_backend/platform/logger"
	platformredis "prospector_backend/platform/redis"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting pipeline worker", "env", cfg.Env, "queue", cfg.QueueName, "concurrency", cfg.WorkerConcurrency)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Redis backs the registry quota gate and the postal cache; the queue
	// server opens its own connection from the same URL.
	rdb, err := platformredis.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize redis client", "error", err)
		panic("failed to initialize redis client: " + err.Error())
	}
	defer func() { _ = rdb.Close() }()

	queueClient, err := pipeline.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize queue client", "error", err)
		panic("failed to initialize queue client: " + err.Error())
	}
	defer func() { _ = queueClient.Close() }()

	// ========================================================================
	// Pipeline Stages
	// ========================================================================

	leadsRepo := leadrepo.New(pool)
	scoringSvc := scoringservice.New(scoringrepo.New(pool), queueClient, log)

	limiter := ratelimit.New(rdb, log)
	enricher := enrich.New(registry.NewClient(cfg.GetRegistryLookupURL(), log), limiter, log)

	postalCache := postal.NewCache(rdb, cfg.GetPostalCacheTTL())
	postalClient := postal.NewClient(cfg.GetPostalLookupURL(), log)

	var geocoder address.Geocoder
	if cfg.IsGeocoderEnabled() {
		geocoder = geocode.New(cfg.GetGeocoderURL(), log)
	}
	resolver := address.NewResolver(postalCache, postalClient, geocoder, log)

	engine := rules.NewEngine()
	recalculator := recalc.New(leadsRepo, scoringSvc, engine, cfg, log)

	processor := pipeline.NewProcessor(leadsRepo, resolver, enricher, scoringSvc, engine, recalculator, log)

	worker, err := pipeline.NewWorker(cfg, processor, log)
	if err != nil {
		log.Error("failed to initialize pipeline worker", "error", err)
		panic("failed to initialize pipeline worker: " + err.Error())
	}

	worker.Run(ctx)
	log.Info("pipeline worker stopped")
}

// withRetry runs fn until it succeeds, retrying with quadratic backoff.
func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
