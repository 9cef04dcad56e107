// cmd/routeforge/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"routeforge/internal/common/config"
	"routeforge/internal/common/database"
	"routeforge/internal/common/logger"
	"routeforge/internal/common/observability"
	"routeforge/internal/generation"
	"routeforge/internal/planner"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	// Rebuild at the configured level now that config is known.
	zapLog = logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting routeforge runner...",
		zap.String("name", cfg.App.Name),
		zap.String("version", cfg.App.Version),
	)

	obs := observability.New("routeforge")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		// Test the connection with context
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		// Test the connection with context
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Storage, planner client and service ---
	store := generation.NewPostgresStore(pg, log)
	if err := store.EnsureSchema(ctx); err != nil {
		zapLog.Fatal("schema migration failed", zap.Error(err))
	}

	cache := generation.NewExportCache(rdb, config.GetDuration(cfg.Export.CacheTTL), log)

	pl, err := planner.NewHTTPPlanner(cfg.Planner, obs, log)
	if err != nil {
		zapLog.Fatal("planner client init failed", zap.Error(err))
	}

	svc := generation.NewService(store, cache, pl, cfg.Export.Creator, log)

	runner := generation.NewRunner(svc, generation.RunnerConfig{
		Interval:    config.GetDuration(cfg.Runner.Interval),
		BatchSize:   cfg.Runner.BatchSize,
		Concurrency: cfg.Runner.Concurrency,
	}, log)
	runner.Start()

	// --- Health & Metrics Server ---
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			json.NewEncoder(w).Encode(map[string]string{
				"status": "healthy",
				"time":   time.Now().Format(time.RFC3339),
			})
		})
		http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			readyCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			status := map[string]string{
				"status": "ready",
				"time":   time.Now().Format(time.RFC3339),
			}
			code := http.StatusOK
			if err := pg.Ping(readyCtx); err != nil {
				status["status"] = "degraded"
				status["postgres"] = err.Error()
				code = http.StatusServiceUnavailable
			}
			if err := rdb.Ping(readyCtx); err != nil {
				status["status"] = "degraded"
				status["redis"] = err.Error()
				code = http.StatusServiceUnavailable
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(code)
			json.NewEncoder(w).Encode(status)
		})
		http.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening", zap.String("addr", cfg.App.MetricsAddr))
		if err := http.ListenAndServe(cfg.App.MetricsAddr, nil); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping runner...")
	runner.Stop()
	zapLog.Info("Routeforge runner stopped gracefully")
}
