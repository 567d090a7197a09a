package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maternar/sync-engine/internal/concurrency"
	"github.com/maternar/sync-engine/internal/config"
	"github.com/maternar/sync-engine/internal/conflict"
	"github.com/maternar/sync-engine/internal/database"
	"github.com/maternar/sync-engine/internal/database/postgres"
	"github.com/maternar/sync-engine/internal/event"
	"github.com/maternar/sync-engine/internal/metrics"
	"github.com/maternar/sync-engine/internal/scheduler"
	"github.com/maternar/sync-engine/internal/server"
	"github.com/maternar/sync-engine/internal/sync"
	"github.com/maternar/sync-engine/internal/synclog"
	"github.com/maternar/sync-engine/internal/validation"
	"github.com/maternar/sync-engine/internal/version"
	"github.com/maternar/sync-engine/internal/watermark"
	"github.com/maternar/sync-engine/internal/worker"
)

const (
	dbMaxConns      = 10
	dbMaxIdle       = 5 * time.Minute
	dbMaxLife       = 30 * time.Minute
	shutdownTimeout = 15 * time.Second
	retrySweepLimit = 50
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	initLogger(cfg)

	dbPool, err := database.NewPool(context.Background(), cfg.GetDBConnString(), dbMaxConns, dbMaxIdle, dbMaxLife)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer dbPool.Close()

	// Repositories
	queueRepo := postgres.NewQueueRepository(dbPool)
	versionsRepo := postgres.NewVersionsRepository(dbPool)
	conflictsRepo := postgres.NewConflictsRepository(dbPool)
	changesRepo := postgres.NewChangesRepository(dbPool)
	syncLogsRepo := postgres.NewSyncLogsRepository(dbPool)

	// Event bus with the metrics subscriber attached
	bus := event.NewBus()
	metrics.SubscribeToEvents(bus)

	payloadValidator, err := validation.NewPayloadValidator()
	if err != nil {
		log.Fatalf("Failed to compile entity schemas: %v", err)
	}

	// Services
	locks := concurrency.NewLockManager()
	versionService := version.NewService(versionsRepo)
	watermarks := watermark.NewManager(changesRepo)
	sessionService := synclog.NewService(syncLogsRepo)

	pool := worker.NewPool(cfg.Workers, cfg.QueueSize)
	pool.Start()

	conflictService := conflict.NewService(conflictsRepo, queueRepo, versionService, payloadValidator, locks, bus)
	syncService := sync.NewService(
		sync.Config{
			MaxRetries:  cfg.MaxRetries,
			BackoffBase: cfg.BackoffBase,
			BackoffMax:  cfg.BackoffMax,
		},
		queueRepo, conflictsRepo, changesRepo,
		versionService, watermarks, sessionService,
		validation.NewItemValidator(), payloadValidator, conflictService,
		locks, pool, bus,
		nil, // authorization handled by the embedding API for now
	)

	// Background maintenance
	sched := scheduler.New(pool)
	sched.Schedule(cfg.RetryInterval, worker.NewRetryJob(syncService, retrySweepLimit))
	sched.Schedule(cfg.CleanupInterval, worker.JobFunc(func(ctx context.Context) error {
		_, err := syncService.Cleanup(ctx, cfg.RetentionDays)
		return err
	}))

	srv := server.NewServer(cfg.Port, dbPool)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		slog.Error("Server failed", "error", err)
	case sig := <-stop:
		slog.Info("Shutdown signal received", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Stop(ctx); err != nil {
		slog.Error("Server forced shutdown", "error", err)
	}
	sched.Stop()
	pool.Stop()
	slog.Info("Server stopped")
}
