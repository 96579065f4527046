package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/andreyvolkau/airtrail/internal/cache"
	"github.com/andreyvolkau/airtrail/internal/config"
	"github.com/andreyvolkau/airtrail/internal/database"
	"github.com/andreyvolkau/airtrail/internal/logging"
	"github.com/andreyvolkau/airtrail/internal/metrics"
	"github.com/andreyvolkau/airtrail/internal/ops"
	"github.com/andreyvolkau/airtrail/internal/queue"
	"github.com/andreyvolkau/airtrail/internal/scheduler"
	"github.com/andreyvolkau/airtrail/internal/storage"
	"github.com/andreyvolkau/airtrail/internal/timeline"
	"github.com/andreyvolkau/airtrail/internal/tracing"
	"github.com/andreyvolkau/airtrail/pkg/models"
)

// Worker runs the timeline pipeline for one channel at a time, guarded
// by a per-channel run lock so overlapping ticks and batch arrivals
// never process the same channel concurrently.
type Worker struct {
	pipeline  *timeline.Pipeline
	snapshots *cache.SnapshotSource
	cache     *cache.Cache
	cfg       config.PipelineConfig
	logger    *logging.Logger
}

// RunChannel executes one pipeline run for a channel
func (w *Worker) RunChannel(ctx context.Context, channelID string, events []models.RecognitionEvent) error {
	if w.cache != nil {
		acquired, err := w.cache.AcquireRunLock(ctx, channelID, w.cfg.RunLockTTL)
		if err != nil {
			w.logger.WithChannelID(channelID).WithError(err).
				Warn("run lock unavailable, proceeding without it")
		} else if !acquired {
			w.logger.WithChannelID(channelID).Info("run already in progress, skipping")
			return nil
		} else {
			defer func() {
				if err := w.cache.ReleaseRunLock(context.Background(), channelID); err != nil {
					w.logger.WithChannelID(channelID).WithError(err).Warn("failed to release run lock")
				}
			}()
		}
	}

	snapshot, err := w.snapshots.Snapshot(ctx, channelID)
	if err != nil {
		return fmt.Errorf("failed to load channel configuration: %w", err)
	}

	runErr := w.pipeline.Run(ctx, snapshot.Channel, events)
	w.writeRunMarker(ctx, channelID, len(events), runErr)
	return runErr
}

// writeRunMarker records the run outcome for the ops status endpoint
func (w *Worker) writeRunMarker(ctx context.Context, channelID string, events int, runErr error) {
	if w.cache == nil {
		return
	}

	status := "ok"
	if runErr != nil {
		status = "failed"
	}

	marker := &cache.RunMarker{
		ChannelID:  channelID,
		RunID:      uuid.New().String(),
		Status:     status,
		Segments:   events,
		FinishedAt: time.Now().UTC(),
	}

	if err := w.cache.SetRunMarker(ctx, marker); err != nil {
		w.logger.WithChannelID(channelID).WithError(err).Warn("failed to write run marker")
	}
}

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewDefaultLogger()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// Initialize tracing when a collector endpoint is configured
	if endpoint := os.Getenv("JAEGER_ENDPOINT"); endpoint != "" {
		_, closer, err := tracing.InitTracer("airtrail-worker", endpoint)
		if err != nil {
			logger.ErrorWithErr("Failed to initialize tracer, continuing without tracing", err)
		} else {
			defer closer.Close()
		}
	}

	// Initialize database
	db, err := database.New(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	repo := database.NewRepository(db)

	// Initialize cache. The worker degrades without it: no run locks, no
	// snapshot caching, no run markers.
	var c *cache.Cache
	c, err = cache.NewCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.ErrorWithErr("Failed to connect to Redis, continuing without cache", err)
		c = nil
	} else {
		defer c.Close()
	}

	// Initialize clip storage
	stor, err := storage.New(cfg.Storage)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}

	// Initialize queue
	q, err := queue.New(cfg.Queue)
	if err != nil {
		logger.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()

	if err := q.SetupDeadLetterQueue(); err != nil {
		logger.Fatalf("Failed to set up dead letter queue: %v", err)
	}

	snapshots := cache.NewSnapshotSource(c, repo, cfg.Pipeline.SnapshotTTL)
	pipeline := timeline.NewPipeline(repo, snapshots, stor, q, cfg.Pipeline, logger)

	worker := &Worker{
		pipeline:  pipeline,
		snapshots: snapshots,
		cache:     c,
		cfg:       cfg.Pipeline,
		logger:    logger,
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start metrics server
	metricsServer := metrics.NewServer(cfg.Server.MetricsPort)
	go func() {
		if err := metricsServer.Start(); err != nil {
			logger.ErrorWithErr("Metrics server failed", err)
		}
	}()

	// Start ops server
	opsAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	opsServer := ops.NewServer(opsAddr, repo, c, q, logger)
	go func() {
		if err := opsServer.Start(); err != nil {
			logger.ErrorWithErr("Ops server failed", err)
		}
	}()

	// Start the run scheduler
	sched := scheduler.NewScheduler(worker, repo, cfg.Pipeline.TickSpec, cfg.Pipeline.MaxConcurrent, logger)
	if err := sched.Start(); err != nil {
		logger.Fatalf("Failed to start scheduler: %v", err)
	}

	// Batch handler: validate and enqueue. The pipeline run itself happens
	// on the scheduler's dispatch loop, so the queue ack is cheap.
	batchHandler := func(batch *models.RecognitionBatch) error {
		if batch.ChannelID == "" {
			metrics.RecognitionBatchesTotal.WithLabelValues("invalid").Inc()
			if err := q.PublishToDeadLetterQueue(ctx, batch, "missing channel_id"); err != nil {
				logger.ErrorWithErr("Failed to dead-letter invalid batch", err)
			}
			return nil
		}

		metrics.RecognitionBatchesTotal.WithLabelValues("received").Inc()
		sched.EnqueueRun(batch.ChannelID, batch.Events, models.RunPriorityBatch)
		return nil
	}

	logger.Info("Worker started, waiting for recognition batches")
	if err := q.ConsumeRecognitionBatches(ctx, batchHandler); err != nil {
		logger.Fatalf("Failed to consume recognition batches: %v", err)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down worker gracefully")
	cancel()
	sched.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithErr("Ops server shutdown failed", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithErr("Metrics server shutdown failed", err)
	}

	logger.Info("Worker stopped")
}
