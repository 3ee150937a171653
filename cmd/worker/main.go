package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/card-ledger/internal/billing"
	"github.com/dvloznov/card-ledger/internal/config"
	"github.com/dvloznov/card-ledger/internal/installments"
	"github.com/dvloznov/card-ledger/internal/jobs"
	"github.com/dvloznov/card-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/card-ledger/internal/logger"
	"github.com/dvloznov/card-ledger/internal/reports"
	"github.com/dvloznov/card-ledger/internal/store"
)

func main() {
	cfg := config.FromEnv()
	cfg.RegisterStoreFlags(flag.CommandLine)
	interval := flag.Duration("interval", 6*time.Hour, "How often to regenerate bills")
	repair := flag.Bool("repair", false, "Also run the installment normalizer on every tick")
	execute := flag.Bool("execute", false, "Apply installment corrections (default is dry run)")
	flag.Parse()

	// Initialize logger
	log, err := logger.NewWithLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// Create context that cancels on interrupt
	ctx, cancel := context.WithCancel(logger.WithContext(context.Background(), log))
	defer cancel()

	backend, err := store.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer backend.Close()

	dispatcher := &jobs.Dispatcher{
		Generator: billing.NewGenerator(backend, backend, backend),
		Repairer:  installments.NewNormalizer(backend),
	}
	if cfg.ReportBucket != "" {
		objects, err := reports.NewGCSObjectStore(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create storage client")
		}
		defer objects.Close()
		dispatcher.Archive = reports.NewArchive(objects, cfg.ReportBucket)
	}

	// Single worker so generation and repair never overlap.
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(10, 1, jobStore)

	log.Info().Str("store", cfg.StoreBackend).Dur("interval", *interval).Msg("Starting worker service")

	if err := jobQueue.Start(ctx, dispatcher.Handle); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	build := scheduledJobs(*repair, *execute)
	go func() {
		if err := schedule(ctx, jobQueue, *interval, build); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("Scheduler stopped")
			cancel()
		}
	}()

	log.Info().Msg("Worker service started, waiting for jobs...")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down worker service...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop the queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}
	cancel()

	log.Info().Msg("Worker service exited")
}

// scheduledJobs returns the jobs published on every tick.
func scheduledJobs(repair, execute bool) func() []*jobs.Job {
	return func() []*jobs.Job {
		batch := []*jobs.Job{jobs.NewGenerateBillsJob(jobs.GenerateBillsParams{})}
		if repair {
			batch = append(batch, jobs.NewRepairInstallmentsJob(jobs.RepairInstallmentsParams{Execute: execute}))
		}
		return batch
	}
}

// schedule publishes build's jobs immediately and then every interval until
// ctx is cancelled. A publish error stops the schedule.
func schedule(ctx context.Context, pub jobs.Publisher, interval time.Duration, build func() []*jobs.Job) error {
	if interval <= 0 {
		return fmt.Errorf("schedule: interval must be positive, got %s", interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, job := range build() {
			if err := pub.Publish(ctx, job); err != nil {
				return fmt.Errorf("schedule: publishing %s: %w", job.Type, err)
			}
			log := logger.FromContext(ctx)
			log.Info().Str("job_id", job.JobID).Str("job_type", string(job.Type)).Msg("Job scheduled")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
