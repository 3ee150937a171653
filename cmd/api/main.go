package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/card-ledger/internal/api"
	"github.com/dvloznov/card-ledger/internal/api/handlers"
	"github.com/dvloznov/card-ledger/internal/billing"
	"github.com/dvloznov/card-ledger/internal/config"
	"github.com/dvloznov/card-ledger/internal/extract"
	"github.com/dvloznov/card-ledger/internal/installments"
	"github.com/dvloznov/card-ledger/internal/jobs"
	"github.com/dvloznov/card-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/card-ledger/internal/logger"
	"github.com/dvloznov/card-ledger/internal/reports"
	"github.com/dvloznov/card-ledger/internal/store"
)

func main() {
	// Parse command-line flags
	cfg := config.FromEnv()
	cfg.RegisterStoreFlags(flag.CommandLine)
	cfg.RegisterServiceFlags(flag.CommandLine)
	flag.Parse()

	// Initialize logger
	log, err := logger.NewWithLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx := logger.WithContext(context.Background(), log)

	// Initialize repositories
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
	} else {
		log.Warn().Msg("No report bucket configured - repair reports are kept in job results only")
	}

	var importer handlers.SMSImporter
	model, err := extract.NewGeminiModel(ctx, cfg.GenAIModel)
	if err != nil {
		log.Warn().Err(err).Msg("GenAI client unavailable - SMS import will be disabled")
	} else {
		importer = extract.NewImporter(extract.NewExtractor(model), backend, backend)
	}

	// Initialize job infrastructure
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(100, 1, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	log.Info().Msg("Starting job worker")
	if err := jobQueue.Start(workerCtx, dispatcher.Handle); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job worker")
	}

	// Initialize handlers
	handler := api.NewRouter(api.Handlers{
		Cards:        handlers.NewCardsHandler(backend, log),
		Bills:        handlers.NewBillsHandler(backend, jobQueue, log),
		Installments: handlers.NewInstallmentsHandler(jobQueue, log),
		Transactions: handlers.NewTransactionsHandler(importer, log),
		Jobs:         handlers.NewJobsHandler(jobStore, log),
	}, log)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Str("store", cfg.StoreBackend).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Stop job queue and wait for in-flight jobs
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorker()

	log.Info().Msg("Server exited")
}
