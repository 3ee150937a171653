package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dvloznov/card-ledger/internal/config"
	"github.com/dvloznov/card-ledger/internal/logger"
	"github.com/dvloznov/card-ledger/internal/notionsync"
	"github.com/dvloznov/card-ledger/internal/store"
)

func main() {
	cfg := config.FromEnv()
	cfg.RegisterStoreFlags(flag.CommandLine)
	cfg.RegisterServiceFlags(flag.CommandLine)
	dryRun := flag.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	flag.Parse()

	log, err := logger.NewWithLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// Validate required flags
	if cfg.NotionToken == "" {
		log.Fatal().Msg("Error: --notion-token (or NOTION_TOKEN) is required")
	}
	if cfg.NotionBillsDBID == "" {
		log.Fatal().Msg("Error: --notion-db (or NOTION_BILLS_DB_ID) is required")
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	ctx = logger.WithContext(ctx, log)

	backend, err := store.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer backend.Close()

	billPages := notionsync.NewBillDatabase(cfg.NotionToken, cfg.NotionBillsDBID)

	report, err := notionsync.SyncBills(ctx, backend, billPages, *dryRun)
	if err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	fmt.Printf("Sync completed: %d created, %d updated, %d unchanged, %d deleted, %d failed.\n",
		report.Created, report.Updated, report.Skipped, report.Deleted, report.Failed)
}
