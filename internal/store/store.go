// Package store selects the storage backend named by the configuration.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/card-ledger/internal/billing"
	"github.com/dvloznov/card-ledger/internal/config"
	"github.com/dvloznov/card-ledger/internal/domain"
	infraBQ "github.com/dvloznov/card-ledger/internal/infra/bigquery"
	"github.com/dvloznov/card-ledger/internal/infra/postgres"
	"github.com/dvloznov/card-ledger/internal/installments"
	"github.com/dvloznov/card-ledger/internal/logger"
	"github.com/dvloznov/card-ledger/internal/store/memory"
)

// Backend is every repository the commands need, behind one handle.
type Backend interface {
	billing.CardRepository
	billing.BillRepository
	billing.TransactionReader
	installments.Repository

	// InsertTransactions stores new transactions, assigning IDs where missing.
	InsertTransactions(ctx context.Context, txs []*domain.Transaction) error

	Close() error
}

var (
	_ Backend = (*memory.Store)(nil)
	_ Backend = (*infraBQ.BigQueryRepository)(nil)
	_ Backend = (*postgres.Repository)(nil)
)

// Open validates cfg and connects the configured backend.
func Open(ctx context.Context, cfg config.Config) (Backend, error) {
	if err := cfg.ValidateStore(); err != nil {
		return nil, fmt.Errorf("Open: %w", err)
	}

	log := logger.FromContext(ctx)
	backend := strings.ToLower(cfg.StoreBackend)

	switch backend {
	case config.BackendBigQuery:
		repo, err := infraBQ.NewBigQueryRepository(ctx, cfg.GCPProject, cfg.BQDataset)
		if err != nil {
			return nil, fmt.Errorf("Open: %w", err)
		}
		log.Info().Str("project", cfg.GCPProject).Str("dataset", cfg.BQDataset).Msg("Using BigQuery store")
		return repo, nil
	case config.BackendPostgres:
		repo, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("Open: %w", err)
		}
		log.Info().Msg("Using PostgreSQL store")
		return repo, nil
	default:
		log.Warn().Msg("Using in-memory store; data is lost on exit")
		return memory.NewStore(), nil
	}
}
