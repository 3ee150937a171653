package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/card-ledger/internal/domain"
)

// BigQueryRepository implements the card, bill and transaction repositories
// against one BigQuery dataset. It holds a shared client to avoid creating a
// new connection for each operation.
type BigQueryRepository struct {
	client  *bigquery.Client
	dataset string
}

// NewBigQueryRepository creates a repository for projectID.datasetID.
func NewBigQueryRepository(ctx context.Context, projectID, datasetID string) (*BigQueryRepository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewBigQueryRepository: creating client: %w", err)
	}
	return &BigQueryRepository{
		client:  client,
		dataset: datasetID,
	}, nil
}

// Close closes the BigQuery client connection.
func (r *BigQueryRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// ListActiveCards delegates to ListActiveCardsWithClient.
func (r *BigQueryRepository) ListActiveCards(ctx context.Context) ([]*domain.Card, error) {
	return ListActiveCardsWithClient(ctx, r.client, r.dataset)
}

// GetCard delegates to GetCardWithClient.
func (r *BigQueryRepository) GetCard(ctx context.Context, cardID string) (*domain.Card, error) {
	return GetCardWithClient(ctx, r.client, r.dataset, cardID)
}

// FindBill delegates to FindBillWithClient.
func (r *BigQueryRepository) FindBill(ctx context.Context, key domain.BillKey) (*domain.Bill, error) {
	return FindBillWithClient(ctx, r.client, r.dataset, key)
}

// SaveBill delegates to SaveBillWithClient.
func (r *BigQueryRepository) SaveBill(ctx context.Context, bill *domain.Bill, expectedVersion int64) error {
	return SaveBillWithClient(ctx, r.client, r.dataset, bill, expectedVersion)
}

// ListBills delegates to ListBillsWithClient.
func (r *BigQueryRepository) ListBills(ctx context.Context, cardID string) ([]*domain.Bill, error) {
	return ListBillsWithClient(ctx, r.client, r.dataset, cardID)
}

// InsertTransactions delegates to InsertTransactionsWithClient.
func (r *BigQueryRepository) InsertTransactions(ctx context.Context, txs []*domain.Transaction) error {
	return InsertTransactionsWithClient(ctx, r.client, r.dataset, txs)
}

// ListCardTransactions delegates to ListCardTransactionsWithClient.
func (r *BigQueryRepository) ListCardTransactions(ctx context.Context, cardID string, start, end civil.Date) ([]*domain.Transaction, error) {
	return ListCardTransactionsWithClient(ctx, r.client, r.dataset, cardID, start, end)
}

// ListInstallmentCandidates delegates to ListInstallmentCandidatesWithClient.
func (r *BigQueryRepository) ListInstallmentCandidates(ctx context.Context, userID string) ([]*domain.Transaction, error) {
	return ListInstallmentCandidatesWithClient(ctx, r.client, r.dataset, userID)
}

// UpdateInstallment delegates to UpdateInstallmentWithClient.
func (r *BigQueryRepository) UpdateInstallment(ctx context.Context, u domain.InstallmentUpdate) error {
	return UpdateInstallmentWithClient(ctx, r.client, r.dataset, u)
}
