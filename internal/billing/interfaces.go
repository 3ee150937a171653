package billing

import (
	"context"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/card-ledger/internal/domain"
)

// CardRepository reads card billing configuration.
type CardRepository interface {
	// ListActiveCards returns every active card, configured or not.
	ListActiveCards(ctx context.Context) ([]*domain.Card, error)

	// GetCard returns a card by ID or domain.ErrCardNotFound.
	GetCard(ctx context.Context, cardID string) (*domain.Card, error)
}

// BillRepository persists bills keyed by (card, month, year).
type BillRepository interface {
	// FindBill returns the stored bill for key, or nil when none exists.
	FindBill(ctx context.Context, key domain.BillKey) (*domain.Bill, error)

	// SaveBill inserts (expectedVersion == 0) or updates the bill, failing with
	// domain.ErrBillVersionConflict when the stored version differs from
	// expectedVersion. On success bill.Version holds the new version.
	SaveBill(ctx context.Context, bill *domain.Bill, expectedVersion int64) error

	// ListBills returns a card's bills ordered by year and month.
	ListBills(ctx context.Context, cardID string) ([]*domain.Bill, error)
}

// TransactionReader loads the transactions charged to a card.
type TransactionReader interface {
	// ListCardTransactions returns transactions of cardID dated within [start, end].
	ListCardTransactions(ctx context.Context, cardID string, start, end civil.Date) ([]*domain.Transaction, error)
}
