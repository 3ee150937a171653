package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/card-ledger/internal/domain"
)

const billsTable = "bills"

// BillRow is a row of the bills table, keyed by (card_id, month, year).
type BillRow struct {
	BillID string `bigquery:"bill_id"` // REQUIRED
	UserID string `bigquery:"user_id"` // REQUIRED
	CardID string `bigquery:"card_id"` // REQUIRED
	Month  int64  `bigquery:"month"`   // REQUIRED 1..12
	Year   int64  `bigquery:"year"`    // REQUIRED

	PeriodStart civil.Date `bigquery:"period_start"`
	PeriodEnd   civil.Date `bigquery:"period_end"`
	ClosingDate civil.Date `bigquery:"closing_date"`
	DueDate     civil.Date `bigquery:"due_date"`

	TotalAmount *big.Rat `bigquery:"total_amount"` // REQUIRED NUMERIC
	PaidAmount  *big.Rat `bigquery:"paid_amount"`  // REQUIRED NUMERIC
	IsPaid      bool     `bigquery:"is_paid"`
	Status      string   `bigquery:"status"`

	Version int64 `bigquery:"version"` // bumped on every write

	CreatedTS time.Time `bigquery:"created_ts"`
	UpdatedTS time.Time `bigquery:"updated_ts"`
}

func (r *BillRow) toDomain() *domain.Bill {
	return &domain.Bill{
		BillID: r.BillID,
		UserID: r.UserID,
		BillKey: domain.BillKey{
			CardID: r.CardID,
			Month:  int(r.Month),
			Year:   int(r.Year),
		},
		PeriodStart: r.PeriodStart,
		PeriodEnd:   r.PeriodEnd,
		ClosingDate: r.ClosingDate,
		DueDate:     r.DueDate,
		TotalAmount: decimalFromRat(r.TotalAmount),
		PaidAmount:  decimalFromRat(r.PaidAmount),
		IsPaid:      r.IsPaid,
		Status:      domain.BillStatus(r.Status),
		Version:     r.Version,
		CreatedTS:   r.CreatedTS,
		UpdatedTS:   r.UpdatedTS,
	}
}
