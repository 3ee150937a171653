package domain

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// BillStatus is the lifecycle state of a statement.
type BillStatus string

const (
	BillStatusOpen    BillStatus = "open"
	BillStatusClosed  BillStatus = "closed"
	BillStatusOverdue BillStatus = "overdue"
	BillStatusPaid    BillStatus = "paid"
)

// BillKey identifies the single bill of a card for a calendar month.
type BillKey struct {
	CardID string
	Month  int
	Year   int
}

func (k BillKey) String() string {
	return fmt.Sprintf("%s/%04d-%02d", k.CardID, k.Year, k.Month)
}

// Bill is one monthly statement of a card.
type Bill struct {
	BillID string
	UserID string
	BillKey

	PeriodStart civil.Date
	PeriodEnd   civil.Date
	ClosingDate civil.Date
	DueDate     civil.Date

	TotalAmount decimal.Decimal
	PaidAmount  decimal.Decimal
	IsPaid      bool
	Status      BillStatus

	// Version is incremented on every write; zero means the bill was never stored.
	Version int64

	CreatedTS time.Time
	UpdatedTS time.Time
}
