package domain

import (
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// TransactionType classifies how a transaction moves money.
type TransactionType string

const (
	TransactionTypeExpense    TransactionType = "expense"
	TransactionTypeIncome     TransactionType = "income"
	TransactionTypeInvestment TransactionType = "investment"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeExpense, TransactionTypeIncome, TransactionTypeInvestment:
		return true
	}
	return false
}

// Transaction is one user-entered or imported money movement.
// Date is a naive calendar date; no timezone conversion is ever applied to it.
type Transaction struct {
	TransactionID string
	UserID        string
	CardID        string // empty when not charged to a card
	PaymentMethod string
	CategoryID    string

	Amount      decimal.Decimal
	Date        civil.Date
	Type        TransactionType
	Description string

	IsInstallment       bool
	InstallmentCount    int // N, only meaningful when IsInstallment
	InstallmentNumber   int // 1-based position within the group
	TotalAmount         decimal.Decimal
	LastInstallmentDate civil.Date // zero when unknown

	CreatedTS time.Time
	UpdatedTS time.Time
}

// InstallmentUpdate carries the installment fields rewritten by the normalizer.
type InstallmentUpdate struct {
	TransactionID       string
	InstallmentNumber   int
	InstallmentCount    int
	Amount              decimal.Decimal
	TotalAmount         decimal.Decimal
	Date                civil.Date
	Description         string
	LastInstallmentDate civil.Date
}

// installmentMarker matches a trailing " (k/N)" installment marker.
var installmentMarker = regexp.MustCompile(`\s*\(\s*\d+\s*/\s*\d+\s*\)\s*$`)

// HasInstallmentMarker reports whether desc ends with a "(k/N)" marker.
func HasInstallmentMarker(desc string) bool {
	return installmentMarker.MatchString(desc)
}

// StripInstallmentMarker removes a trailing "(k/N)" marker and surrounding spaces.
func StripInstallmentMarker(desc string) string {
	return strings.TrimSpace(installmentMarker.ReplaceAllString(desc, ""))
}
