// Package installments splits purchases into monthly installments and
// repairs installment groups already stored.
package installments

import (
	"errors"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/card-ledger/internal/calendar"
	"github.com/dvloznov/card-ledger/internal/domain"
	"github.com/dvloznov/card-ledger/internal/money"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidInstallmentCount rejects plans with fewer than two installments.
	ErrInvalidInstallmentCount = errors.New("installment count must be at least 2")

	// ErrNonPositiveAmount rejects plans for a zero or negative total.
	ErrNonPositiveAmount = errors.New("installment total must be positive")
)

// Plan is the forward schedule of one purchase.
type Plan struct {
	PerInstallment decimal.Decimal `json:"per_installment"`
	DueDates       []civil.Date    `json:"due_dates"`
	LastDate       civil.Date      `json:"last_date"`
}

// PlanInstallments splits total into count monthly installments starting on
// start. The per-installment amount is total/count rounded to cents; the
// rounding remainder is not redistributed, so the installments may add up to
// the total give or take count cents.
func PlanInstallments(start civil.Date, count int, total decimal.Decimal) (Plan, error) {
	if count < 2 {
		return Plan{}, fmt.Errorf("PlanInstallments: count %d: %w", count, ErrInvalidInstallmentCount)
	}
	if !total.IsPositive() {
		return Plan{}, fmt.Errorf("PlanInstallments: total %s: %w", total, ErrNonPositiveAmount)
	}

	dates := make([]civil.Date, count)
	for i := range dates {
		dates[i] = calendar.AddMonths(start, i)
	}

	return Plan{
		PerInstallment: perInstallment(total, count),
		DueDates:       dates,
		LastDate:       dates[count-1],
	}, nil
}

// ExpandPurchase turns a single purchase into count installment transactions.
// tx.Amount is the purchase total and tx.Date the first due date. The
// returned rows get fresh IDs and "base (k/N)" descriptions.
func ExpandPurchase(tx *domain.Transaction, count int) ([]*domain.Transaction, error) {
	plan, err := PlanInstallments(tx.Date, count, tx.Amount)
	if err != nil {
		return nil, fmt.Errorf("ExpandPurchase: %w", err)
	}

	base := StripInstallmentSuffix(tx.Description)
	total := money.RoundCents(tx.Amount)

	rows := make([]*domain.Transaction, count)
	for i, due := range plan.DueDates {
		row := *tx
		row.TransactionID = uuid.NewString()
		row.Amount = plan.PerInstallment
		row.Date = due
		row.Description = InstallmentDescription(base, i+1, count)
		row.IsInstallment = true
		row.InstallmentNumber = i + 1
		row.InstallmentCount = count
		row.TotalAmount = total
		row.LastInstallmentDate = plan.LastDate
		rows[i] = &row
	}
	return rows, nil
}

// InstallmentDescription renders "base (k/N)".
func InstallmentDescription(base string, number, count int) string {
	return fmt.Sprintf("%s (%d/%d)", base, number, count)
}

func perInstallment(total decimal.Decimal, count int) decimal.Decimal {
	return total.DivRound(decimal.NewFromInt(int64(count)), 2)
}
