package billing

import (
	"cloud.google.com/go/civil"
	"github.com/dvloznov/card-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// AggregateBillTotal sums the card's transactions dated within
// [periodStart, periodEnd]. Expenses add, income (refunds and credits) subtracts,
// investments are ignored. The result never goes below zero.
func AggregateBillTotal(cardID string, periodStart, periodEnd civil.Date, txs []*domain.Transaction) decimal.Decimal {
	sum := decimal.Zero
	for _, tx := range txs {
		if tx == nil || tx.CardID != cardID {
			continue
		}
		if tx.Date.Before(periodStart) || tx.Date.After(periodEnd) {
			continue
		}
		switch tx.Type {
		case domain.TransactionTypeExpense:
			sum = sum.Add(tx.Amount)
		case domain.TransactionTypeIncome:
			sum = sum.Sub(tx.Amount)
		}
	}
	if sum.IsNegative() {
		return decimal.Zero
	}
	return sum
}

// DeriveStatus classifies a bill. A paid bill is always paid; otherwise overdue
// is checked before closed.
func DeriveStatus(today, closingDate, dueDate civil.Date, totalAmount decimal.Decimal, alreadyPaid bool) domain.BillStatus {
	switch {
	case alreadyPaid:
		return domain.BillStatusPaid
	case today.After(dueDate) && totalAmount.IsPositive():
		return domain.BillStatusOverdue
	case today.After(closingDate):
		return domain.BillStatusClosed
	default:
		return domain.BillStatusOpen
	}
}
