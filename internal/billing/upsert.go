package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/card-ledger/internal/domain"
	"github.com/dvloznov/card-ledger/internal/money"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrNonPositivePayment rejects zero or negative payments.
	ErrNonPositivePayment = errors.New("payment amount must be positive")

	// ErrBillAlreadyPaid rejects payments against a settled bill.
	ErrBillAlreadyPaid = errors.New("bill already paid")
)

// ComputedBill is the result of one cycle computation, before it is merged
// with what is already stored.
type ComputedBill struct {
	Key         domain.BillKey
	UserID      string
	Period      Period
	TotalAmount decimal.Decimal
	Status      domain.BillStatus
}

// UpsertBill stores the computed bill for its (card, month, year) key.
//
// A new bill starts unpaid. An existing bill keeps its paid_amount and
// is_paid; if it is paid, its status stays paid and its stored amount and
// dates are left untouched. The write is conditioned on the version read, so
// a concurrent writer surfaces as domain.ErrBillVersionConflict instead of a
// lost update.
func UpsertBill(ctx context.Context, repo BillRepository, computed ComputedBill) (*domain.Bill, error) {
	existing, err := repo.FindBill(ctx, computed.Key)
	if err != nil {
		return nil, fmt.Errorf("UpsertBill: finding bill %s: %w", computed.Key, err)
	}

	now := time.Now().UTC()

	if existing == nil {
		bill := &domain.Bill{
			BillID:      uuid.NewString(),
			UserID:      computed.UserID,
			BillKey:     computed.Key,
			PeriodStart: computed.Period.PeriodStart,
			PeriodEnd:   computed.Period.PeriodEnd,
			ClosingDate: computed.Period.ClosingDate,
			DueDate:     computed.Period.DueDate,
			TotalAmount: money.RoundCents(computed.TotalAmount),
			PaidAmount:  decimal.Zero,
			IsPaid:      false,
			Status:      computed.Status,
			CreatedTS:   now,
			UpdatedTS:   now,
		}
		if err := repo.SaveBill(ctx, bill, 0); err != nil {
			return nil, fmt.Errorf("UpsertBill: inserting bill %s: %w", computed.Key, err)
		}
		return bill, nil
	}

	merged := *existing
	if existing.IsPaid {
		merged.Status = domain.BillStatusPaid
	} else {
		merged.PeriodStart = computed.Period.PeriodStart
		merged.PeriodEnd = computed.Period.PeriodEnd
		merged.ClosingDate = computed.Period.ClosingDate
		merged.DueDate = computed.Period.DueDate
		merged.TotalAmount = money.RoundCents(computed.TotalAmount)
		merged.Status = computed.Status
	}
	if merged.UserID == "" {
		merged.UserID = computed.UserID
	}

	if sameComputedFields(existing, &merged) {
		return existing, nil
	}

	merged.UpdatedTS = now
	if err := repo.SaveBill(ctx, &merged, existing.Version); err != nil {
		return nil, fmt.Errorf("UpsertBill: updating bill %s: %w", computed.Key, err)
	}
	return &merged, nil
}

// RecordPayment adds amount to the bill's paid_amount. Once the paid amount
// covers the total the bill is marked paid.
func RecordPayment(ctx context.Context, repo BillRepository, key domain.BillKey, amount decimal.Decimal) (*domain.Bill, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("RecordPayment: %w", ErrNonPositivePayment)
	}

	existing, err := repo.FindBill(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("RecordPayment: finding bill %s: %w", key, err)
	}
	if existing == nil {
		return nil, fmt.Errorf("RecordPayment: %s: %w", key, domain.ErrBillNotFound)
	}
	if existing.IsPaid {
		return nil, fmt.Errorf("RecordPayment: %s: %w", key, ErrBillAlreadyPaid)
	}

	bill := *existing
	bill.PaidAmount = money.RoundCents(bill.PaidAmount.Add(amount))
	if bill.PaidAmount.GreaterThanOrEqual(bill.TotalAmount) {
		bill.IsPaid = true
		bill.Status = domain.BillStatusPaid
	}
	bill.UpdatedTS = time.Now().UTC()

	if err := repo.SaveBill(ctx, &bill, existing.Version); err != nil {
		return nil, fmt.Errorf("RecordPayment: saving bill %s: %w", key, err)
	}
	return &bill, nil
}

func sameComputedFields(a, b *domain.Bill) bool {
	return a.PeriodStart == b.PeriodStart &&
		a.PeriodEnd == b.PeriodEnd &&
		a.ClosingDate == b.ClosingDate &&
		a.DueDate == b.DueDate &&
		a.TotalAmount.Equal(b.TotalAmount) &&
		a.Status == b.Status &&
		a.UserID == b.UserID
}
