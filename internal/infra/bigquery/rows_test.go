package bigquery

import (
	"math/big"
	"testing"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/card-ledger/internal/billing"
	"github.com/dvloznov/card-ledger/internal/domain"
	"github.com/dvloznov/card-ledger/internal/installments"
	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
)

var (
	_ billing.CardRepository    = (*BigQueryRepository)(nil)
	_ billing.BillRepository    = (*BigQueryRepository)(nil)
	_ billing.TransactionReader = (*BigQueryRepository)(nil)
	_ installments.Repository   = (*BigQueryRepository)(nil)
)

func TestDecimalRatRoundTrip(t *testing.T) {
	for _, s := range []string{"0", "0.01", "1234.56", "-12.5", "333.33"} {
		d := decimal.RequireFromString(s)
		if got := decimalFromRat(ratFromDecimal(d)); !got.Equal(d) {
			t.Errorf("round trip of %s = %s", s, got)
		}
	}
	if got := decimalFromRat(nil); !got.IsZero() {
		t.Errorf("decimalFromRat(nil) = %s, want 0", got)
	}
	if nullRat(decimal.Zero) != nil {
		t.Error("nullRat(0) should be NULL")
	}
}

func TestTransactionRowFromDomain(t *testing.T) {
	tx := &domain.Transaction{
		TransactionID:     "t1",
		UserID:            "u1",
		CardID:            "c1",
		Amount:            decimal.RequireFromString("333.333"),
		Date:              civil.Date{Year: 2025, Month: 3, Day: 10},
		Type:              domain.TransactionTypeExpense,
		Description:       "TV (1/3)",
		IsInstallment:     true,
		InstallmentCount:  3,
		InstallmentNumber: 1,
		TotalAmount:       decimal.RequireFromString("1000"),
	}

	row := transactionRowFromDomain(tx)

	if row.Amount.Cmp(big.NewRat(33333, 100)) != 0 {
		t.Errorf("Amount = %s, want 333.33", row.Amount.FloatString(2))
	}
	if row.PaymentMethod.Valid {
		t.Error("empty payment method should be NULL")
	}
	if row.LastInstallmentDate.Valid {
		t.Error("zero last installment date should be NULL")
	}
	if want := (bigquery.NullInt64{Int64: 3, Valid: true}); row.InstallmentCount != want {
		t.Errorf("InstallmentCount = %+v, want %+v", row.InstallmentCount, want)
	}
	if row.CreatedTS.IsZero() {
		t.Error("CreatedTS should default to now")
	}

	back := row.toDomain()
	back.CreatedTS = tx.CreatedTS
	want := *tx
	want.Amount = decimal.RequireFromString("333.33")
	if diff := cmp.Diff(&want, back); diff != "" {
		t.Errorf("toDomain mismatch (-want +got):\n%s", diff)
	}
}

func TestBillRowToDomain(t *testing.T) {
	row := &BillRow{
		BillID:      "b1",
		UserID:      "u1",
		CardID:      "c1",
		Month:       10,
		Year:        2025,
		TotalAmount: big.NewRat(15025, 100),
		PaidAmount:  big.NewRat(0, 1),
		Status:      "closed",
		Version:     4,
	}

	bill := row.toDomain()

	if bill.BillKey != (domain.BillKey{CardID: "c1", Month: 10, Year: 2025}) {
		t.Errorf("BillKey = %+v", bill.BillKey)
	}
	if !bill.TotalAmount.Equal(decimal.RequireFromString("150.25")) {
		t.Errorf("TotalAmount = %s, want 150.25", bill.TotalAmount)
	}
	if bill.Status != domain.BillStatusClosed || bill.Version != 4 {
		t.Errorf("Status/Version = %q/%d", bill.Status, bill.Version)
	}
}
