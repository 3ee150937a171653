package installments

import (
	"errors"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/card-ledger/internal/domain"
	"github.com/dvloznov/card-ledger/internal/money"
	"github.com/shopspring/decimal"
)

func date(s string) civil.Date {
	d, err := civil.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPlanInstallments_TwelveMonths(t *testing.T) {
	plan, err := PlanInstallments(date("2025-01-15"), 12, dec("6000"))
	if err != nil {
		t.Fatalf("PlanInstallments() error = %v", err)
	}

	if !plan.PerInstallment.Equal(dec("500")) {
		t.Errorf("PerInstallment = %s, want 500.00", plan.PerInstallment)
	}
	if len(plan.DueDates) != 12 {
		t.Fatalf("len(DueDates) = %d, want 12", len(plan.DueDates))
	}
	if plan.DueDates[0] != date("2025-01-15") {
		t.Errorf("DueDates[0] = %s, want 2025-01-15", plan.DueDates[0])
	}
	if plan.DueDates[11] != date("2025-12-15") {
		t.Errorf("DueDates[11] = %s, want 2025-12-15", plan.DueDates[11])
	}
	if plan.LastDate != date("2025-12-15") {
		t.Errorf("LastDate = %s, want 2025-12-15", plan.LastDate)
	}
}

func TestPlanInstallments_EndOfMonthRollsOver(t *testing.T) {
	plan, err := PlanInstallments(date("2025-01-31"), 3, dec("90"))
	if err != nil {
		t.Fatal(err)
	}
	want := []civil.Date{date("2025-01-31"), date("2025-03-03"), date("2025-03-31")}
	for i, w := range want {
		if plan.DueDates[i] != w {
			t.Errorf("DueDates[%d] = %s, want %s", i, plan.DueDates[i], w)
		}
	}
}

func TestPlanInstallments_Properties(t *testing.T) {
	starts := []string{"2024-01-31", "2024-02-29", "2025-05-30", "2025-12-15"}
	totals := []string{"0.01", "100", "999.99", "1234.56", "10000"}

	for _, start := range starts {
		for _, total := range totals {
			for count := 2; count <= 24; count++ {
				plan, err := PlanInstallments(date(start), count, dec(total))
				if err != nil {
					t.Fatalf("PlanInstallments(%s, %d, %s) error = %v", start, count, total, err)
				}
				if len(plan.DueDates) != count {
					t.Fatalf("len(DueDates) = %d, want %d", len(plan.DueDates), count)
				}
				for i := 1; i < count; i++ {
					if !plan.DueDates[i-1].Before(plan.DueDates[i]) {
						t.Errorf("start=%s count=%d: DueDates not increasing at %d", start, count, i)
					}
				}
				sum := plan.PerInstallment.Mul(decimal.NewFromInt(int64(count)))
				if !money.WithinCents(sum, dec(total), int64(count)) {
					t.Errorf("count=%d total=%s: installments sum to %s", count, total, sum)
				}
				if plan.LastDate != plan.DueDates[count-1] {
					t.Errorf("LastDate = %s, want %s", plan.LastDate, plan.DueDates[count-1])
				}
			}
		}
	}
}

func TestPlanInstallments_Validation(t *testing.T) {
	tests := []struct {
		name    string
		count   int
		total   string
		wantErr error
	}{
		{"count zero", 0, "100", ErrInvalidInstallmentCount},
		{"count one", 1, "100", ErrInvalidInstallmentCount},
		{"negative count", -3, "100", ErrInvalidInstallmentCount},
		{"zero total", 3, "0", ErrNonPositiveAmount},
		{"negative total", 3, "-10", ErrNonPositiveAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PlanInstallments(date("2025-01-01"), tt.count, dec(tt.total))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("PlanInstallments() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestExpandPurchase(t *testing.T) {
	purchase := &domain.Transaction{
		UserID:        "u1",
		CardID:        "c1",
		PaymentMethod: "credit",
		CategoryID:    "electronics",
		Amount:        dec("1000"),
		Date:          date("2025-03-10"),
		Type:          domain.TransactionTypeExpense,
		Description:   "Laptop",
	}

	rows, err := ExpandPurchase(purchase, 3)
	if err != nil {
		t.Fatalf("ExpandPurchase() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("len(rows) = %d, want 3", len(rows))
	}

	wantDesc := []string{"Laptop (1/3)", "Laptop (2/3)", "Laptop (3/3)"}
	wantDates := []string{"2025-03-10", "2025-04-10", "2025-05-10"}
	seen := map[string]bool{}
	for i, row := range rows {
		if row.Description != wantDesc[i] {
			t.Errorf("rows[%d].Description = %q, want %q", i, row.Description, wantDesc[i])
		}
		if row.Date != date(wantDates[i]) {
			t.Errorf("rows[%d].Date = %s, want %s", i, row.Date, wantDates[i])
		}
		if !row.Amount.Equal(dec("333.33")) || !row.TotalAmount.Equal(dec("1000")) {
			t.Errorf("rows[%d] amount/total = %s/%s, want 333.33/1000", i, row.Amount, row.TotalAmount)
		}
		if !row.IsInstallment || row.InstallmentNumber != i+1 || row.InstallmentCount != 3 {
			t.Errorf("rows[%d] installment fields = %v %d/%d", i, row.IsInstallment, row.InstallmentNumber, row.InstallmentCount)
		}
		if row.LastInstallmentDate != date("2025-05-10") {
			t.Errorf("rows[%d].LastInstallmentDate = %s", i, row.LastInstallmentDate)
		}
		if row.CardID != "c1" || row.CategoryID != "electronics" {
			t.Errorf("rows[%d] lost purchase fields: %+v", i, row)
		}
		if row.TransactionID == "" || seen[row.TransactionID] {
			t.Errorf("rows[%d] has empty or duplicate ID %q", i, row.TransactionID)
		}
		seen[row.TransactionID] = true
	}

	if purchase.Description != "Laptop" || !purchase.Amount.Equal(dec("1000")) {
		t.Error("ExpandPurchase modified its input")
	}
}

func TestExpandPurchase_RejectsSingleInstallment(t *testing.T) {
	_, err := ExpandPurchase(&domain.Transaction{Amount: dec("10"), Date: date("2025-01-01")}, 1)
	if !errors.Is(err, ErrInvalidInstallmentCount) {
		t.Errorf("error = %v, want ErrInvalidInstallmentCount", err)
	}
}
