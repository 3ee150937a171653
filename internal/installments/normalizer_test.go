package installments

import (
	"context"
	"errors"
	"testing"

	"github.com/dvloznov/card-ledger/internal/domain"
	"github.com/dvloznov/card-ledger/internal/store/memory"
)

type countingRepo struct {
	*memory.Store
	writes  int
	failFor string
}

func (r *countingRepo) UpdateInstallment(ctx context.Context, u domain.InstallmentUpdate) error {
	if u.TransactionID == r.failFor {
		return errors.New("write rejected")
	}
	r.writes++
	return r.Store.UpdateInstallment(ctx, u)
}

func seedLegacy(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	err := store.InsertTransactions(context.Background(), []*domain.Transaction{
		row("f1", "Fridge (1/3)", "1000", "2025-01-10", 1, 3),
		row("f2", "Fridge (2/3)", "1000", "2025-02-10", 2, 3),
		row("f3", "Fridge (3/3)", "1000", "2025-03-10", 3, 3),
		row("s1", "Sofa (1/4)", "250", "2025-01-05", 1, 4),
		{TransactionID: "x", UserID: "u2", Description: "Groceries", Amount: dec("80"), Date: date("2025-01-02")},
	})
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func TestNormalizer_DryRunWritesNothing(t *testing.T) {
	repo := &countingRepo{Store: seedLegacy(t)}

	report, err := NewNormalizer(repo).Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if repo.writes != 0 {
		t.Errorf("dry run wrote %d rows", repo.writes)
	}
	if report.GroupsFound != 2 || report.UpdatesPlanned != 3 || report.UpdatesApplied != 0 {
		t.Errorf("report = found %d planned %d applied %d, want 2/3/0",
			report.GroupsFound, report.UpdatesPlanned, report.UpdatesApplied)
	}
	if len(report.Anomalies) != 1 || report.Anomalies[0].Anomaly != AnomalyMissingRows {
		t.Errorf("Anomalies = %+v, want one missing_rows", report.Anomalies)
	}
}

func TestNormalizer_ExecuteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := &countingRepo{Store: seedLegacy(t)}
	n := NewNormalizer(repo)

	first, err := n.Run(ctx, RunOptions{Execute: true})
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if first.UpdatesApplied != 3 || first.GroupsAmountFix != 1 {
		t.Errorf("first pass applied %d, amount fixes %d, want 3/1", first.UpdatesApplied, first.GroupsAmountFix)
	}

	tx, ok := repo.Transaction("f2")
	if !ok {
		t.Fatal("f2 missing")
	}
	if !tx.Amount.Equal(dec("333.33")) || !tx.TotalAmount.Equal(dec("1000")) {
		t.Errorf("f2 amount/total = %s/%s, want 333.33/1000", tx.Amount, tx.TotalAmount)
	}

	repo.writes = 0
	second, err := n.Run(ctx, RunOptions{Execute: true})
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if repo.writes != 0 || second.UpdatesPlanned != 0 {
		t.Errorf("second pass wrote %d rows and planned %d, want 0", repo.writes, second.UpdatesPlanned)
	}
}

func TestNormalizer_RecordsFailuresAndContinues(t *testing.T) {
	repo := &countingRepo{Store: seedLegacy(t), failFor: "f2"}

	report, err := NewNormalizer(repo).Run(context.Background(), RunOptions{Execute: true})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if report.UpdatesApplied != 2 {
		t.Errorf("UpdatesApplied = %d, want 2", report.UpdatesApplied)
	}
	if len(report.Failures) != 1 || report.Failures[0].TransactionID != "f2" {
		t.Errorf("Failures = %+v, want one for f2", report.Failures)
	}
}

func TestNormalizer_UserAndLimit(t *testing.T) {
	repo := &countingRepo{Store: seedLegacy(t)}
	n := NewNormalizer(repo)

	report, err := n.Run(context.Background(), RunOptions{UserID: "u2", Execute: true})
	if err != nil {
		t.Fatal(err)
	}
	if report.GroupsFound != 0 || repo.writes != 0 {
		t.Errorf("user u2: groups %d writes %d, want 0/0", report.GroupsFound, repo.writes)
	}

	report, err = n.Run(context.Background(), RunOptions{Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if report.GroupsAnalyzed != 1 {
		t.Errorf("GroupsAnalyzed = %d, want 1", report.GroupsAnalyzed)
	}
}
