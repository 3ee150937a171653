package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/dvloznov/card-ledger/internal/installments"
)

func TestRunPeriod(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	out := &bytes.Buffer{}

	err := runPeriod(context.Background(), []string{"--closing-day=31", "--due-day=10", "--month=4", "--year=2025"}, out)
	if err != nil {
		t.Fatalf("runPeriod() error = %v", err)
	}

	var got map[string]string
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("decoding output %q: %v", out.String(), err)
	}
	want := map[string]string{
		"period_start": "2025-04-01",
		"period_end":   "2025-05-01",
		"closing_date": "2025-05-01",
		"due_date":     "2025-05-10",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
}

func TestRunPeriod_Usage(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no days", []string{"--month=4"}},
		{"bad month", []string{"--closing-day=5", "--due-day=10", "--month=0"}},
		{"day out of range", []string{"--closing-day=32", "--due-day=10"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runPeriod(context.Background(), tt.args, &bytes.Buffer{})
			if !errors.Is(err, errUsage) {
				t.Errorf("error = %v, want usage error", err)
			}
		})
	}
}

func TestRunPlan(t *testing.T) {
	out := &bytes.Buffer{}

	err := runPlan(context.Background(), []string{"--start=31/01/2025", "--count=3", "--total=R$ 100,00"}, out)
	if err != nil {
		t.Fatalf("runPlan() error = %v", err)
	}

	var plan installments.Plan
	if err := json.Unmarshal(out.Bytes(), &plan); err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	if plan.PerInstallment.String() != "33.33" {
		t.Errorf("PerInstallment = %s, want 33.33", plan.PerInstallment)
	}
	if plan.LastDate.String() != "2025-03-31" {
		t.Errorf("LastDate = %s, want 2025-03-31", plan.LastDate)
	}
}

func TestRunPlan_RejectsSingleInstallment(t *testing.T) {
	err := runPlan(context.Background(), []string{"--start=2025-01-31", "--count=1", "--total=100"}, &bytes.Buffer{})
	if !errors.Is(err, installments.ErrInvalidInstallmentCount) {
		t.Errorf("error = %v, want ErrInvalidInstallmentCount", err)
	}
}

func TestRunGenerateBills_EmptyMemoryStore(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	out := &bytes.Buffer{}

	if err := runGenerateBills(context.Background(), []string{"--log-level=error"}, out); err != nil {
		t.Fatalf("runGenerateBills() error = %v", err)
	}

	var report struct {
		CardsProcessed int               `json:"cards_processed"`
		Bills          []json.RawMessage `json:"bills"`
	}
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	if report.CardsProcessed != 0 || len(report.Bills) != 0 {
		t.Errorf("report = %+v, want empty", report)
	}
}

func TestRunRepairInstallments_NegativeLimit(t *testing.T) {
	err := runRepairInstallments(context.Background(), []string{"--limit=-1"}, &bytes.Buffer{})
	if !errors.Is(err, errUsage) {
		t.Errorf("error = %v, want usage error", err)
	}
}
