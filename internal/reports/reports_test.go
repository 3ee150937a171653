package reports

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/card-ledger/internal/installments"
	"github.com/shopspring/decimal"
)

// MockObjectStore keeps objects in a map keyed by "bucket/object".
type MockObjectStore struct {
	objects      map[string][]byte
	contentTypes map[string]string
	WriteErr     error
}

func NewMockObjectStore() *MockObjectStore {
	return &MockObjectStore{objects: map[string][]byte{}, contentTypes: map[string]string{}}
}

func (m *MockObjectStore) WriteObject(ctx context.Context, bucket, object string, data []byte, contentType string) error {
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.objects[bucket+"/"+object] = data
	m.contentTypes[bucket+"/"+object] = contentType
	return nil
}

func (m *MockObjectStore) ReadObject(ctx context.Context, bucket, object string) ([]byte, error) {
	data, ok := m.objects[bucket+"/"+object]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func sampleReport() *installments.Report {
	return &installments.Report{
		RunID:          "run-1",
		StartedAt:      time.Date(2025, 10, 17, 23, 30, 0, 0, time.UTC),
		Execute:        true,
		GroupsFound:    2,
		UpdatesPlanned: 3,
		UpdatesApplied: 3,
		Corrections: []installments.Correction{{
			Key:            installments.GroupKey{UserID: "u1", BaseDescription: "Fridge"},
			Count:          3,
			TotalAmount:    decimal.RequireFromString("1000"),
			PerInstallment: decimal.RequireFromString("333.33"),
			NeedsAmountFix: true,
		}},
	}
}

func TestArchive_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	store := NewMockObjectStore()
	archive := NewArchive(store, "reports-bucket")

	uri, err := archive.SaveRepairReport(ctx, sampleReport())
	if err != nil {
		t.Fatalf("SaveRepairReport() error = %v", err)
	}
	if want := "gs://reports-bucket/installment-repairs/2025-10-17/run-1.json"; uri != want {
		t.Errorf("uri = %q, want %q", uri, want)
	}
	if ct := store.contentTypes["reports-bucket/installment-repairs/2025-10-17/run-1.json"]; ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}

	loaded, err := archive.LoadRepairReport(ctx, uri)
	if err != nil {
		t.Fatalf("LoadRepairReport() error = %v", err)
	}
	if loaded.RunID != "run-1" || loaded.UpdatesApplied != 3 || len(loaded.Corrections) != 1 {
		t.Errorf("loaded report = %+v", loaded)
	}
	if !loaded.Corrections[0].PerInstallment.Equal(decimal.RequireFromString("333.33")) {
		t.Errorf("PerInstallment = %s", loaded.Corrections[0].PerInstallment)
	}
}

func TestArchive_SaveError(t *testing.T) {
	store := NewMockObjectStore()
	store.WriteErr = errors.New("permission denied")

	_, err := NewArchive(store, "b").SaveRepairReport(context.Background(), sampleReport())
	if !errors.Is(err, store.WriteErr) {
		t.Errorf("error = %v, want wrapped write error", err)
	}
}

func TestParseGCSURI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{"gs://bucket/a/b.json", "bucket", "a/b.json", false},
		{"gs://bucket", "", "", true},
		{"gs:///object", "", "", true},
		{"https://bucket/object", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := ParseGCSURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseGCSURI() error = %v, wantErr %v", err, tt.wantErr)
			}
			if bucket != tt.wantBucket || object != tt.wantObject {
				t.Errorf("ParseGCSURI() = %q, %q", bucket, object)
			}
		})
	}
}
