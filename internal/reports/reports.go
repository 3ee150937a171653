// Package reports archives installment repair reports as JSON objects.
package reports

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/card-ledger/internal/installments"
)

// ObjectStore provides an interface for object storage operations.
type ObjectStore interface {
	WriteObject(ctx context.Context, bucket, object string, data []byte, contentType string) error
	ReadObject(ctx context.Context, bucket, object string) ([]byte, error)
}

// Archive stores repair reports under one bucket.
type Archive struct {
	store  ObjectStore
	bucket string
}

// NewArchive creates an Archive writing to bucket.
func NewArchive(store ObjectStore, bucket string) *Archive {
	return &Archive{store: store, bucket: bucket}
}

// RepairReportObject is the object name of a repair report:
// installment-repairs/<date>/<run id>.json.
func RepairReportObject(report *installments.Report) string {
	date := civil.DateOf(report.StartedAt)
	return fmt.Sprintf("installment-repairs/%s/%s.json", date, report.RunID)
}

// SaveRepairReport uploads report and returns its gs:// URI.
func (a *Archive) SaveRepairReport(ctx context.Context, report *installments.Report) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("SaveRepairReport: encoding report: %w", err)
	}

	object := RepairReportObject(report)
	if err := a.store.WriteObject(ctx, a.bucket, object, data, "application/json"); err != nil {
		return "", fmt.Errorf("SaveRepairReport: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", a.bucket, object), nil
}

// LoadRepairReport fetches a report previously saved at uri.
func (a *Archive) LoadRepairReport(ctx context.Context, uri string) (*installments.Report, error) {
	bucket, object, err := ParseGCSURI(uri)
	if err != nil {
		return nil, fmt.Errorf("LoadRepairReport: %w", err)
	}

	data, err := a.store.ReadObject(ctx, bucket, object)
	if err != nil {
		return nil, fmt.Errorf("LoadRepairReport: %w", err)
	}

	var report installments.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("LoadRepairReport: decoding %s: %w", uri, err)
	}
	return &report, nil
}
