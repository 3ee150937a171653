package jobs

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/card-ledger/internal/billing"
	"github.com/dvloznov/card-ledger/internal/installments"
	"github.com/dvloznov/card-ledger/internal/logger"
)

// BillGenerator is the part of billing.Generator used by jobs.
type BillGenerator interface {
	GenerateBillsForAllCards(ctx context.Context, opts billing.GenerateOptions) (*billing.GenerateReport, error)
	GenerateBillsForCard(ctx context.Context, cardID string, opts billing.GenerateOptions) (*billing.GenerateReport, error)
}

// InstallmentRepairer is the part of installments.Normalizer used by jobs.
type InstallmentRepairer interface {
	Run(ctx context.Context, opts installments.RunOptions) (*installments.Report, error)
}

// ReportArchive stores repair reports.
type ReportArchive interface {
	SaveRepairReport(ctx context.Context, report *installments.Report) (string, error)
}

// RepairResult is the stored result of a repair job.
type RepairResult struct {
	ReportURI string               `json:"report_uri,omitempty"`
	Report    *installments.Report `json:"report"`
}

// Dispatcher routes jobs to the billing generator and installment normalizer.
type Dispatcher struct {
	Generator BillGenerator
	Repairer  InstallmentRepairer
	// Archive is optional; without it repair reports are only kept in the job result.
	Archive ReportArchive
	// Today returns the reference date for bill status; defaults to the local date.
	Today func() civil.Date
}

// Handle implements JobHandler.
func (d *Dispatcher) Handle(ctx context.Context, job *Job) (any, error) {
	switch job.Type {
	case JobTypeGenerateBills:
		if job.GenerateBills == nil {
			return nil, fmt.Errorf("Handle: job %s: missing generate_bills params", job.JobID)
		}
		return d.generateBills(ctx, *job.GenerateBills)
	case JobTypeRepairInstallments:
		if job.RepairInstallments == nil {
			return nil, fmt.Errorf("Handle: job %s: missing repair_installments params", job.JobID)
		}
		return d.repairInstallments(ctx, *job.RepairInstallments)
	default:
		return nil, fmt.Errorf("Handle: unknown job type %q", job.Type)
	}
}

func (d *Dispatcher) generateBills(ctx context.Context, params GenerateBillsParams) (*billing.GenerateReport, error) {
	opts := billing.DefaultGenerateOptions(d.today())
	if params.MonthsBack > 0 {
		opts.MonthsBack = params.MonthsBack
	}
	if params.MonthsForward > 0 {
		opts.MonthsForward = params.MonthsForward
	}

	if params.CardID != "" {
		return d.Generator.GenerateBillsForCard(ctx, params.CardID, opts)
	}
	return d.Generator.GenerateBillsForAllCards(ctx, opts)
}

func (d *Dispatcher) repairInstallments(ctx context.Context, params RepairInstallmentsParams) (*RepairResult, error) {
	report, err := d.Repairer.Run(ctx, installments.RunOptions{
		UserID:  params.UserID,
		Limit:   params.Limit,
		Execute: params.Execute,
	})
	if err != nil {
		return nil, err
	}

	result := &RepairResult{Report: report}
	if d.Archive == nil {
		return result, nil
	}

	uri, err := d.Archive.SaveRepairReport(ctx, report)
	if err != nil {
		// The repair already ran; a retry would repeat it.
		log := logger.FromContext(ctx)
		log.Error().Err(err).Str("run_id", report.RunID).Msg("Failed to archive repair report")
		return result, nil
	}
	result.ReportURI = uri
	return result, nil
}

func (d *Dispatcher) today() civil.Date {
	if d.Today != nil {
		return d.Today()
	}
	return civil.DateOf(time.Now())
}
