package installments

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/card-ledger/internal/domain"
	"github.com/dvloznov/card-ledger/internal/logger"
	"github.com/google/uuid"
)

// Repository loads and rewrites installment rows.
type Repository interface {
	// ListInstallmentCandidates returns rows flagged as installments or whose
	// description carries a "(k/N)" marker. An empty userID lists all users.
	ListInstallmentCandidates(ctx context.Context, userID string) ([]*domain.Transaction, error)

	// UpdateInstallment rewrites the installment fields of one row.
	UpdateInstallment(ctx context.Context, u domain.InstallmentUpdate) error
}

// RunOptions controls a repair pass.
type RunOptions struct {
	UserID  string // empty for every user
	Limit   int    // maximum groups analyzed, 0 for no limit
	Execute bool   // false only reports
}

// WriteFailure records a row that could not be updated.
type WriteFailure struct {
	TransactionID string   `json:"transaction_id"`
	Key           GroupKey `json:"key"`
	Error         string   `json:"error"`
}

// Report summarizes a repair pass.
type Report struct {
	RunID           string         `json:"run_id"`
	StartedAt       time.Time      `json:"started_at"`
	Execute         bool           `json:"execute"`
	UserID          string         `json:"user_id,omitempty"`
	Candidates      int            `json:"candidates"`
	GroupsFound     int            `json:"groups_found"`
	GroupsAnalyzed  int            `json:"groups_analyzed"`
	GroupsSkipped   int            `json:"groups_skipped"`
	GroupsAmountFix int            `json:"groups_amount_fix"`
	UpdatesPlanned  int            `json:"updates_planned"`
	UpdatesApplied  int            `json:"updates_applied"`
	Anomalies       []Correction   `json:"anomalies,omitempty"`
	Corrections     []Correction   `json:"corrections,omitempty"`
	Failures        []WriteFailure `json:"failures,omitempty"`
}

// Normalizer runs repair passes over stored installment rows.
type Normalizer struct {
	repo Repository
}

// NewNormalizer creates a Normalizer backed by repo.
func NewNormalizer(repo Repository) *Normalizer {
	return &Normalizer{repo: repo}
}

// Run loads candidates, groups and analyzes them, and in execute mode writes
// the updates one row at a time. A failed write is recorded and the pass
// continues. Anomalous groups are reported and never written.
func (n *Normalizer) Run(ctx context.Context, opts RunOptions) (*Report, error) {
	log := logger.FromContext(ctx)

	report := &Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Execute:   opts.Execute,
		UserID:    opts.UserID,
	}

	txs, err := n.repo.ListInstallmentCandidates(ctx, opts.UserID)
	if err != nil {
		return nil, fmt.Errorf("Normalizer.Run: listing candidates: %w", err)
	}
	report.Candidates = len(txs)

	groups := IdentifyInstallmentGroups(txs)
	report.GroupsFound = len(groups)
	if opts.Limit > 0 && len(groups) > opts.Limit {
		groups = groups[:opts.Limit]
	}

	log.Info().
		Str("run_id", report.RunID).
		Bool("execute", opts.Execute).
		Str("user_id", opts.UserID).
		Int("candidates", len(txs)).
		Int("groups", len(groups)).
		Msg("Starting installment repair")

	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.GroupsAnalyzed++

		c := AnalyzeGroup(group)
		switch {
		case c.Anomaly != "":
			log.Warn().
				Str("user_id", c.Key.UserID).
				Str("description", c.Key.BaseDescription).
				Str("anomaly", string(c.Anomaly)).
				Int("rows", c.Rows).
				Int("count", c.Count).
				Msg("Installment group needs manual review")
			report.Anomalies = append(report.Anomalies, c)
			continue
		case c.Skipped:
			report.GroupsSkipped++
			continue
		case len(c.Updates) == 0:
			continue
		}

		if c.NeedsAmountFix {
			report.GroupsAmountFix++
		}
		report.UpdatesPlanned += len(c.Updates)
		report.Corrections = append(report.Corrections, c)

		log.Info().
			Str("user_id", c.Key.UserID).
			Str("description", c.Key.BaseDescription).
			Bool("needs_amount_fix", c.NeedsAmountFix).
			Str("total_amount", c.TotalAmount.StringFixed(2)).
			Str("per_installment", c.PerInstallment.StringFixed(2)).
			Int("updates", len(c.Updates)).
			Msg("Installment group needs correction")

		if !opts.Execute {
			continue
		}
		for _, u := range c.Updates {
			if err := n.repo.UpdateInstallment(ctx, u); err != nil {
				log.Error().
					Err(err).
					Str("transaction_id", u.TransactionID).
					Msg("Failed to update installment")
				report.Failures = append(report.Failures, WriteFailure{
					TransactionID: u.TransactionID,
					Key:           c.Key,
					Error:         err.Error(),
				})
				continue
			}
			report.UpdatesApplied++
		}
	}

	log.Info().
		Str("run_id", report.RunID).
		Int("groups_analyzed", report.GroupsAnalyzed).
		Int("anomalies", len(report.Anomalies)).
		Int("updates_planned", report.UpdatesPlanned).
		Int("updates_applied", report.UpdatesApplied).
		Int("failures", len(report.Failures)).
		Msg("Installment repair finished")

	return report, nil
}
