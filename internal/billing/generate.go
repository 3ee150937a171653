package billing

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/card-ledger/internal/calendar"
	"github.com/dvloznov/card-ledger/internal/domain"
	"github.com/dvloznov/card-ledger/internal/logger"
)

const (
	// DefaultMonthsBack is how many past cycles a generation run recomputes.
	DefaultMonthsBack = 3
	// DefaultMonthsForward is how many future cycles a generation run creates.
	DefaultMonthsForward = 1
)

// GenerateOptions selects the window of cycles to compute around Today.
type GenerateOptions struct {
	Today         civil.Date
	MonthsBack    int
	MonthsForward int
}

// DefaultGenerateOptions covers three months back and one forward.
func DefaultGenerateOptions(today civil.Date) GenerateOptions {
	return GenerateOptions{
		Today:         today,
		MonthsBack:    DefaultMonthsBack,
		MonthsForward: DefaultMonthsForward,
	}
}

// SkippedCard records a card left out of a run because of missing configuration.
type SkippedCard struct {
	CardID string `json:"card_id"`
	Reason string `json:"reason"`
}

// Failure records one bill that could not be computed or stored.
type Failure struct {
	CardID string `json:"card_id"`
	Month  int    `json:"month"`
	Year   int    `json:"year"`
	Error  string `json:"error"`
}

// GenerateReport summarizes a generation run.
type GenerateReport struct {
	CardsProcessed int            `json:"cards_processed"`
	CardsSkipped   []SkippedCard  `json:"cards_skipped,omitempty"`
	Bills          []*domain.Bill `json:"bills"`
	Failures       []Failure      `json:"failures,omitempty"`
}

// Generator recomputes bills from stored cards and transactions.
type Generator struct {
	cards CardRepository
	bills BillRepository
	txs   TransactionReader
}

// NewGenerator wires a Generator to its repositories.
func NewGenerator(cards CardRepository, bills BillRepository, txs TransactionReader) *Generator {
	return &Generator{cards: cards, bills: bills, txs: txs}
}

// GenerateBillsForAllCards computes every bill in the option window for each
// active card. Cards are processed one after the other. A card without
// closing or due day is skipped, and a failing bill is logged and recorded
// without stopping the run. Only context cancellation ends it early.
func (g *Generator) GenerateBillsForAllCards(ctx context.Context, opts GenerateOptions) (*GenerateReport, error) {
	log := logger.FromContext(ctx)

	cards, err := g.cards.ListActiveCards(ctx)
	if err != nil {
		return nil, fmt.Errorf("GenerateBillsForAllCards: listing cards: %w", err)
	}

	log.Info().
		Int("card_count", len(cards)).
		Int("months_back", opts.MonthsBack).
		Int("months_forward", opts.MonthsForward).
		Str("today", opts.Today.String()).
		Msg("Starting bill generation")

	report := &GenerateReport{Bills: []*domain.Bill{}}
	for _, card := range cards {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		g.generateForCard(ctx, card, opts, report)
	}

	log.Info().
		Int("cards_processed", report.CardsProcessed).
		Int("cards_skipped", len(report.CardsSkipped)).
		Int("bills", len(report.Bills)).
		Int("failures", len(report.Failures)).
		Msg("Bill generation finished")

	return report, nil
}

// GenerateBillsForCard runs the same window for a single card.
func (g *Generator) GenerateBillsForCard(ctx context.Context, cardID string, opts GenerateOptions) (*GenerateReport, error) {
	card, err := g.cards.GetCard(ctx, cardID)
	if err != nil {
		return nil, fmt.Errorf("GenerateBillsForCard: loading card %s: %w", cardID, err)
	}

	report := &GenerateReport{Bills: []*domain.Bill{}}
	g.generateForCard(ctx, card, opts, report)
	return report, nil
}

func (g *Generator) generateForCard(ctx context.Context, card *domain.Card, opts GenerateOptions, report *GenerateReport) {
	log := logger.FromContext(ctx)

	if !card.HasBillingConfig() {
		log.Warn().
			Str("card_id", card.CardID).
			Int("closing_day", card.ClosingDay).
			Int("due_day", card.DueDay).
			Msg("Skipping card without billing configuration")
		report.CardsSkipped = append(report.CardsSkipped, SkippedCard{
			CardID: card.CardID,
			Reason: "missing closing_day or due_day",
		})
		return
	}

	report.CardsProcessed++
	for offset := -opts.MonthsBack; offset <= opts.MonthsForward; offset++ {
		target := calendar.Date(opts.Today.Year, int(opts.Today.Month)+offset, 1)
		key := domain.BillKey{CardID: card.CardID, Month: int(target.Month), Year: target.Year}

		bill, err := g.generateBill(ctx, card, key, opts.Today)
		if err != nil {
			log.Error().
				Err(err).
				Str("card_id", card.CardID).
				Int("month", key.Month).
				Int("year", key.Year).
				Msg("Failed to generate bill")
			report.Failures = append(report.Failures, Failure{
				CardID: card.CardID,
				Month:  key.Month,
				Year:   key.Year,
				Error:  err.Error(),
			})
			continue
		}
		report.Bills = append(report.Bills, bill)
	}
}

func (g *Generator) generateBill(ctx context.Context, card *domain.Card, key domain.BillKey, today civil.Date) (*domain.Bill, error) {
	period := ComputePeriod(card.ClosingDay, key.Month, key.Year, card.DueDay)

	txs, err := g.txs.ListCardTransactions(ctx, card.CardID, period.PeriodStart, period.PeriodEnd)
	if err != nil {
		return nil, fmt.Errorf("generateBill: loading transactions: %w", err)
	}

	total := AggregateBillTotal(card.CardID, period.PeriodStart, period.PeriodEnd, txs)
	status := DeriveStatus(today, period.ClosingDate, period.DueDate, total, false)

	return UpsertBill(ctx, g.bills, ComputedBill{
		Key:         key,
		UserID:      card.UserID,
		Period:      period,
		TotalAmount: total,
		Status:      status,
	})
}
