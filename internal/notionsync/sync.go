package notionsync

import (
	"context"
	"fmt"

	"github.com/dvloznov/card-ledger/internal/domain"
	"github.com/dvloznov/card-ledger/internal/logger"
	"github.com/jomei/notionapi"
)

// BillSource lists the bills to mirror.
type BillSource interface {
	ListActiveCards(ctx context.Context) ([]*domain.Card, error)
	ListBills(ctx context.Context, cardID string) ([]*domain.Bill, error)
}

// SyncReport counts what a sync did, or would do in dry-run mode.
type SyncReport struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

// SyncBills mirrors the bills of every active card into a Notion database.
// Pages are matched by bill key. A page whose stored version equals the
// bill's version is left alone, and pages of bills that no longer exist are
// archived. A failed page write is logged and counted; the sync continues.
func SyncBills(ctx context.Context, source BillSource, pages BillPages, dryRun bool) (*SyncReport, error) {
	log := logger.FromContext(ctx)

	log.Info().Bool("dry_run", dryRun).Msg("Starting bills sync to Notion")

	cards, err := source.ListActiveCards(ctx)
	if err != nil {
		return nil, fmt.Errorf("SyncBills: listing cards: %w", err)
	}

	type billWithCard struct {
		bill     *domain.Bill
		cardName string
	}
	var bills []billWithCard
	valid := make(map[string]bool)
	for _, card := range cards {
		cardBills, err := source.ListBills(ctx, card.CardID)
		if err != nil {
			return nil, fmt.Errorf("SyncBills: listing bills of %s: %w", card.CardID, err)
		}
		for _, b := range cardBills {
			bills = append(bills, billWithCard{bill: b, cardName: card.Name})
			valid[b.BillKey.String()] = true
		}
	}

	log.Info().Int("bill_count", len(bills)).Msg("Retrieved bills")

	notionPages, err := queryAllPages(ctx, pages)
	if err != nil {
		return nil, fmt.Errorf("SyncBills: %w", err)
	}

	log.Info().Int("notion_page_count", len(notionPages)).Msg("Retrieved existing Notion pages")

	report := &SyncReport{}
	existing := make(map[string]notionapi.Page)
	for _, page := range notionPages {
		key := extractBillKey(page)

		// Pages without a key or for a bill that is gone are archived.
		if key == "" || !valid[key] {
			if dryRun {
				log.Info().Str("bill", key).Str("page_id", string(page.ID)).Msg("[DRY RUN] Would delete stale Notion page")
				report.Deleted++
				continue
			}
			if err := pages.ArchivePage(ctx, string(page.ID)); err != nil {
				log.Warn().Err(err).Str("bill", key).Str("page_id", string(page.ID)).Msg("Failed to delete stale Notion page")
				report.Failed++
				continue
			}
			report.Deleted++
			continue
		}
		existing[key] = page
	}

	for _, item := range bills {
		key := item.bill.BillKey.String()
		page, found := existing[key]

		if found && extractVersion(page) == item.bill.Version {
			report.Skipped++
			continue
		}

		if dryRun {
			if found {
				log.Info().Str("bill", key).Msg("[DRY RUN] Would update Notion page")
				report.Updated++
			} else {
				log.Info().Str("bill", key).Msg("[DRY RUN] Would create Notion page")
				report.Created++
			}
			continue
		}

		props := BillToNotionProperties(item.bill, item.cardName)
		if found {
			if _, err := pages.UpdatePage(ctx, string(page.ID), props); err != nil {
				log.Warn().Err(err).Str("bill", key).Str("page_id", string(page.ID)).Msg("Failed to update Notion page")
				report.Failed++
				continue
			}
			report.Updated++
			continue
		}

		created, err := pages.CreatePage(ctx, props)
		if err != nil {
			log.Warn().Err(err).Str("bill", key).Msg("Failed to create Notion page")
			report.Failed++
			continue
		}
		log.Debug().Str("bill", key).Str("page_id", string(created.ID)).Msg("Created Notion page")
		report.Created++
	}

	log.Info().
		Int("created", report.Created).
		Int("updated", report.Updated).
		Int("skipped", report.Skipped).
		Int("deleted", report.Deleted).
		Int("failed", report.Failed).
		Msg("Bills sync completed")

	return report, nil
}

// queryAllPages follows the query cursor until every row is read.
func queryAllPages(ctx context.Context, pages BillPages) ([]notionapi.Page, error) {
	var all []notionapi.Page
	var cursor notionapi.Cursor

	for {
		resp, err := pages.QueryPages(ctx, cursor)
		if err != nil {
			return nil, fmt.Errorf("queryAllPages: %w", err)
		}

		all = append(all, resp.Results...)

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return all, nil
}
