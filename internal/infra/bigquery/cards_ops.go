package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/card-ledger/internal/domain"
	"google.golang.org/api/iterator"
)

const cardColumns = `
			card_id,
			user_id,
			name,
			closing_day,
			due_day,
			is_active,
			created_ts,
			updated_ts`

// ListActiveCardsWithClient returns every active card ordered by card_id.
func ListActiveCardsWithClient(ctx context.Context, client *bigquery.Client, dataset string) ([]*domain.Card, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT%s
		FROM %s
		WHERE is_active
		ORDER BY card_id
	`, cardColumns, fullTable(client, dataset, cardsTable)))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListActiveCardsWithClient: reading query: %w", err)
	}

	var cards []*domain.Card
	for {
		var row CardRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListActiveCardsWithClient: iterating: %w", err)
		}
		cards = append(cards, row.toDomain())
	}

	return cards, nil
}

// GetCardWithClient returns one card or domain.ErrCardNotFound.
func GetCardWithClient(ctx context.Context, client *bigquery.Client, dataset, cardID string) (*domain.Card, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT%s
		FROM %s
		WHERE card_id = @card_id
		LIMIT 1
	`, cardColumns, fullTable(client, dataset, cardsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "card_id", Value: cardID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetCardWithClient: reading query: %w", err)
	}

	var row CardRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, fmt.Errorf("GetCardWithClient: %s: %w", cardID, domain.ErrCardNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetCardWithClient: iterating: %w", err)
	}

	return row.toDomain(), nil
}
