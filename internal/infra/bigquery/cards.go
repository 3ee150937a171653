package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/card-ledger/internal/domain"
)

const cardsTable = "cards"

// CardRow is a row of the cards table.
type CardRow struct {
	CardID     string             `bigquery:"card_id"`     // REQUIRED
	UserID     string             `bigquery:"user_id"`     // REQUIRED
	Name       string             `bigquery:"name"`        // REQUIRED
	ClosingDay bigquery.NullInt64 `bigquery:"closing_day"` // NULLABLE 1..31
	DueDay     bigquery.NullInt64 `bigquery:"due_day"`     // NULLABLE 1..31
	IsActive   bool               `bigquery:"is_active"`

	CreatedTS time.Time              `bigquery:"created_ts"`
	UpdatedTS bigquery.NullTimestamp `bigquery:"updated_ts"`
}

func (r *CardRow) toDomain() *domain.Card {
	return &domain.Card{
		CardID:     r.CardID,
		UserID:     r.UserID,
		Name:       r.Name,
		ClosingDay: int(r.ClosingDay.Int64),
		DueDay:     int(r.DueDay.Int64),
		IsActive:   r.IsActive,
	}
}
