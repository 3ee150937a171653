package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/card-ledger/internal/domain"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

const billColumns = `
			bill_id,
			user_id,
			card_id,
			month,
			year,
			period_start,
			period_end,
			closing_date,
			due_date,
			total_amount,
			paid_amount,
			is_paid,
			status,
			version,
			created_ts,
			updated_ts`

// FindBillWithClient returns the bill stored for key, or nil when none exists.
func FindBillWithClient(ctx context.Context, client *bigquery.Client, dataset string, key domain.BillKey) (*domain.Bill, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT%s
		FROM %s
		WHERE card_id = @card_id AND month = @month AND year = @year
		LIMIT 1
	`, billColumns, fullTable(client, dataset, billsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "card_id", Value: key.CardID},
		{Name: "month", Value: key.Month},
		{Name: "year", Value: key.Year},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("FindBillWithClient: reading query: %w", err)
	}

	var row BillRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindBillWithClient: iterating: %w", err)
	}

	return row.toDomain(), nil
}

// SaveBillWithClient writes bill with a single MERGE statement. The update
// branch only matches the row at expectedVersion and the insert branch only
// fires when expectedVersion is 0, so a statement that touches no row means
// another writer got there first.
func SaveBillWithClient(ctx context.Context, client *bigquery.Client, dataset string, bill *domain.Bill, expectedVersion int64) error {
	if bill.BillID == "" {
		bill.BillID = uuid.NewString()
	}
	newVersion := expectedVersion + 1

	q := client.Query(fmt.Sprintf(`
		MERGE %s T
		USING (SELECT @card_id AS card_id, @month AS month, @year AS year) S
		ON T.card_id = S.card_id AND T.month = S.month AND T.year = S.year
		WHEN MATCHED AND T.version = @expected_version THEN
		  UPDATE SET
			user_id = @user_id,
			period_start = @period_start,
			period_end = @period_end,
			closing_date = @closing_date,
			due_date = @due_date,
			total_amount = @total_amount,
			paid_amount = @paid_amount,
			is_paid = @is_paid,
			status = @status,
			version = @new_version,
			updated_ts = @updated_ts
		WHEN NOT MATCHED AND @expected_version = 0 THEN
		  INSERT (%s)
		  VALUES (
			@bill_id, @user_id, @card_id, @month, @year,
			@period_start, @period_end, @closing_date, @due_date,
			@total_amount, @paid_amount, @is_paid, @status,
			@new_version, @created_ts, @updated_ts
		  )
	`, fullTable(client, dataset, billsTable), billColumns))

	q.Parameters = []bigquery.QueryParameter{
		{Name: "bill_id", Value: bill.BillID},
		{Name: "user_id", Value: bill.UserID},
		{Name: "card_id", Value: bill.CardID},
		{Name: "month", Value: bill.Month},
		{Name: "year", Value: bill.Year},
		{Name: "period_start", Value: bill.PeriodStart},
		{Name: "period_end", Value: bill.PeriodEnd},
		{Name: "closing_date", Value: bill.ClosingDate},
		{Name: "due_date", Value: bill.DueDate},
		{Name: "total_amount", Value: ratFromDecimal(bill.TotalAmount)},
		{Name: "paid_amount", Value: ratFromDecimal(bill.PaidAmount)},
		{Name: "is_paid", Value: bill.IsPaid},
		{Name: "status", Value: string(bill.Status)},
		{Name: "expected_version", Value: expectedVersion},
		{Name: "new_version", Value: newVersion},
		{Name: "created_ts", Value: bill.CreatedTS},
		{Name: "updated_ts", Value: bill.UpdatedTS},
	}

	affected, err := runDML(ctx, q)
	if err != nil {
		return fmt.Errorf("SaveBillWithClient: %s: %w", bill.BillKey, err)
	}
	if affected == 0 {
		return fmt.Errorf("SaveBillWithClient: %s at version %d: %w",
			bill.BillKey, expectedVersion, domain.ErrBillVersionConflict)
	}

	bill.Version = newVersion
	return nil
}

// ListBillsWithClient returns a card's bills ordered by year and month. An
// empty cardID lists every bill.
func ListBillsWithClient(ctx context.Context, client *bigquery.Client, dataset, cardID string) ([]*domain.Bill, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT%s
		FROM %s
		WHERE @card_id = '' OR card_id = @card_id
		ORDER BY card_id, year, month
	`, billColumns, fullTable(client, dataset, billsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "card_id", Value: cardID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListBillsWithClient: reading query: %w", err)
	}

	bills := []*domain.Bill{}
	for {
		var row BillRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListBillsWithClient: iterating: %w", err)
		}
		bills = append(bills, row.toDomain())
	}

	return bills, nil
}

// runDML runs a DML statement to completion and returns the affected row
// count, or -1 when the job reported no statistics.
func runDML(ctx context.Context, q *bigquery.Query) (int64, error) {
	job, err := q.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("job error: %w", err)
	}

	if status.Statistics != nil {
		if stats, ok := status.Statistics.Details.(*bigquery.QueryStatistics); ok {
			return stats.NumDMLAffectedRows, nil
		}
	}
	return -1, nil
}
