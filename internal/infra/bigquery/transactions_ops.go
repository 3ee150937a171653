package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/card-ledger/internal/domain"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

const transactionColumns = `
			transaction_id,
			user_id,
			card_id,
			payment_method,
			category_id,
			amount,
			date,
			type,
			description,
			is_installment,
			installment_count,
			installment_number,
			total_amount,
			last_installment_date,
			created_ts,
			updated_ts`

// installmentMarkerPattern mirrors domain.HasInstallmentMarker in RE2 syntax.
const installmentMarkerPattern = `\(\s*\d+\s*/\s*\d+\s*\)\s*$`

// InsertTransactionsWithClient streams new transactions into the
// transactions table, assigning IDs where missing.
func InsertTransactionsWithClient(ctx context.Context, client *bigquery.Client, dataset string, txs []*domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	rows := make([]*TransactionRow, 0, len(txs))
	for _, tx := range txs {
		if tx.TransactionID == "" {
			tx.TransactionID = uuid.NewString()
		}
		rows = append(rows, transactionRowFromDomain(tx))
	}

	inserter := client.Dataset(dataset).Table(transactionsTable).Inserter()
	if err := inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("InsertTransactionsWithClient: inserting rows: %w", err)
	}

	return nil
}

// ListCardTransactionsWithClient returns cardID's transactions dated within
// [start, end].
func ListCardTransactionsWithClient(ctx context.Context, client *bigquery.Client, dataset, cardID string, start, end civil.Date) ([]*domain.Transaction, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT%s
		FROM %s
		WHERE card_id = @card_id
		  AND date >= @start_date
		  AND date <= @end_date
		ORDER BY date, transaction_id
	`, transactionColumns, fullTable(client, dataset, transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "card_id", Value: cardID},
		{Name: "start_date", Value: start},
		{Name: "end_date", Value: end},
	}

	txs, err := readTransactions(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ListCardTransactionsWithClient: %w", err)
	}
	return txs, nil
}

// ListInstallmentCandidatesWithClient returns rows flagged as installments or
// whose description ends in a "(k/N)" marker. An empty userID covers all users.
func ListInstallmentCandidatesWithClient(ctx context.Context, client *bigquery.Client, dataset, userID string) ([]*domain.Transaction, error) {
	q := client.Query(fmt.Sprintf(`
		SELECT%s
		FROM %s
		WHERE (is_installment OR REGEXP_CONTAINS(description, @marker))
		  AND (@user_id = '' OR user_id = @user_id)
		ORDER BY user_id, date, transaction_id
	`, transactionColumns, fullTable(client, dataset, transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "marker", Value: installmentMarkerPattern},
		{Name: "user_id", Value: userID},
	}

	txs, err := readTransactions(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ListInstallmentCandidatesWithClient: %w", err)
	}
	return txs, nil
}

// UpdateInstallmentWithClient rewrites the installment fields of one row.
func UpdateInstallmentWithClient(ctx context.Context, client *bigquery.Client, dataset string, u domain.InstallmentUpdate) error {
	q := client.Query(fmt.Sprintf(`
		UPDATE %s
		SET
			is_installment = TRUE,
			installment_number = @installment_number,
			installment_count = @installment_count,
			amount = @amount,
			total_amount = @total_amount,
			date = @date,
			description = @description,
			last_installment_date = @last_installment_date,
			updated_ts = @updated_ts
		WHERE transaction_id = @transaction_id
	`, fullTable(client, dataset, transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "transaction_id", Value: u.TransactionID},
		{Name: "installment_number", Value: u.InstallmentNumber},
		{Name: "installment_count", Value: u.InstallmentCount},
		{Name: "amount", Value: ratFromDecimal(u.Amount)},
		{Name: "total_amount", Value: ratFromDecimal(u.TotalAmount)},
		{Name: "date", Value: u.Date},
		{Name: "description", Value: u.Description},
		{Name: "last_installment_date", Value: nullDate(u.LastInstallmentDate)},
		{Name: "updated_ts", Value: time.Now().UTC()},
	}

	affected, err := runDML(ctx, q)
	if err != nil {
		return fmt.Errorf("UpdateInstallmentWithClient: %s: %w", u.TransactionID, err)
	}
	if affected == 0 {
		return fmt.Errorf("UpdateInstallmentWithClient: transaction not found: %s", u.TransactionID)
	}
	return nil
}

func readTransactions(ctx context.Context, q *bigquery.Query) ([]*domain.Transaction, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("query read: %w", err)
	}

	var txs []*domain.Transaction
	for {
		var row TransactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iter next: %w", err)
		}
		txs = append(txs, row.toDomain())
	}
	return txs, nil
}
