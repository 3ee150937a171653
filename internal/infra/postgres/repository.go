// Package postgres stores cards, bills and transactions in PostgreSQL through
// a pgx connection pool. NUMERIC and DATE columns cross the wire as text and
// are parsed into decimal.Decimal and civil.Date.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/card-ledger/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository implements the card, bill and transaction repositories.
type Repository struct {
	Pool *pgxpool.Pool
}

// Open connects a pool to dsn and pings it.
func Open(ctx context.Context, dsn string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("Open: creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("Open: pinging database: %w", err)
	}
	return NewRepository(pool), nil
}

// NewRepository wraps an existing pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{Pool: pool}
}

// Close releases the pool.
func (r *Repository) Close() error {
	r.Pool.Close()
	return nil
}

// ListActiveCards returns active cards ordered by card_id.
func (r *Repository) ListActiveCards(ctx context.Context) ([]*domain.Card, error) {
	rows, err := r.Pool.Query(ctx,
		`SELECT card_id, user_id, name, closing_day, due_day, is_active
		 FROM cards
		 WHERE is_active
		 ORDER BY card_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("ListActiveCards: query: %w", err)
	}
	defer rows.Close()

	var cards []*domain.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("ListActiveCards: %w", err)
		}
		cards = append(cards, card)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListActiveCards: rows: %w", err)
	}
	return cards, nil
}

// GetCard returns one card or domain.ErrCardNotFound.
func (r *Repository) GetCard(ctx context.Context, cardID string) (*domain.Card, error) {
	row := r.Pool.QueryRow(ctx,
		`SELECT card_id, user_id, name, closing_day, due_day, is_active
		 FROM cards
		 WHERE card_id = $1`,
		cardID,
	)
	card, err := scanCard(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("GetCard: %s: %w", cardID, domain.ErrCardNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetCard: %w", err)
	}
	return card, nil
}

const billColumns = `bill_id, user_id, card_id, month, year,
	period_start::text, period_end::text, closing_date::text, due_date::text,
	total_amount::text, paid_amount::text, is_paid, status, version, created_ts, updated_ts`

// FindBill returns the bill stored for key, or nil when none exists.
func (r *Repository) FindBill(ctx context.Context, key domain.BillKey) (*domain.Bill, error) {
	row := r.Pool.QueryRow(ctx,
		`SELECT `+billColumns+`
		 FROM bills
		 WHERE card_id = $1 AND month = $2 AND year = $3`,
		key.CardID, key.Month, key.Year,
	)
	bill, err := scanBill(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindBill: %s: %w", key, err)
	}
	return bill, nil
}

// SaveBill inserts or updates bill in one statement. The conflict branch only
// updates the row still at expectedVersion and a fresh insert is only allowed
// at version 0, so no returned row means a concurrent writer won.
func (r *Repository) SaveBill(ctx context.Context, bill *domain.Bill, expectedVersion int64) error {
	if bill.BillID == "" {
		bill.BillID = uuid.NewString()
	}
	newVersion := expectedVersion + 1

	dates := []any{bill.PeriodStart.String(), bill.PeriodEnd.String(), bill.ClosingDate.String(), bill.DueDate.String()}

	var row pgx.Row
	if expectedVersion == 0 {
		row = r.Pool.QueryRow(ctx,
			`INSERT INTO bills (
				bill_id, user_id, card_id, month, year,
				period_start, period_end, closing_date, due_date,
				total_amount, paid_amount, is_paid, status, version, created_ts, updated_ts)
			 VALUES ($1, $2, $3, $4, $5, $6::date, $7::date, $8::date, $9::date,
				$10::numeric, $11::numeric, $12, $13, $14, $15, $16)
			 ON CONFLICT (card_id, month, year) DO NOTHING
			 RETURNING version`,
			bill.BillID, bill.UserID, bill.CardID, bill.Month, bill.Year,
			dates[0], dates[1], dates[2], dates[3],
			bill.TotalAmount.StringFixed(2), bill.PaidAmount.StringFixed(2), bill.IsPaid, string(bill.Status),
			newVersion, bill.CreatedTS, bill.UpdatedTS,
		)
	} else {
		row = r.Pool.QueryRow(ctx,
			`UPDATE bills SET
				user_id = $4,
				period_start = $5::date,
				period_end = $6::date,
				closing_date = $7::date,
				due_date = $8::date,
				total_amount = $9::numeric,
				paid_amount = $10::numeric,
				is_paid = $11,
				status = $12,
				version = $13,
				updated_ts = $14
			 WHERE card_id = $1 AND month = $2 AND year = $3 AND version = $15
			 RETURNING version`,
			bill.CardID, bill.Month, bill.Year, bill.UserID,
			dates[0], dates[1], dates[2], dates[3],
			bill.TotalAmount.StringFixed(2), bill.PaidAmount.StringFixed(2), bill.IsPaid, string(bill.Status),
			newVersion, bill.UpdatedTS, expectedVersion,
		)
	}

	var stored int64
	err := row.Scan(&stored)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("SaveBill: %s at version %d: %w", bill.BillKey, expectedVersion, domain.ErrBillVersionConflict)
	}
	if err != nil {
		return fmt.Errorf("SaveBill: %s: %w", bill.BillKey, err)
	}

	bill.Version = stored
	return nil
}

// ListBills returns bills ordered by card, year and month. An empty cardID
// lists every bill.
func (r *Repository) ListBills(ctx context.Context, cardID string) ([]*domain.Bill, error) {
	rows, err := r.Pool.Query(ctx,
		`SELECT `+billColumns+`
		 FROM bills
		 WHERE $1 = '' OR card_id = $1
		 ORDER BY card_id, year, month`,
		cardID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListBills: query: %w", err)
	}
	defer rows.Close()

	bills := []*domain.Bill{}
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, fmt.Errorf("ListBills: %w", err)
		}
		bills = append(bills, bill)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListBills: rows: %w", err)
	}
	return bills, nil
}

const transactionColumns = `transaction_id, user_id, card_id, payment_method, category_id,
	amount::text, date::text, type, description,
	is_installment, installment_count, installment_number, total_amount::text, last_installment_date::text,
	created_ts, updated_ts`

// InsertTransactions inserts new transactions in one batch, assigning IDs
// where missing.
func (r *Repository) InsertTransactions(ctx context.Context, txs []*domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	now := time.Now().UTC()
	for _, tx := range txs {
		if tx.TransactionID == "" {
			tx.TransactionID = uuid.NewString()
		}
		created := tx.CreatedTS
		if created.IsZero() {
			created = now
		}
		batch.Queue(
			`INSERT INTO transactions (
				transaction_id, user_id, card_id, payment_method, category_id,
				amount, date, type, description,
				is_installment, installment_count, installment_number, total_amount, last_installment_date,
				created_ts)
			 VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::date, $8, $9, $10, $11, $12, $13::numeric, $14::date, $15)`,
			tx.TransactionID, tx.UserID, nullable(tx.CardID), nullable(tx.PaymentMethod), nullable(tx.CategoryID),
			tx.Amount.StringFixed(2), tx.Date.String(), string(tx.Type), tx.Description,
			tx.IsInstallment, nullableInt(tx.InstallmentCount), nullableInt(tx.InstallmentNumber),
			nullableDecimal(tx.TotalAmount), nullableDate(tx.LastInstallmentDate),
			created,
		)
	}

	results := r.Pool.SendBatch(ctx, batch)
	defer results.Close()
	for _, tx := range txs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("InsertTransactions: %s: %w", tx.TransactionID, err)
		}
	}
	return nil
}

// ListCardTransactions returns cardID's transactions dated within [start, end].
func (r *Repository) ListCardTransactions(ctx context.Context, cardID string, start, end civil.Date) ([]*domain.Transaction, error) {
	rows, err := r.Pool.Query(ctx,
		`SELECT `+transactionColumns+`
		 FROM transactions
		 WHERE card_id = $1 AND date >= $2::date AND date <= $3::date
		 ORDER BY date, transaction_id`,
		cardID, start.String(), end.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("ListCardTransactions: query: %w", err)
	}
	return collectTransactions(rows)
}

// ListInstallmentCandidates returns rows flagged as installments or whose
// description ends in a "(k/N)" marker.
func (r *Repository) ListInstallmentCandidates(ctx context.Context, userID string) ([]*domain.Transaction, error) {
	rows, err := r.Pool.Query(ctx,
		`SELECT `+transactionColumns+`
		 FROM transactions
		 WHERE (is_installment OR description ~ '\(\s*\d+\s*/\s*\d+\s*\)\s*$')
		   AND ($1 = '' OR user_id = $1)
		 ORDER BY user_id, date, transaction_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListInstallmentCandidates: query: %w", err)
	}
	return collectTransactions(rows)
}

// UpdateInstallment rewrites the installment fields of one row.
func (r *Repository) UpdateInstallment(ctx context.Context, u domain.InstallmentUpdate) error {
	tag, err := r.Pool.Exec(ctx,
		`UPDATE transactions SET
			is_installment = TRUE,
			installment_number = $2,
			installment_count = $3,
			amount = $4::numeric,
			total_amount = $5::numeric,
			date = $6::date,
			description = $7,
			last_installment_date = $8::date,
			updated_ts = $9
		 WHERE transaction_id = $1`,
		u.TransactionID, u.InstallmentNumber, u.InstallmentCount,
		u.Amount.StringFixed(2), u.TotalAmount.StringFixed(2), u.Date.String(), u.Description,
		nullableDate(u.LastInstallmentDate), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("UpdateInstallment: %s: %w", u.TransactionID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("UpdateInstallment: transaction not found: %s", u.TransactionID)
	}
	return nil
}

func scanCard(row pgx.Row) (*domain.Card, error) {
	var (
		card            domain.Card
		closingDay, due *int32
	)
	if err := row.Scan(&card.CardID, &card.UserID, &card.Name, &closingDay, &due, &card.IsActive); err != nil {
		return nil, err
	}
	if closingDay != nil {
		card.ClosingDay = int(*closingDay)
	}
	if due != nil {
		card.DueDay = int(*due)
	}
	return &card, nil
}

func scanBill(row pgx.Row) (*domain.Bill, error) {
	var (
		bill                                  domain.Bill
		start, end, closing, due, total, paid string
		status                                string
	)
	err := row.Scan(
		&bill.BillID, &bill.UserID, &bill.CardID, &bill.Month, &bill.Year,
		&start, &end, &closing, &due,
		&total, &paid, &bill.IsPaid, &status, &bill.Version, &bill.CreatedTS, &bill.UpdatedTS,
	)
	if err != nil {
		return nil, err
	}

	bill.Status = domain.BillStatus(status)
	if bill.PeriodStart, err = civil.ParseDate(start); err != nil {
		return nil, fmt.Errorf("parsing period_start: %w", err)
	}
	if bill.PeriodEnd, err = civil.ParseDate(end); err != nil {
		return nil, fmt.Errorf("parsing period_end: %w", err)
	}
	if bill.ClosingDate, err = civil.ParseDate(closing); err != nil {
		return nil, fmt.Errorf("parsing closing_date: %w", err)
	}
	if bill.DueDate, err = civil.ParseDate(due); err != nil {
		return nil, fmt.Errorf("parsing due_date: %w", err)
	}
	if bill.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("parsing total_amount: %w", err)
	}
	if bill.PaidAmount, err = decimal.NewFromString(paid); err != nil {
		return nil, fmt.Errorf("parsing paid_amount: %w", err)
	}
	return &bill, nil
}

func collectTransactions(rows pgx.Rows) ([]*domain.Transaction, error) {
	defer rows.Close()

	var txs []*domain.Transaction
	for rows.Next() {
		var (
			tx                                domain.Transaction
			cardID, paymentMethod, categoryID *string
			amount, date, typ                 string
			count, number                     *int32
			total, lastDate                   *string
			updated                           *time.Time
		)
		err := rows.Scan(
			&tx.TransactionID, &tx.UserID, &cardID, &paymentMethod, &categoryID,
			&amount, &date, &typ, &tx.Description,
			&tx.IsInstallment, &count, &number, &total, &lastDate,
			&tx.CreatedTS, &updated,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}

		tx.CardID = deref(cardID)
		tx.PaymentMethod = deref(paymentMethod)
		tx.CategoryID = deref(categoryID)
		tx.Type = domain.TransactionType(typ)
		if count != nil {
			tx.InstallmentCount = int(*count)
		}
		if number != nil {
			tx.InstallmentNumber = int(*number)
		}
		if updated != nil {
			tx.UpdatedTS = *updated
		}
		if tx.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("transaction %s: parsing amount: %w", tx.TransactionID, err)
		}
		if tx.Date, err = civil.ParseDate(date); err != nil {
			return nil, fmt.Errorf("transaction %s: parsing date: %w", tx.TransactionID, err)
		}
		if total != nil {
			if tx.TotalAmount, err = decimal.NewFromString(*total); err != nil {
				return nil, fmt.Errorf("transaction %s: parsing total_amount: %w", tx.TransactionID, err)
			}
		}
		if lastDate != nil {
			if tx.LastInstallmentDate, err = civil.ParseDate(*lastDate); err != nil {
				return nil, fmt.Errorf("transaction %s: parsing last_installment_date: %w", tx.TransactionID, err)
			}
		}
		txs = append(txs, &tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading transactions: %w", err)
	}
	return txs, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableInt(n int) *int32 {
	if n == 0 {
		return nil
	}
	v := int32(n)
	return &v
}

func nullableDecimal(d decimal.Decimal) *string {
	if d.IsZero() {
		return nil
	}
	s := d.StringFixed(2)
	return &s
}

func nullableDate(d civil.Date) *string {
	if d.IsZero() {
		return nil
	}
	s := d.String()
	return &s
}
