package bigquery

import (
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/card-ledger/internal/domain"
)

const transactionsTable = "transactions"

// TransactionRow is a row of the transactions table.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED

	UserID        string              `bigquery:"user_id"`        // REQUIRED
	CardID        bigquery.NullString `bigquery:"card_id"`        // NULLABLE
	PaymentMethod bigquery.NullString `bigquery:"payment_method"` // NULLABLE
	CategoryID    bigquery.NullString `bigquery:"category_id"`    // NULLABLE

	Amount      *big.Rat   `bigquery:"amount"` // REQUIRED NUMERIC
	Date        civil.Date `bigquery:"date"`   // REQUIRED
	Type        string     `bigquery:"type"`   // expense | income | investment
	Description string     `bigquery:"description"`

	IsInstallment       bool               `bigquery:"is_installment"`
	InstallmentCount    bigquery.NullInt64 `bigquery:"installment_count"`
	InstallmentNumber   bigquery.NullInt64 `bigquery:"installment_number"`
	TotalAmount         *big.Rat           `bigquery:"total_amount"` // NULLABLE NUMERIC
	LastInstallmentDate bigquery.NullDate  `bigquery:"last_installment_date"`

	CreatedTS time.Time              `bigquery:"created_ts"`
	UpdatedTS bigquery.NullTimestamp `bigquery:"updated_ts"`
}

func (r *TransactionRow) toDomain() *domain.Transaction {
	tx := &domain.Transaction{
		TransactionID:     r.TransactionID,
		UserID:            r.UserID,
		CardID:            r.CardID.StringVal,
		PaymentMethod:     r.PaymentMethod.StringVal,
		CategoryID:        r.CategoryID.StringVal,
		Amount:            decimalFromRat(r.Amount),
		Date:              r.Date,
		Type:              domain.TransactionType(r.Type),
		Description:       r.Description,
		IsInstallment:     r.IsInstallment,
		InstallmentCount:  int(r.InstallmentCount.Int64),
		InstallmentNumber: int(r.InstallmentNumber.Int64),
		TotalAmount:       decimalFromRat(r.TotalAmount),
		CreatedTS:         r.CreatedTS,
	}
	if r.LastInstallmentDate.Valid {
		tx.LastInstallmentDate = r.LastInstallmentDate.Date
	}
	if r.UpdatedTS.Valid {
		tx.UpdatedTS = r.UpdatedTS.Timestamp
	}
	return tx
}

func transactionRowFromDomain(tx *domain.Transaction) *TransactionRow {
	created := tx.CreatedTS
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return &TransactionRow{
		TransactionID:       tx.TransactionID,
		UserID:              tx.UserID,
		CardID:              nullString(tx.CardID),
		PaymentMethod:       nullString(tx.PaymentMethod),
		CategoryID:          nullString(tx.CategoryID),
		Amount:              ratFromDecimal(tx.Amount),
		Date:                tx.Date,
		Type:                string(tx.Type),
		Description:         tx.Description,
		IsInstallment:       tx.IsInstallment,
		InstallmentCount:    nullInt(tx.InstallmentCount),
		InstallmentNumber:   nullInt(tx.InstallmentNumber),
		TotalAmount:         nullRat(tx.TotalAmount),
		LastInstallmentDate: nullDate(tx.LastInstallmentDate),
		CreatedTS:           created,
	}
}
