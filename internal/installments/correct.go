package installments

import (
	"github.com/dvloznov/card-ledger/internal/domain"
	"github.com/dvloznov/card-ledger/internal/money"
	"github.com/shopspring/decimal"
)

// Anomaly names a group the normalizer refuses to repair.
type Anomaly string

const (
	// AnomalyMissingRows: fewer rows than the declared count. The missing
	// rows' dates and amounts cannot be inferred.
	AnomalyMissingRows Anomaly = "missing_rows"
	// AnomalyExtraRows: more rows than the declared count, usually two
	// purchases sharing a description.
	AnomalyExtraRows Anomaly = "extra_rows"
)

// legacyMinAmount is the per-row amount above which equal rows are suspected
// to carry the purchase total instead of the installment.
var legacyMinAmount = decimal.NewFromInt(100)

// Correction is the analysis of one group.
type Correction struct {
	Key            GroupKey                   `json:"key"`
	Rows           int                        `json:"rows"`
	Count          int                        `json:"count"`
	StoredSum      decimal.Decimal            `json:"stored_sum"`
	TotalAmount    decimal.Decimal            `json:"total_amount"`
	PerInstallment decimal.Decimal            `json:"per_installment"`
	NeedsAmountFix bool                       `json:"needs_amount_fix"`
	Anomaly        Anomaly                    `json:"anomaly,omitempty"`
	Skipped        bool                       `json:"skipped,omitempty"`
	Updates        []domain.InstallmentUpdate `json:"updates,omitempty"`
}

// AnalyzeGroup recomputes the canonical installment fields of group and
// returns the updates needed to reach them.
//
// The declared count comes from the first row, falling back to the number of
// rows when it is unset. A fallback count can hide rows that were lost; such
// groups look complete.
//
// Legacy rows were written with the purchase total copied into every
// installment. A group is treated that way when every amount is equal, above
// 100, splits into cents cleanly, and the rows do not carry a stored total
// that already makes the amount a per-installment value. The duplicated
// amount is then the purchase total.
func AnalyzeGroup(group Group) Correction {
	rows := group.Transactions
	c := Correction{Key: group.Key, Rows: len(rows), StoredSum: decimal.Zero}
	if len(rows) == 0 {
		c.Skipped = true
		return c
	}

	for _, tx := range rows {
		c.StoredSum = c.StoredSum.Add(tx.Amount)
	}

	count := rows[0].InstallmentCount
	if count <= 0 {
		count = len(rows)
	}
	c.Count = count

	switch {
	case count < 2:
		c.Skipped = true
		return c
	case len(rows) < count:
		c.Anomaly = AnomalyMissingRows
		return c
	case len(rows) > count:
		c.Anomaly = AnomalyExtraRows
		return c
	}

	storedTotal, hasStoredTotal := consistentStoredTotal(rows, count)
	switch {
	case looksLikeDuplicatedTotal(rows, count) && !hasStoredTotal:
		c.NeedsAmountFix = true
		c.TotalAmount = money.RoundCents(rows[0].Amount)
	case hasStoredTotal:
		c.TotalAmount = storedTotal
	default:
		c.TotalAmount = money.RoundCents(c.StoredSum)
	}

	plan, err := PlanInstallments(rows[0].Date, count, c.TotalAmount)
	if err != nil {
		// Zero or negative totals are refunds or corrupt rows; leave them alone.
		c.Skipped = true
		return c
	}
	c.PerInstallment = plan.PerInstallment

	for i, tx := range rows {
		want := domain.InstallmentUpdate{
			TransactionID:       tx.TransactionID,
			InstallmentNumber:   i + 1,
			InstallmentCount:    count,
			Amount:              plan.PerInstallment,
			TotalAmount:         c.TotalAmount,
			Date:                plan.DueDates[i],
			Description:         InstallmentDescription(group.Key.BaseDescription, i+1, count),
			LastInstallmentDate: plan.LastDate,
		}
		if !matches(tx, want) {
			c.Updates = append(c.Updates, want)
		}
	}
	return c
}

// looksLikeDuplicatedTotal applies the amount part of the legacy heuristic.
func looksLikeDuplicatedTotal(rows []*domain.Transaction, count int) bool {
	first := rows[0].Amount
	for _, tx := range rows[1:] {
		if !money.WithinCents(tx.Amount, first, 1) {
			return false
		}
	}
	if !first.GreaterThan(legacyMinAmount) {
		return false
	}
	split := perInstallment(first, count).Mul(decimal.NewFromInt(int64(count)))
	return money.WithinCents(split, first, int64(count))
}

// consistentStoredTotal returns the total_amount shared by every row when it
// splits into the rows' amounts.
func consistentStoredTotal(rows []*domain.Transaction, count int) (decimal.Decimal, bool) {
	total := rows[0].TotalAmount
	if !total.IsPositive() {
		return decimal.Zero, false
	}
	per := perInstallment(total, count)
	for _, tx := range rows {
		if !tx.TotalAmount.Equal(total) || !money.WithinCents(tx.Amount, per, 1) {
			return decimal.Zero, false
		}
	}
	return money.RoundCents(total), true
}

func matches(tx *domain.Transaction, want domain.InstallmentUpdate) bool {
	return tx.IsInstallment &&
		tx.InstallmentNumber == want.InstallmentNumber &&
		tx.InstallmentCount == want.InstallmentCount &&
		tx.Amount.Equal(want.Amount) &&
		tx.TotalAmount.Equal(want.TotalAmount) &&
		tx.Date == want.Date &&
		tx.Description == want.Description &&
		tx.LastInstallmentDate == want.LastInstallmentDate
}
