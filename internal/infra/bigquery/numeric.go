package bigquery

import (
	"math/big"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// NUMERIC columns travel as *big.Rat. Amounts are stored with two decimals.

func ratFromDecimal(d decimal.Decimal) *big.Rat {
	return d.Round(2).Rat()
}

func decimalFromRat(r *big.Rat) decimal.Decimal {
	if r == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigRat(r, 2)
}

func nullRat(d decimal.Decimal) *big.Rat {
	if d.IsZero() {
		return nil
	}
	return ratFromDecimal(d)
}

func nullDate(d civil.Date) bigquery.NullDate {
	return bigquery.NullDate{Date: d, Valid: !d.IsZero()}
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}

func nullInt(n int) bigquery.NullInt64 {
	return bigquery.NullInt64{Int64: int64(n), Valid: n != 0}
}

func fullTable(client *bigquery.Client, dataset, table string) string {
	return "`" + client.Project() + "." + dataset + "." + table + "`"
}
