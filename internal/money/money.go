package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidMoney = errors.New("invalid money amount")
)

// Cent is the smallest unit amounts are stored with.
var Cent = decimal.New(1, -2)

// RoundCents rounds half away from zero to two decimal places.
func RoundCents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// WithinCents reports whether a and b differ by at most n cents.
func WithinCents(a, b decimal.Decimal, n int64) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Cent.Mul(decimal.NewFromInt(n)))
}

// ParseAmount parses user-entered or imported amounts such as "R$ 1.234,56",
// "1,234.56", "-12.5" or "$ 30". Currency symbols and spaces are dropped.
//
// Separator rules: when both '.' and ',' appear the later one is the decimal
// separator. A lone ',' followed by one or two digits is decimal, otherwise a
// thousands separator. A lone '.' followed by exactly three digits is a
// thousands separator (bank SMS write "1.500" for fifteen hundred).
func ParseAmount(s string) (decimal.Decimal, error) {
	var b strings.Builder
	negative := false
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',':
			b.WriteRune(r)
		case r == '-' && b.Len() == 0:
			negative = true
		}
	}
	raw := b.String()
	if raw == "" {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidMoney, s)
	}

	lastDot := strings.LastIndex(raw, ".")
	lastComma := strings.LastIndex(raw, ",")

	var normalized string
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			normalized = strings.ReplaceAll(raw, ".", "")
			normalized = strings.Replace(normalized, ",", ".", 1)
		} else {
			normalized = strings.ReplaceAll(raw, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(raw, ",") == 1 && len(raw)-lastComma-1 <= 2 {
			normalized = strings.Replace(raw, ",", ".", 1)
		} else {
			normalized = strings.ReplaceAll(raw, ",", "")
		}
	case lastDot >= 0:
		if strings.Count(raw, ".") > 1 || (len(raw)-lastDot-1 == 3 && lastDot > 0) {
			normalized = strings.ReplaceAll(raw, ".", "")
		} else {
			normalized = raw
		}
	default:
		normalized = raw
	}

	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidMoney, s)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// Format renders an amount with two decimals and no thousands separators.
func Format(d decimal.Decimal) string {
	return d.StringFixed(2)
}
