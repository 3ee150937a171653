package billing

import (
	"cloud.google.com/go/civil"
	"github.com/dvloznov/card-ledger/internal/calendar"
)

// Period holds the date boundaries of one billing cycle.
type Period struct {
	PeriodStart civil.Date `json:"period_start"`
	PeriodEnd   civil.Date `json:"period_end"`
	ClosingDate civil.Date `json:"closing_date"`
	DueDate     civil.Date `json:"due_date"`
}

// ComputePeriod derives the cycle of a card closing on closingDay for the
// statement of (month, year).
//
// Days past the end of a month roll into the next month rather than being
// clamped: a card closing on the 31st closes on May 1 for the April cycle.
// Consecutive cycles stay contiguous because PeriodStart is always the day
// after the previous cycle's PeriodEnd under the same rule.
func ComputePeriod(closingDay, month, year, dueDay int) Period {
	end := calendar.Date(year, month, closingDay)
	start := calendar.Date(year, month-1, closingDay+1)

	due := calendar.Date(year, month, dueDay)
	if dueDay <= closingDay {
		due = calendar.Date(year, month+1, dueDay)
	}

	return Period{
		PeriodStart: start,
		PeriodEnd:   end,
		ClosingDate: end,
		DueDate:     due,
	}
}
