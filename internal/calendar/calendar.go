// Package calendar holds naive calendar-date helpers. All arithmetic goes
// through time.Date in UTC so out-of-range days and months normalize the
// same way everywhere: April 31 becomes May 1, month 0 becomes December of
// the previous year.
package calendar

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// DateFormat is the ISO layout used for dates on the wire and in storage.
const DateFormat = "2006-01-02"

// Date builds a calendar date, normalizing overflowing days and months.
func Date(year, month, day int) civil.Date {
	return civil.DateOf(time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC))
}

// AddMonths adds n calendar months keeping the day of month. When the day
// does not exist in the target month it rolls into the following month
// (Jan 31 + 1 month = Mar 3, or Mar 2 in a leap year) instead of clamping.
func AddMonths(d civil.Date, n int) civil.Date {
	return Date(d.Year, int(d.Month)+n, d.Day)
}

// Today returns the current date in the given location.
func Today(loc *time.Location) civil.Date {
	return civil.DateOf(time.Now().In(loc))
}

var layouts = []string{
	DateFormat,
	"02/01/2006",
	"02/01/06",
	"2006/01/02",
	"02-01-2006",
}

// ParseDate accepts ISO dates and the day-first forms found in bank SMS and
// CSV exports. A timestamp suffix after "T" or a space is ignored.
func ParseDate(s string) (civil.Date, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "T "); i > 0 {
		s = s[:i]
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(t), nil
		}
	}
	return civil.Date{}, fmt.Errorf("ParseDate: unrecognized date %q", s)
}
