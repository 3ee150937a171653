package billing

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/go-cmp/cmp"
)

func d(year, month, day int) civil.Date {
	return civil.Date{Year: year, Month: time.Month(month), Day: day}
}

func TestComputePeriod(t *testing.T) {
	tests := []struct {
		name                          string
		closingDay, month, year, due int
		want                          Period
	}{
		{
			name:       "due after closing in same month",
			closingDay: 10, month: 10, year: 2025, due: 20,
			want: Period{
				PeriodStart: d(2025, 9, 11),
				PeriodEnd:   d(2025, 10, 10),
				ClosingDate: d(2025, 10, 10),
				DueDate:     d(2025, 10, 20),
			},
		},
		{
			name:       "due before closing moves to next month",
			closingDay: 25, month: 3, year: 2025, due: 5,
			want: Period{
				PeriodStart: d(2025, 2, 26),
				PeriodEnd:   d(2025, 3, 25),
				ClosingDate: d(2025, 3, 25),
				DueDate:     d(2025, 4, 5),
			},
		},
		{
			name:       "due equal to closing moves to next month",
			closingDay: 15, month: 12, year: 2025, due: 15,
			want: Period{
				PeriodStart: d(2025, 11, 16),
				PeriodEnd:   d(2025, 12, 15),
				ClosingDate: d(2025, 12, 15),
				DueDate:     d(2026, 1, 15),
			},
		},
		{
			name:       "january cycle starts in previous year",
			closingDay: 5, month: 1, year: 2026, due: 12,
			want: Period{
				PeriodStart: d(2025, 12, 6),
				PeriodEnd:   d(2026, 1, 5),
				ClosingDate: d(2026, 1, 5),
				DueDate:     d(2026, 1, 12),
			},
		},
		{
			name:       "closing day 31 in a 30-day month rolls over",
			closingDay: 31, month: 4, year: 2025, due: 10,
			want: Period{
				PeriodStart: d(2025, 4, 1), // March 32
				PeriodEnd:   d(2025, 5, 1), // April 31
				ClosingDate: d(2025, 5, 1),
				DueDate:     d(2025, 5, 10),
			},
		},
		{
			name:       "closing day 30 in february rolls over",
			closingDay: 30, month: 2, year: 2025, due: 7,
			want: Period{
				PeriodStart: d(2025, 1, 31),
				PeriodEnd:   d(2025, 3, 2),
				ClosingDate: d(2025, 3, 2),
				DueDate:     d(2025, 3, 7),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputePeriod(tt.closingDay, tt.month, tt.year, tt.due)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ComputePeriod() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestComputePeriod_CyclesAreContiguous(t *testing.T) {
	for closingDay := 1; closingDay <= 31; closingDay++ {
		for month := 1; month <= 12; month++ {
			prev := ComputePeriod(closingDay, month-1, 2025, 10)
			cur := ComputePeriod(closingDay, month, 2025, 10)
			if got := prev.PeriodEnd.AddDays(1); got != cur.PeriodStart {
				t.Fatalf("closingDay=%d month=%d: previous end + 1 = %s, start = %s",
					closingDay, month, got, cur.PeriodStart)
			}
		}
	}
}

func TestComputePeriod_DueDatePlacement(t *testing.T) {
	for closingDay := 1; closingDay <= 28; closingDay++ {
		for dueDay := 1; dueDay <= 28; dueDay++ {
			p := ComputePeriod(closingDay, 6, 2025, dueDay)
			if dueDay > closingDay {
				if p.DueDate.Month != 6 || p.DueDate.Before(p.ClosingDate) {
					t.Errorf("closing=%d due=%d: due date %s should be in June on or after %s",
						closingDay, dueDay, p.DueDate, p.ClosingDate)
				}
			} else if p.DueDate.Month != 7 {
				t.Errorf("closing=%d due=%d: due date %s should fall in July", closingDay, dueDay, p.DueDate)
			}
		}
	}
}
