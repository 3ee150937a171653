package calendar

import (
	"testing"

	"cloud.google.com/go/civil"
)

func TestDate_Normalizes(t *testing.T) {
	tests := []struct {
		name             string
		year, month, day int
		want             string
	}{
		{"plain", 2025, 10, 10, "2025-10-10"},
		{"day overflow in 30-day month", 2025, 4, 31, "2025-05-01"},
		{"february overflow", 2025, 2, 31, "2025-03-03"},
		{"leap february overflow", 2024, 2, 31, "2024-03-02"},
		{"month zero", 2025, 0, 15, "2024-12-15"},
		{"month thirteen", 2025, 13, 5, "2026-01-05"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Date(tt.year, tt.month, tt.day).String()
			if got != tt.want {
				t.Errorf("Date(%d, %d, %d) = %s, want %s", tt.year, tt.month, tt.day, got, tt.want)
			}
		})
	}
}

func TestAddMonths(t *testing.T) {
	start := civil.Date{Year: 2025, Month: 1, Day: 31}

	if got := AddMonths(start, 1).String(); got != "2025-03-03" {
		t.Errorf("AddMonths(Jan 31, 1) = %s, want 2025-03-03", got)
	}
	if got := AddMonths(start, 2).String(); got != "2025-03-31" {
		t.Errorf("AddMonths(Jan 31, 2) = %s, want 2025-03-31", got)
	}
	if got := AddMonths(civil.Date{Year: 2025, Month: 11, Day: 15}, 3).String(); got != "2026-02-15" {
		t.Errorf("AddMonths across year = %s, want 2026-02-15", got)
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"2025-01-15", "2025-01-15", false},
		{"15/01/2025", "2025-01-15", false},
		{"15/01/25", "2025-01-15", false},
		{"2025-01-15T10:30:00Z", "2025-01-15", false},
		{" 2025/01/15 ", "2025-01-15", false},
		{"Jan 15", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDate(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got.String() != tt.want {
				t.Errorf("ParseDate(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}
