package calendar

import (
	"testing"
	"time"
)

func TestDaysInMonthCoversWholeMonth(t *testing.T) {
	tests := []struct {
		name     string
		year     int
		month    time.Month
		expected int
	}{
		{name: "january", year: 2024, month: time.January, expected: 31},
		{name: "leap-february", year: 2024, month: time.February, expected: 29},
		{name: "regular-february", year: 2023, month: time.February, expected: 28},
		{name: "april", year: 2024, month: time.April, expected: 30},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			days := DaysInMonth(tt.year, tt.month)
			if len(days) != tt.expected {
				t.Fatalf("expected %d days, got %d", tt.expected, len(days))
			}
			if days[0].Day() != 1 {
				t.Fatalf("expected month to start at day 1, got %d", days[0].Day())
			}
			for i := 1; i < len(days); i++ {
				if !days[i].After(days[i-1]) {
					t.Fatalf("days not ascending at index %d", i)
				}
			}
		})
	}
}

func TestMarkDaysExcludesOtherMonths(t *testing.T) {
	dates := []time.Time{
		time.Date(2024, time.January, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.January, 12, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.February, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2023, time.January, 9, 0, 0, 0, 0, time.UTC),
	}

	marked := MarkDays(dates, 2024, time.January)
	if len(marked) != 2 {
		t.Fatalf("expected 2 marked days, got %d", len(marked))
	}
	for _, day := range []int{5, 12} {
		if _, ok := marked[day]; !ok {
			t.Fatalf("expected day %d to be marked", day)
		}
	}
}

func TestMarkDaysIsDeterministic(t *testing.T) {
	dates := []time.Time{
		time.Date(2024, time.March, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.March, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.March, 17, 0, 0, 0, 0, time.UTC),
	}

	first := MarkDays(dates, 2024, time.March)
	second := MarkDays(dates, 2024, time.March)
	if len(first) != len(second) {
		t.Fatalf("expected identical results, got %d and %d entries", len(first), len(second))
	}
	if len(first) != 2 {
		t.Fatalf("expected duplicates to collapse to 2 entries, got %d", len(first))
	}
	for day := range first {
		if _, ok := second[day]; !ok {
			t.Fatalf("day %d missing from second result", day)
		}
	}
}
