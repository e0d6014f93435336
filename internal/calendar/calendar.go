package calendar

import "time"

// DaysInMonth returns every calendar date of the given month in
// ascending order, normalized to midnight UTC.
func DaysInMonth(year int, month time.Month) []time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	days := make([]time.Time, 0, 31)
	for cursor := first; cursor.Month() == month; cursor = cursor.AddDate(0, 0, 1) {
		days = append(days, cursor)
	}
	return days
}

// MarkDays filters dates down to the given month and returns the set of
// day-of-month numbers they fall on. Duplicate dates collapse.
func MarkDays(dates []time.Time, year int, month time.Month) map[int]struct{} {
	marked := make(map[int]struct{}, len(dates))
	for _, date := range dates {
		if date.Year() == year && date.Month() == month {
			marked[date.Day()] = struct{}{}
		}
	}
	return marked
}
