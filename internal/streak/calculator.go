package streak

import "time"

// Mode selects how consecutive activity is counted.
type Mode string

const (
	// ModeDays counts consecutive days with a workout, ending today.
	ModeDays Mode = "days"
	// ModeWeeks counts consecutive ISO weeks with at least one workout.
	ModeWeeks Mode = "weeks"
)

// DayLog is the per-date activity view the calculator consumes.
type DayLog struct {
	Date       time.Time
	DidWorkout bool
}

// Calculate returns the current streak for the supplied logs. The
// caller provides "today" so the function stays pure.
func Calculate(logs []DayLog, mode Mode, today time.Time) int {
	if mode == ModeWeeks {
		return weekStreak(logs, today)
	}
	return dayStreak(logs, today)
}

func dayStreak(logs []DayLog, today time.Time) int {
	active := make(map[string]bool, len(logs))
	for _, log := range logs {
		if log.DidWorkout {
			active[dayKey(log.Date)] = true
		}
	}

	streak := 0
	for cursor := today; active[dayKey(cursor)]; cursor = cursor.AddDate(0, 0, -1) {
		streak++
	}
	return streak
}

func weekStreak(logs []DayLog, today time.Time) int {
	active := make(map[weekKey]bool, len(logs))
	for _, log := range logs {
		if log.DidWorkout {
			active[weekOf(log.Date)] = true
		}
	}

	streak := 0
	for cursor := mondayOf(today); active[weekOf(cursor)]; cursor = cursor.AddDate(0, 0, -7) {
		streak++
	}
	return streak
}

// weekKey identifies a week by the ISO week-based year and week number
// of its Monday.
type weekKey struct {
	year int
	week int
}

func weekOf(date time.Time) weekKey {
	year, week := mondayOf(date).ISOWeek()
	return weekKey{year: year, week: week}
}

func mondayOf(date time.Time) time.Time {
	offset := (int(date.Weekday()) + 6) % 7
	return date.AddDate(0, 0, -offset)
}

func dayKey(date time.Time) string {
	return date.Format("2006-01-02")
}
