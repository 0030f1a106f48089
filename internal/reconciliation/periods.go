package reconciliation

import "time"

// Window is a half-open [Start, End) UTC interval.
type Window struct {
	Start time.Time
	End   time.Time
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DayWindow is the UTC day containing t.
func DayWindow(t time.Time) Window {
	start := startOfDay(t)
	return Window{Start: start, End: start.AddDate(0, 0, 1)}
}

// WeekWindow is the Monday-aligned week containing t.
func WeekWindow(t time.Time) Window {
	start := startOfDay(t)
	offset := (int(start.Weekday()) + 6) % 7 // days since Monday
	start = start.AddDate(0, 0, -offset)
	return Window{Start: start, End: start.AddDate(0, 0, 7)}
}

// MonthWindow is the calendar month year/month in UTC.
func MonthWindow(year int, month time.Month) Window {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return Window{Start: start, End: start.AddDate(0, 1, 0)}
}

// PreviousDay is the last complete UTC day before now.
func PreviousDay(now time.Time) Window {
	return DayWindow(startOfDay(now).AddDate(0, 0, -1))
}

// PreviousWeek is the last complete Monday-aligned week before now.
func PreviousWeek(now time.Time) Window {
	return WeekWindow(WeekWindow(now).Start.AddDate(0, 0, -7))
}

// PreviousMonth is the last complete calendar month before now.
func PreviousMonth(now time.Time) Window {
	first := time.Date(now.UTC().Year(), now.UTC().Month(), 1, 0, 0, 0, 0, time.UTC)
	prev := first.AddDate(0, -1, 0)
	return MonthWindow(prev.Year(), prev.Month())
}
