package models

import "time"

// DateLayout is the canonical calendar-date format used in keys and reports
const DateLayout = "2006-01-02"

// CalendarDay truncates t to midnight of its calendar date in loc.
func CalendarDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// SameDay reports whether a and b fall on the same calendar date in loc
func SameDay(a, b time.Time, loc *time.Location) bool {
	return CalendarDay(a, loc).Equal(CalendarDay(b, loc))
}

// DayKey formats the calendar date of t in loc
func DayKey(t time.Time, loc *time.Location) string {
	return CalendarDay(t, loc).Format(DateLayout)
}
