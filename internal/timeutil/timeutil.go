// Package timeutil provides the clock and interval arithmetic shared by the
// scheduling and queue packages. All functions are pure; days are UTC
// calendar days and intervals are half-open.
package timeutil

import (
	"fmt"
	"strconv"
	"time"
)

// MinutesPerDay is the number of minutes in a calendar day.
const MinutesPerDay = 24 * 60

// ParseClock parses an "HH:MM" string into a minute-of-day value.
func ParseClock(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("timeutil: invalid clock %q: expected HH:MM", s)
	}
	hour, err := strconv.Atoi(s[:2])
	if err != nil {
		return 0, fmt.Errorf("timeutil: invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(s[3:])
	if err != nil {
		return 0, fmt.Errorf("timeutil: invalid minute in %q", s)
	}
	if hour < 0 || hour > 23 {
		return 0, fmt.Errorf("timeutil: hour out of range in %q", s)
	}
	if minute < 0 || minute > 59 {
		return 0, fmt.Errorf("timeutil: minute out of range in %q", s)
	}
	return hour*60 + minute, nil
}

// FormatClock renders a minute-of-day value as "HH:MM".
func FormatClock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// DayStartUTC truncates t to midnight of its UTC calendar day.
func DayStartUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NextDayUTC returns midnight of the UTC day after t.
func NextDayUTC(t time.Time) time.Time {
	return DayStartUTC(t).AddDate(0, 0, 1)
}

// SameDayUTC reports whether a and b fall on the same UTC calendar day.
func SameDayUTC(a, b time.Time) bool {
	return DayStartUTC(a).Equal(DayStartUTC(b))
}

// DaysInRange returns the UTC day starts from start through end inclusive.
// Returns nil when start is after end.
func DaysInRange(start, end time.Time) []time.Time {
	first := DayStartUTC(start)
	last := DayStartUTC(end)
	if first.After(last) {
		return nil
	}
	var days []time.Time
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// AtMinuteUTC returns the absolute instant at the given minute-of-day on the
// UTC day containing day.
func AtMinuteUTC(day time.Time, minute int) time.Time {
	return DayStartUTC(day).Add(time.Duration(minute) * time.Minute)
}

// Overlaps reports whether the half-open minute intervals [aStart, aEnd) and
// [bStart, bEnd) intersect. Zero-length intervals never overlap.
func Overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}

// OverlapsTime is Overlaps for absolute instants.
func OverlapsTime(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}
