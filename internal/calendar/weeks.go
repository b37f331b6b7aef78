// Package calendar computes the Monday-anchored week windows used by the
// weekly reports.
package calendar

import (
	"fmt"
	"time"
)

// Week is one window of a month's week list. End is the last second of the
// window (Sunday 23:59:59, or the leading partial week's Sunday).
type Week struct {
	Number int       `json:"number"`
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Label  string    `json:"label"`
}

// Contains reports whether t falls inside the week.
func (w Week) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// WeeksInMonth returns the ordered week windows of a month.
//
// Week 1 always starts on day 1. When day 1 is not a Monday the first week is
// a short span ending on the Sunday before the first Monday; every following
// week is a full Monday to Sunday span. The last week may end in the next
// month.
func WeeksInMonth(year int, month time.Month, loc *time.Location) []Week {
	if loc == nil {
		loc = time.Local
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)

	var weeks []Week
	for start.Month() == month {
		sunday := start.AddDate(0, 0, daysUntilSunday(start.Weekday()))
		end := endOfDay(sunday)
		weeks = append(weeks, Week{
			Number: len(weeks) + 1,
			Start:  start,
			End:    end,
			Label:  fmt.Sprintf("%s - %s", start.Format("02 Jan"), end.Format("02 Jan")),
		})
		start = StartOfDay(sunday.AddDate(0, 0, 1))
	}
	return weeks
}

// WeekNumber returns week n (1-based) of the month.
func WeekNumber(year int, month time.Month, n int, loc *time.Location) (Week, bool) {
	weeks := WeeksInMonth(year, month, loc)
	if n < 1 || n > len(weeks) {
		return Week{}, false
	}
	return weeks[n-1], true
}

// CurrentWeek returns the week of now's month that contains now.
func CurrentWeek(now time.Time) (Week, bool) {
	for _, w := range WeeksInMonth(now.Year(), now.Month(), now.Location()) {
		if w.Contains(now) {
			return w, true
		}
	}
	return Week{}, false
}

// WeekOf returns the full Monday to Sunday span containing t, ignoring month
// boundaries.
func WeekOf(t time.Time) (start, end time.Time) {
	offset := (int(t.Weekday()) + 6) % 7 // days since Monday
	start = StartOfDay(t.AddDate(0, 0, -offset))
	end = endOfDay(start.AddDate(0, 0, 6))
	return start, end
}

// MonthBounds returns the first and last second of a month.
func MonthBounds(year int, month time.Month, loc *time.Location) (start, end time.Time) {
	if loc == nil {
		loc = time.Local
	}
	start = time.Date(year, month, 1, 0, 0, 0, 0, loc)
	end = start.AddDate(0, 1, 0).Add(-time.Second)
	return start, end
}

// DayBounds returns the first and last second of t's calendar day.
func DayBounds(t time.Time) (start, end time.Time) {
	start = StartOfDay(t)
	return start, endOfDay(start)
}

func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, t.Location())
}

func daysUntilSunday(wd time.Weekday) int {
	return (7 - int(wd)) % 7
}
