// Package timeexpr extracts a single time window from Indonesian free text.
//
// Each pattern family (discrete dates, date range, single date, month,
// relative keyword) is an independent pure function; Parse composes them
// under a fixed precedence.
package timeexpr

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"laporan/internal/calendar"
)

type Kind int

const (
	KindNone Kind = iota
	KindDates
	KindRange
	KindDate
	KindMonth
	KindRelative
)

func (k Kind) String() string {
	switch k {
	case KindDates:
		return "dates"
	case KindRange:
		return "range"
	case KindDate:
		return "date"
	case KindMonth:
		return "month"
	case KindRelative:
		return "relative"
	default:
		return "none"
	}
}

// Relative is a tag from the relative-timeframe vocabulary.
type Relative string

const (
	Today       Relative = "hari ini"
	Yesterday   Relative = "kemarin"
	ThisWeek    Relative = "minggu ini"
	LastWeek    Relative = "minggu lalu"
	ThisMonth   Relative = "bulan ini"
	LastMonth   Relative = "bulan lalu"
	Last3Months Relative = "3 bulan terakhir"
)

func (r Relative) IsValid() bool {
	switch r {
	case Today, Yesterday, ThisWeek, LastWeek, ThisMonth, LastMonth, Last3Months:
		return true
	}
	return false
}

// Window is exactly one of: a list of at least two dates, a [Start, End]
// date range, a single date (Start), a month, or a relative tag. Dates are
// calendar dates at midnight; turning them into instants is the caller's job.
type Window struct {
	Kind     Kind
	Dates    []time.Time
	Start    time.Time
	End      time.Time
	Month    time.Month
	Year     int
	Relative Relative
}

func Dates(ds ...time.Time) Window {
	return Window{Kind: KindDates, Dates: append([]time.Time(nil), ds...)}
}

func Range(start, end time.Time) Window {
	return Window{Kind: KindRange, Start: start, End: end}
}

func Date(d time.Time) Window {
	return Window{Kind: KindDate, Start: d, End: d}
}

func MonthOf(m time.Month, year int) Window {
	return Window{Kind: KindMonth, Month: m, Year: year}
}

func RelativeOf(r Relative) Window {
	return Window{Kind: KindRelative, Relative: r}
}

func (w Window) IsZero() bool { return w.Kind == KindNone }

// Clone returns a window that shares no memory with w.
func (w Window) Clone() Window {
	w.Dates = append([]time.Time(nil), w.Dates...)
	return w
}

// Label is the Indonesian display form of the window.
func (w Window) Label() string {
	switch w.Kind {
	case KindDates:
		parts := make([]string, len(w.Dates))
		for i, d := range w.Dates {
			parts[i] = formatDate(d)
		}
		return "tanggal " + strings.Join(parts, ", ")
	case KindRange:
		return formatDate(w.Start) + " - " + formatDate(w.End)
	case KindDate:
		return formatDate(w.Start)
	case KindMonth:
		return calendar.MonthSheetName(w.Year, w.Month)
	case KindRelative:
		return string(w.Relative)
	default:
		return ""
	}
}

func (w Window) MarshalJSON() ([]byte, error) {
	out := struct {
		Kind     string   `json:"kind"`
		Label    string   `json:"label"`
		Dates    []string `json:"dates,omitempty"`
		Start    string   `json:"start,omitempty"`
		End      string   `json:"end,omitempty"`
		Month    int      `json:"month,omitempty"`
		Year     int      `json:"year,omitempty"`
		Relative string   `json:"relative,omitempty"`
	}{
		Kind:     w.Kind.String(),
		Label:    w.Label(),
		Month:    int(w.Month),
		Year:     w.Year,
		Relative: string(w.Relative),
	}
	for _, d := range w.Dates {
		out.Dates = append(out.Dates, d.Format(time.DateOnly))
	}
	if !w.Start.IsZero() {
		out.Start = w.Start.Format(time.DateOnly)
	}
	if !w.End.IsZero() {
		out.End = w.End.Format(time.DateOnly)
	}
	return json.Marshal(out)
}

func formatDate(d time.Time) string {
	return fmt.Sprintf("%d %s %d", d.Day(), calendar.MonthName(d.Month()), d.Year())
}
