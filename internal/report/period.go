package report

import (
	"encoding/json"
	"time"

	"laporan/internal/calendar"
	"laporan/internal/timeexpr"
)

// Last3MonthsDays is the lookback used for "3 bulan terakhir". It is a fixed
// number of days, not three calendar months.
const Last3MonthsDays = 90

// Period is a resolved, inclusive time span. When Dates is set only rows on
// those calendar days belong to the period.
type Period struct {
	Start time.Time
	End   time.Time
	Dates []time.Time
	Label string
}

// Resolve turns a window into concrete instants in now's location.
func Resolve(w timeexpr.Window, now time.Time) Period {
	loc := now.Location()
	p := Period{Label: w.Label()}

	switch w.Kind {
	case timeexpr.KindDates:
		for _, d := range w.Dates {
			p.Dates = append(p.Dates, calendar.StartOfDay(d.In(loc)))
		}
		if len(p.Dates) > 0 {
			p.Start, _ = calendar.DayBounds(p.Dates[0])
			_, p.End = calendar.DayBounds(p.Dates[len(p.Dates)-1])
		}
	case timeexpr.KindRange:
		p.Start, _ = calendar.DayBounds(w.Start.In(loc))
		_, p.End = calendar.DayBounds(w.End.In(loc))
	case timeexpr.KindDate:
		p.Start, p.End = calendar.DayBounds(w.Start.In(loc))
	case timeexpr.KindMonth:
		p.Start, p.End = calendar.MonthBounds(w.Year, w.Month, loc)
	case timeexpr.KindRelative:
		p.Start, p.End = relativeBounds(w.Relative, now)
	default:
		p.Start, p.End = relativeBounds(timeexpr.ThisMonth, now)
		p.Label = string(timeexpr.ThisMonth)
	}
	return p
}

func relativeBounds(r timeexpr.Relative, now time.Time) (time.Time, time.Time) {
	switch r {
	case timeexpr.Today:
		return calendar.DayBounds(now)
	case timeexpr.Yesterday:
		return calendar.DayBounds(now.AddDate(0, 0, -1))
	case timeexpr.ThisWeek:
		return calendar.WeekOf(now)
	case timeexpr.LastWeek:
		return calendar.WeekOf(now.AddDate(0, 0, -7))
	case timeexpr.LastMonth:
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -1, 0)
		return calendar.MonthBounds(first.Year(), first.Month(), now.Location())
	case timeexpr.Last3Months:
		start, _ := calendar.DayBounds(now.AddDate(0, 0, -Last3MonthsDays))
		_, end := calendar.DayBounds(now)
		return start, end
	default:
		return calendar.MonthBounds(now.Year(), now.Month(), now.Location())
	}
}

// MonthPeriod is the full calendar month containing t.
func MonthPeriod(year int, month time.Month, loc *time.Location) Period {
	start, end := calendar.MonthBounds(year, month, loc)
	return Period{Start: start, End: end, Label: calendar.MonthSheetName(year, month)}
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	if t.Before(p.Start) || t.After(p.End) {
		return false
	}
	if len(p.Dates) == 0 {
		return true
	}
	day := calendar.StartOfDay(t.In(p.Start.Location()))
	for _, d := range p.Dates {
		if d.Equal(day) {
			return true
		}
	}
	return false
}

// Years lists every calendar year the period touches, ascending.
func (p Period) Years() []int {
	if p.End.Before(p.Start) {
		return nil
	}
	var years []int
	for y := p.Start.Year(); y <= p.End.Year(); y++ {
		years = append(years, y)
	}
	return years
}

func (p Period) MarshalJSON() ([]byte, error) {
	var dates []string
	for _, d := range p.Dates {
		dates = append(dates, d.Format("2006-01-02"))
	}
	return json.Marshal(struct {
		Start string   `json:"start"`
		End   string   `json:"end"`
		Dates []string `json:"dates,omitempty"`
		Label string   `json:"label"`
	}{p.Start.Format(time.RFC3339), p.End.Format(time.RFC3339), dates, p.Label})
}
