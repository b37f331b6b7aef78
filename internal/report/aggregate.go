package report

import (
	"sort"
	"strings"
	"time"

	"laporan/internal/calendar"
	"laporan/internal/core"
	"laporan/internal/query"
)

// Day is one calendar date of a daily breakdown.
type Day struct {
	Date    string `json:"date"`
	DayName string `json:"day_name"`
	Revenue int64  `json:"revenue"`
	Count   int    `json:"count"`
}

// WeekTotal is one Week Calculator window with its figures.
type WeekTotal struct {
	Week    calendar.Week `json:"week"`
	Revenue int64         `json:"revenue"`
	Count   int           `json:"count"`
}

// Ranking controls ordering and truncation of bucket lists.
type Ranking struct {
	SortBy query.SortKey
	Order  query.Order
	Limit  int
}

// Summarise computes the headline totals. The average is revenue per
// operating day, where an operating day is a date with at least one row.
func Summarise(rows []core.Transaction) core.Totals {
	var t core.Totals
	days := make(map[string]struct{})
	for _, r := range rows {
		t.Revenue += r.Price
		t.Count++
		days[r.Date.Format("2006-01-02")] = struct{}{}
	}
	t.OperatingDays = len(days)
	if t.OperatingDays > 0 {
		t.AveragePerDay = t.Revenue / int64(t.OperatingDays)
	}
	return t
}

// RankCapsters groups by canonical capster name. Ties on the sort key fall
// back to the other metric, then to the name.
func RankCapsters(rows []core.Transaction, canonical func(string) string, r Ranking) []core.Bucket {
	buckets := groupBy(rows, func(t core.Transaction) string { return canonical(t.Capster) })
	sortBuckets(buckets, r.SortBy, r.Order)
	return truncate(buckets, r.Limit)
}

// CompareBranches groups by canonical branch name, highest revenue first.
func CompareBranches(rows []core.Transaction, canonical func(string) string) []core.Bucket {
	buckets := groupBy(rows, func(t core.Transaction) string { return canonical(t.Branch) })
	sortBuckets(buckets, query.SortRevenue, query.Desc)
	return buckets
}

// PopularServices groups by service and orders by transaction count.
func PopularServices(rows []core.Transaction, limit int) []core.Bucket {
	buckets := groupBy(rows, func(t core.Transaction) string { return strings.TrimSpace(t.Service) })
	sortBuckets(buckets, query.SortCount, query.Desc)
	return truncate(buckets, limit)
}

// PaymentBreakdown groups by payment method, highest revenue first.
func PaymentBreakdown(rows []core.Transaction) []core.Bucket {
	buckets := groupBy(rows, func(t core.Transaction) string {
		if m := strings.TrimSpace(t.PaymentMethod); m != "" {
			return m
		}
		return "-"
	})
	sortBuckets(buckets, query.SortRevenue, query.Desc)
	return buckets
}

// DailyBreakdown groups by calendar date in ascending order.
func DailyBreakdown(rows []core.Transaction) []Day {
	index := make(map[string]*Day)
	var order []string
	for _, r := range rows {
		key := r.Date.Format("2006-01-02")
		d, ok := index[key]
		if !ok {
			d = &Day{Date: key, DayName: calendar.DayName(r.Date.Weekday())}
			index[key] = d
			order = append(order, key)
		}
		d.Revenue += r.Price
		d.Count++
	}
	sort.Strings(order)
	out := make([]Day, 0, len(order))
	for _, k := range order {
		out = append(out, *index[k])
	}
	return out
}

// WeeklyBreakdown assigns rows to the given weeks. Rows outside every week
// are ignored; every week is reported even when empty.
func WeeklyBreakdown(rows []core.Transaction, weeks []calendar.Week) []WeekTotal {
	out := make([]WeekTotal, len(weeks))
	for i, w := range weeks {
		out[i].Week = w
	}
	for _, r := range rows {
		for i := range out {
			if out[i].Week.Contains(r.Date) {
				out[i].Revenue += r.Price
				out[i].Count++
				break
			}
		}
	}
	return out
}

// weeksIn lists the Week Calculator windows of every month the period
// touches that overlap it.
func weeksIn(p Period) []calendar.Week {
	var out []calendar.Week
	loc := p.Start.Location()
	for m := time.Date(p.Start.Year(), p.Start.Month(), 1, 0, 0, 0, 0, loc); !m.After(p.End); m = m.AddDate(0, 1, 0) {
		for _, w := range calendar.WeeksInMonth(m.Year(), m.Month(), loc) {
			if !w.End.Before(p.Start) && !w.Start.After(p.End) {
				out = append(out, w)
			}
		}
	}
	return out
}

func groupBy(rows []core.Transaction, key func(core.Transaction) string) []core.Bucket {
	index := make(map[string]int)
	var out []core.Bucket
	for _, r := range rows {
		k := key(r)
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, core.Bucket{Name: k})
		}
		out[i].Revenue += r.Price
		out[i].Count++
	}
	return out
}

func sortBuckets(b []core.Bucket, by query.SortKey, order query.Order) {
	sort.SliceStable(b, func(i, j int) bool {
		x, y := b[i], b[j]
		if c := compareMetric(x, y, by); c != 0 {
			if order == query.Asc {
				return c < 0
			}
			return c > 0
		}
		return x.Name < y.Name
	})
}

// compareMetric orders by the sort key and then by the other metric.
func compareMetric(x, y core.Bucket, by query.SortKey) int {
	primary := func(b core.Bucket) int64 { return b.Revenue }
	secondary := func(b core.Bucket) int64 { return int64(b.Count) }
	if by == query.SortCount {
		primary, secondary = secondary, primary
	}
	if c := cmp64(primary(x), primary(y)); c != 0 {
		return c
	}
	return cmp64(secondary(x), secondary(y))
}

func cmp64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func truncate(b []core.Bucket, limit int) []core.Bucket {
	if limit > 0 && len(b) > limit {
		return b[:limit]
	}
	return b
}
