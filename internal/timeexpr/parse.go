package timeexpr

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// Parse extracts the time window of text. Precedence is fixed:
// discrete dates, date range, single date, specific month, relative keyword.
// When nothing matches the window is "bulan ini" and ok is false, meaning no
// explicit time signal was present.
func Parse(text string, now time.Time) (w Window, ok bool) {
	if ds := DiscreteDates(text, now); ds != nil {
		return Dates(ds...), true
	}
	if start, end, found := DateRange(text, now); found {
		return Range(start, end), true
	}
	if d, found := SingleDate(text, now); found {
		return Date(d), true
	}
	if m, y, found := SpecificMonth(text, now); found {
		return MonthOf(m, y), true
	}
	if r, found := RelativeKeyword(text); found {
		return RelativeOf(r), true
	}
	return RelativeOf(ThisMonth), false
}

// DiscreteDates returns two or more sorted, distinct dates when text holds
// several day-month mentions and the first two are not joined by a range
// separator. A missing year takes the nearest explicit year to its right,
// then the current year.
func DiscreteDates(text string, now time.Time) []time.Time {
	lower := strings.ToLower(text)
	matches := reDate.FindAllStringSubmatchIndex(lower, -1)
	if len(matches) < 2 {
		return nil
	}
	if hasRangeSeparator(lower[matches[0][1]:matches[1][0]]) {
		return nil
	}

	years := make([]int, len(matches))
	carry := 0
	for i := len(matches) - 1; i >= 0; i-- {
		if y := group(lower, matches[i], 3); y != "" {
			carry = atoi(y)
		}
		years[i] = carry
		if years[i] == 0 {
			years[i] = now.Year()
		}
	}

	seen := make(map[time.Time]bool, len(matches))
	var out []time.Time
	for i, m := range matches {
		d, valid := makeDate(years[i], monthWords[group(lower, m, 2)], atoi(group(lower, m, 1)), now.Location())
		if !valid || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	if len(out) < 2 {
		return nil
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// DateRange matches "D1 M1 [Y1] <sep> D2 M2 [Y2]" or the same-month
// shorthand "D1 <sep> D2 M [Y]". A range whose end precedes its start is
// rejected.
func DateRange(text string, now time.Time) (start, end time.Time, ok bool) {
	lower := strings.ToLower(text)
	loc := now.Location()

	if m := reRange.FindStringSubmatchIndex(lower); m != nil {
		y1, y2 := atoi(group(lower, m, 3)), atoi(group(lower, m, 6))
		if y1 == 0 {
			y1 = y2
		}
		if y1 == 0 {
			y1 = now.Year()
		}
		if y2 == 0 {
			y2 = y1
		}
		s, ok1 := makeDate(y1, monthWords[group(lower, m, 2)], atoi(group(lower, m, 1)), loc)
		e, ok2 := makeDate(y2, monthWords[group(lower, m, 5)], atoi(group(lower, m, 4)), loc)
		if !ok1 || !ok2 || e.Before(s) {
			return time.Time{}, time.Time{}, false
		}
		return s, e, true
	}

	if m := reShortRange.FindStringSubmatchIndex(lower); m != nil {
		year := atoi(group(lower, m, 4))
		if year == 0 {
			year = now.Year()
		}
		month := monthWords[group(lower, m, 3)]
		s, ok1 := makeDate(year, month, atoi(group(lower, m, 1)), loc)
		e, ok2 := makeDate(year, month, atoi(group(lower, m, 2)), loc)
		if ok1 && ok2 && !e.Before(s) {
			return s, e, true
		}
	}
	return time.Time{}, time.Time{}, false
}

// SingleDate returns the first day-month(-year) mention. The year defaults
// to the current year.
func SingleDate(text string, now time.Time) (time.Time, bool) {
	lower := strings.ToLower(text)
	m := reDate.FindStringSubmatchIndex(lower)
	if m == nil {
		return time.Time{}, false
	}
	year := atoi(group(lower, m, 3))
	if year == 0 {
		year = now.Year()
	}
	return makeDate(year, monthWords[group(lower, m, 2)], atoi(group(lower, m, 1)), now.Location())
}

// SpecificMonth returns a month mention, optionally preceded by "bulan",
// unless a day number sits right before it.
func SpecificMonth(text string, now time.Time) (time.Month, int, bool) {
	lower := strings.ToLower(text)
	m := reMonth.FindStringSubmatchIndex(lower)
	if m == nil {
		return 0, 0, false
	}
	before := strings.TrimRight(lower[:m[0]], " \t")
	if before != "" && before[len(before)-1] >= '0' && before[len(before)-1] <= '9' {
		return 0, 0, false
	}
	year := atoi(group(lower, m, 2))
	if year == 0 {
		year = now.Year()
	}
	return monthWords[group(lower, m, 1)], year, true
}

// RelativeKeyword returns the first relative-timeframe phrase in text.
func RelativeKeyword(text string) (Relative, bool) {
	lower := strings.ToLower(text)
	for i, re := range reRelative {
		if re.MatchString(lower) {
			return relativeWords[i].tag, true
		}
	}
	return "", false
}

// makeDate builds a calendar date, rejecting values time.Date would
// normalise (31 februari).
func makeDate(year int, month time.Month, day int, loc *time.Location) (time.Time, bool) {
	if month == 0 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	d := time.Date(year, month, day, 0, 0, 0, 0, loc)
	if d.Month() != month || d.Day() != day {
		return time.Time{}, false
	}
	return d, true
}

func group(s string, m []int, g int) string {
	if 2*g+1 >= len(m) || m[2*g] < 0 {
		return ""
	}
	return s[m[2*g]:m[2*g+1]]
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
