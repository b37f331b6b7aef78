package timeexpr

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// monthWords maps Indonesian month names and the accepted abbreviations
// (Indonesian and English) to month numbers.
var monthWords = map[string]time.Month{
	"januari": time.January, "jan": time.January,
	"februari": time.February, "feb": time.February,
	"maret": time.March, "mar": time.March,
	"april": time.April, "apr": time.April,
	"mei":  time.May,
	"juni": time.June, "jun": time.June,
	"juli": time.July, "jul": time.July,
	"agustus": time.August, "agu": time.August, "ags": time.August, "aug": time.August,
	"september": time.September, "sep": time.September,
	"oktober": time.October, "okt": time.October, "oct": time.October,
	"november": time.November, "nov": time.November,
	"desember": time.December, "des": time.December, "dec": time.December,
}

// relativeWords is checked in order; the first phrase found wins.
var relativeWords = []struct {
	phrase string
	tag    Relative
}{
	{"hari ini", Today},
	{"today", Today},
	{"kemarin", Yesterday},
	{"yesterday", Yesterday},
	{"minggu lalu", LastWeek},
	{"last week", LastWeek},
	{"minggu ini", ThisWeek},
	{"this week", ThisWeek},
	{"bulan lalu", LastMonth},
	{"last month", LastMonth},
	{"bulan ini", ThisMonth},
	{"this month", ThisMonth},
	{"3 bulan terakhir", Last3Months},
	{"tiga bulan terakhir", Last3Months},
	{"3 bulan", Last3Months},
	{"tiga bulan", Last3Months},
}

var (
	monthPattern = monthAlternation()

	// day, month, optional year
	datePart = `\b(\d{1,2})\s+(` + monthPattern + `)\b(?:\s*(\d{4})\b)?`

	// separator between two dates or two day numbers
	rangeSep = `(?:\s+(?:sampai|hingga|s/d|s\.d\.?|sd|ke)\s+|\s*[-–]\s*)`

	reDate       = regexp.MustCompile(datePart)
	reRange      = regexp.MustCompile(datePart + rangeSep + datePart)
	reShortRange = regexp.MustCompile(`\b(\d{1,2})` + rangeSep + `(\d{1,2})\s+(` + monthPattern + `)\b(?:\s*(\d{4})\b)?`)
	reMonth      = regexp.MustCompile(`(?:\bbulan\s+)?\b(` + monthPattern + `)\b(?:\s*(\d{4})\b)?`)
	reSepWord    = regexp.MustCompile(`(?:^|\s)(?:sampai|hingga|s/d|s\.d\.?|sd|ke)(?:\s|$)|[-–]`)
	reRelative   = compileRelative()
)

// monthAlternation orders names longest first so "desember" is preferred
// over "des".
func monthAlternation() string {
	words := make([]string, 0, len(monthWords))
	for w := range monthWords {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if len(words[i]) != len(words[j]) {
			return len(words[i]) > len(words[j])
		}
		return words[i] < words[j]
	})
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	return strings.Join(words, "|")
}

func compileRelative() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(relativeWords))
	for i, r := range relativeWords {
		out[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(r.phrase) + `\b`)
	}
	return out
}

// hasRangeSeparator reports whether s contains a word that joins two dates
// into a range.
func hasRangeSeparator(s string) bool {
	return reSepWord.MatchString(s)
}
