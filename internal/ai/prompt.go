package ai

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"time"

	"laporan/internal/query"
	"laporan/internal/timeexpr"
)

var promptTemplate = template.Must(template.New("parse").Parse(`Kamu adalah parser query untuk aplikasi barbershop. Analisis pertanyaan user dan ekstrak informasi terstruktur.

Pertanyaan user: {{.Query}}

Data yang tersedia:
- Capster (tukang cukur): {{.Capsters}}
- Cabang: {{.Branches}}

Kembalikan HANYA JSON (tanpa teks lain) dengan format:
{
    "report_type": "<salah satu dari: {{.ReportTypes}}>",
    "metrics": ["revenue", "transaction_count", "profit"],
    "timeframe": "<salah satu dari: {{.Timeframes}}> atau null",
    "specific_date": "YYYY-MM-DD atau null (tanggal spesifik / awal range)",
    "date_end": "YYYY-MM-DD atau null (akhir range)",
    "specific_dates": ["YYYY-MM-DD"] atau [] (beberapa tanggal terpisah, bukan range),
    "specific_month": <nomor bulan 1-12 atau null>,
    "specific_year": <tahun 4 digit atau null>,
    "capsters": ["nama capster yang disebut"] atau [],
    "branches": ["nama cabang yang disebut"] atau [],
    "sort_by": "revenue atau transaction_count atau null",
    "limit": <angka, default 10>
}

Aturan:
- Beberapa tanggal terpisah: isi specific_dates, specific_date dan date_end null
- Rentang tanggal: isi specific_date (awal) dan date_end (akhir)
- Satu tanggal: isi specific_date saja
- Bulan tanpa tanggal: isi specific_month dan specific_year, timeframe null
- Istilah relatif (hari ini, kemarin, minggu ini, bulan lalu, ...): isi timeframe saja
- Jika tidak ada waktu disebut: timeframe "bulan ini"
- Tidak jelas: report_type "general", metrics ["revenue", "transaction_count"]
- Cocokkan nama capster dan cabang dengan daftar yang tersedia
- Alias cabang: "denailla"/"mojosari" = "Cabang Denailla", "sumput" = "Cabang Sumput"
`))

var timeframes = []timeexpr.Relative{
	timeexpr.Today, timeexpr.Yesterday, timeexpr.ThisWeek, timeexpr.LastWeek,
	timeexpr.ThisMonth, timeexpr.LastMonth, timeexpr.Last3Months,
}

func buildPrompt(text string, capsters, branches []string) (string, error) {
	q, err := json.Marshal(text)
	if err != nil {
		return "", err
	}
	cj, err := json.Marshal(nonNil(capsters))
	if err != nil {
		return "", err
	}
	bj, err := json.Marshal(nonNil(branches))
	if err != nil {
		return "", err
	}

	kinds := make([]string, 0, len(query.ReportTypes()))
	for _, k := range query.ReportTypes() {
		kinds = append(kinds, string(k))
	}
	tfs := make([]string, 0, len(timeframes))
	for _, tf := range timeframes {
		tfs = append(tfs, string(tf))
	}

	var buf bytes.Buffer
	err = promptTemplate.Execute(&buf, map[string]string{
		"Query":       string(q),
		"Capsters":    string(cj),
		"Branches":    string(bj),
		"ReportTypes": strings.Join(kinds, ", "),
		"Timeframes":  strings.Join(tfs, ", "),
	})
	return buf.String(), err
}

// answer is the JSON contract the prompt asks Gemini to follow.
type answer struct {
	ReportType    string   `json:"report_type"`
	Metrics       []string `json:"metrics"`
	Timeframe     *string  `json:"timeframe"`
	SpecificDate  *string  `json:"specific_date"`
	DateEnd       *string  `json:"date_end"`
	SpecificDates []string `json:"specific_dates"`
	SpecificMonth *flexInt `json:"specific_month"`
	SpecificYear  *flexInt `json:"specific_year"`
	Capsters      []string `json:"capsters"`
	Branches      []string `json:"branches"`
	SortBy        *string  `json:"sort_by"`
	Limit         *flexInt `json:"limit"`
}

// spec converts the answer using the same window precedence as the keyword
// parser: discrete dates, range or single date, month, relative keyword.
func (a answer) spec(now time.Time) *query.Spec {
	s := &query.Spec{
		Type:     query.ReportType(strings.TrimSpace(a.ReportType)),
		Capsters: a.Capsters,
		Branches: a.Branches,
	}
	for _, m := range a.Metrics {
		s.Metrics = append(s.Metrics, query.Metric(m))
	}
	if a.SortBy != nil {
		s.SortBy = query.SortKey(*a.SortBy)
	}
	if a.Limit != nil {
		s.Limit = int(*a.Limit)
	}

	window, explicit := a.window(now)
	s.Window = window
	s.Valid = (s.Type.IsValid() && s.Type != query.General) || (explicit && !isDefaultWindow(window))
	return s
}

// isDefaultWindow reports the "bulan ini" the prompt asks for when no time is
// mentioned. It is not a signal on its own.
func isDefaultWindow(w timeexpr.Window) bool {
	return w.Kind == timeexpr.KindRelative && w.Relative == timeexpr.ThisMonth
}

func (a answer) window(now time.Time) (timeexpr.Window, bool) {
	loc := now.Location()

	if dates := parseDates(a.SpecificDates, loc); len(dates) >= 2 {
		return timeexpr.Dates(dates...), true
	}
	if start, ok := parseDate(a.SpecificDate, loc); ok {
		if end, ok := parseDate(a.DateEnd, loc); ok && !end.Before(start) {
			if end.Equal(start) {
				return timeexpr.Date(start), true
			}
			return timeexpr.Range(start, end), true
		}
		return timeexpr.Date(start), true
	}
	if a.SpecificMonth != nil && *a.SpecificMonth >= 1 && *a.SpecificMonth <= 12 {
		year := now.Year()
		if a.SpecificYear != nil && *a.SpecificYear > 0 {
			year = int(*a.SpecificYear)
		}
		return timeexpr.MonthOf(time.Month(*a.SpecificMonth), year), true
	}
	if a.Timeframe != nil {
		tf := strings.ToLower(strings.TrimSpace(*a.Timeframe))
		for _, r := range timeframes {
			if tf == string(r) {
				return timeexpr.RelativeOf(r), true
			}
		}
		for _, r := range timeframes {
			if tf != "" && (strings.Contains(tf, string(r)) || strings.Contains(string(r), tf)) {
				return timeexpr.RelativeOf(r), true
			}
		}
	}
	return timeexpr.RelativeOf(timeexpr.ThisMonth), false
}

func parseDate(s *string, loc *time.Location) (time.Time, bool) {
	if s == nil {
		return time.Time{}, false
	}
	d, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(*s), loc)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

func parseDates(ss []string, loc *time.Location) []time.Time {
	seen := make(map[time.Time]bool, len(ss))
	var out []time.Time
	for i := range ss {
		if d, ok := parseDate(&ss[i], loc); ok && !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// flexInt accepts 3, "3" and null.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

func nonNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}
