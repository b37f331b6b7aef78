// Package query turns a free-text question into a structured reporting
// intent, first by asking the AI parser and then by keyword rules.
package query

import (
	"encoding/json"

	"laporan/internal/entity"
	"laporan/internal/timeexpr"
)

// ReportType selects the aggregation a question asks for.
type ReportType string

const (
	Revenue           ReportType = "revenue"
	TransactionCount  ReportType = "transaction_count"
	CapsterRanking    ReportType = "capster_ranking"
	BranchComparison  ReportType = "branch_comparison"
	ServicePopularity ReportType = "service_popularity"
	Profit            ReportType = "profit"
	DailySummary      ReportType = "daily_summary"
	WeeklySummary     ReportType = "weekly_summary"
	MonthlySummary    ReportType = "monthly_summary"
	General           ReportType = "general"
)

// ReportTypes lists every report type in menu order.
func ReportTypes() []ReportType {
	return []ReportType{
		Revenue, TransactionCount, CapsterRanking, BranchComparison, ServicePopularity,
		Profit, DailySummary, WeeklySummary, MonthlySummary, General,
	}
}

func (t ReportType) IsValid() bool {
	for _, k := range ReportTypes() {
		if t == k {
			return true
		}
	}
	return false
}

// Metric is a figure the answer should feature.
type Metric string

const (
	MetricRevenue          Metric = "revenue"
	MetricTransactionCount Metric = "transaction_count"
	MetricProfit           Metric = "profit"
)

func (m Metric) IsValid() bool {
	return m == MetricRevenue || m == MetricTransactionCount || m == MetricProfit
}

// SortKey orders ranked reports.
type SortKey string

const (
	SortRevenue SortKey = "revenue"
	SortCount   SortKey = "transaction_count"
)

// Order is the sort direction.
type Order string

const (
	Desc Order = "desc"
	Asc  Order = "asc"
)

// DefaultLimit bounds ranked lists when the question names no size.
const DefaultLimit = 10

// Spec is the mutable form of an Intent, filled by parsers.
type Spec struct {
	Text     string
	Type     ReportType
	Metrics  []Metric
	Window   timeexpr.Window
	Capsters []string
	Branches []string
	Aliases  entity.AliasMap
	SortBy   SortKey
	Order    Order
	Limit    int
	Valid    bool
}

// Intent is an immutable parsed question. Build one with New.
type Intent struct {
	text     string
	kind     ReportType
	metrics  []Metric
	window   timeexpr.Window
	capsters []string
	branches []string
	aliases  entity.AliasMap
	sortBy   SortKey
	order    Order
	limit    int
	valid    bool
}

// New normalises s and freezes it into an Intent. Unknown report types
// become General, a missing window becomes "bulan ini", and empty metrics,
// sort or limit take the defaults of the report type.
func New(s Spec) Intent {
	kind := s.Type
	if !kind.IsValid() {
		kind = General
	}

	var metrics []Metric
	for _, m := range s.Metrics {
		if m.IsValid() && !containsMetric(metrics, m) {
			metrics = append(metrics, m)
		}
	}
	if len(metrics) == 0 {
		metrics = DefaultMetrics(kind)
	}

	window := s.Window.Clone()
	if window.IsZero() {
		window = timeexpr.RelativeOf(timeexpr.ThisMonth)
	}

	sortBy := s.SortBy
	if sortBy != SortRevenue && sortBy != SortCount {
		sortBy = defaultSort(kind)
	}
	order := s.Order
	if order != Asc {
		order = Desc
	}
	limit := s.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	aliases := make(entity.AliasMap, len(s.Aliases))
	for k, v := range s.Aliases {
		aliases[k] = append([]string(nil), v...)
	}

	return Intent{
		text:     s.Text,
		kind:     kind,
		metrics:  metrics,
		window:   window,
		capsters: compact(s.Capsters),
		branches: compact(s.Branches),
		aliases:  aliases,
		sortBy:   sortBy,
		order:    order,
		limit:    limit,
		valid:    s.Valid,
	}
}

// ForReport builds a valid intent for an explicit menu selection.
func ForReport(kind ReportType, window timeexpr.Window) Intent {
	return New(Spec{Type: kind, Window: window, Valid: true})
}

// DefaultMetrics are the metrics implied by a report type.
func DefaultMetrics(kind ReportType) []Metric {
	switch kind {
	case Revenue:
		return []Metric{MetricRevenue}
	case TransactionCount, ServicePopularity:
		return []Metric{MetricTransactionCount}
	case Profit:
		return []Metric{MetricRevenue, MetricProfit}
	default:
		return []Metric{MetricRevenue, MetricTransactionCount}
	}
}

func defaultSort(kind ReportType) SortKey {
	if kind == ServicePopularity || kind == TransactionCount {
		return SortCount
	}
	return SortRevenue
}

func (i Intent) Text() string            { return i.text }
func (i Intent) Type() ReportType        { return i.kind }
func (i Intent) Window() timeexpr.Window { return i.window.Clone() }
func (i Intent) SortBy() SortKey         { return i.sortBy }
func (i Intent) Order() Order            { return i.order }
func (i Intent) Limit() int              { return i.limit }
func (i Intent) Metrics() []Metric       { return append([]Metric(nil), i.metrics...) }
func (i Intent) Capsters() []string      { return append([]string(nil), i.capsters...) }
func (i Intent) Branches() []string      { return append([]string(nil), i.branches...) }
func (i Intent) HasMetric(m Metric) bool { return containsMetric(i.metrics, m) }

// Valid reports whether the question carried any recognisable signal. An
// invalid intent must not be executed.
func (i Intent) Valid() bool { return i.valid }

// CapsterSet is the capster filter expanded through the alias map. It is
// nil when the question names no capster.
func (i Intent) CapsterSet() entity.NameSet {
	return i.aliases.Set(i.capsters)
}

// Spec returns a mutable copy of the intent.
func (i Intent) Spec() Spec {
	s := Spec{
		Text:     i.text,
		Type:     i.kind,
		Metrics:  i.Metrics(),
		Window:   i.Window(),
		Capsters: i.Capsters(),
		Branches: i.Branches(),
		Aliases:  make(entity.AliasMap, len(i.aliases)),
		SortBy:   i.sortBy,
		Order:    i.order,
		Limit:    i.limit,
		Valid:    i.valid,
	}
	for k, v := range i.aliases {
		s.Aliases[k] = append([]string(nil), v...)
	}
	return s
}

func (i Intent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type     ReportType      `json:"report_type"`
		Metrics  []Metric        `json:"metrics"`
		Window   timeexpr.Window `json:"timeframe"`
		Capsters []string        `json:"capsters,omitempty"`
		Branches []string        `json:"branches,omitempty"`
		SortBy   SortKey         `json:"sort_by"`
		Order    Order           `json:"order"`
		Limit    int             `json:"limit"`
		Valid    bool            `json:"valid"`
	}{i.kind, i.metrics, i.window, i.capsters, i.branches, i.sortBy, i.order, i.limit, i.valid})
}

func containsMetric(ms []Metric, m Metric) bool {
	for _, x := range ms {
		if x == m {
			return true
		}
	}
	return false
}

func compact(names []string) []string {
	var out []string
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
