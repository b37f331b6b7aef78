package query

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"laporan/internal/entity"
	"laporan/internal/timeexpr"
)

type keywordGroup struct {
	kind    ReportType
	metrics []Metric
	words   []*regexp.Regexp
}

// keywordGroups is evaluated in order; the first group with a hit decides
// the report type.
var keywordGroups = []keywordGroup{
	group(CapsterRanking, []Metric{MetricRevenue, MetricTransactionCount},
		"ranking", "rangking", "terbaik", "top capster", "capster terbaik", "peringkat"),
	group(BranchComparison, []Metric{MetricRevenue, MetricTransactionCount},
		"banding", "bandingkan", "dibanding", "dibandingkan", "perbandingan", "compare", "vs cabang"),
	group(ServicePopularity, []Metric{MetricTransactionCount},
		"layanan populer", "layanan terpopuler", "service terpopuler", "paling laku", "terlaris", "populer", "terpopuler"),
	group(Profit, []Metric{MetricRevenue, MetricProfit},
		"laba", "rugi", "profit", "keuntungan", "untung", "margin"),
	group(Revenue, []Metric{MetricRevenue},
		"pendapatan", "revenue", "omzet", "omset", "pemasukan", "income"),
	group(TransactionCount, []Metric{MetricTransactionCount},
		"transaksi", "transaction", "jumlah"),
	group(DailySummary, []Metric{MetricRevenue, MetricTransactionCount},
		"laporan harian", "ringkasan harian", "daily"),
	group(WeeklySummary, []Metric{MetricRevenue, MetricTransactionCount},
		"laporan mingguan", "ringkasan mingguan", "weekly"),
	group(MonthlySummary, []Metric{MetricRevenue, MetricTransactionCount},
		"laporan bulanan", "ringkasan bulanan", "monthly", "laporan bulan"),
}

var (
	reTopN      = regexp.MustCompile(`\btop\s+(\d{1,3})\b`)
	reAscending = regexp.MustCompile(`\b(?:terendah|terkecil|paling sedikit|paling rendah|terburuk)\b`)
	reByCount   = regexp.MustCompile(`\b(?:transaksi|terbanyak|paling banyak|jumlah)\b`)
)

func group(kind ReportType, metrics []Metric, words ...string) keywordGroup {
	g := keywordGroup{kind: kind, metrics: metrics}
	for _, w := range words {
		g.words = append(g.words, regexp.MustCompile(`\b`+regexp.QuoteMeta(w)+`\b`))
	}
	return g
}

func (g keywordGroup) matches(text string) bool {
	for _, re := range g.words {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// KeywordBuilder derives an intent from keyword rules alone. It never fails.
type KeywordBuilder struct {
	resolver *entity.Resolver
	now      func() time.Time
}

// NewKeywordBuilder creates a builder. A nil resolver disables capster and
// branch filters; a nil clock uses time.Now.
func NewKeywordBuilder(resolver *entity.Resolver, now func() time.Time) *KeywordBuilder {
	if now == nil {
		now = time.Now
	}
	return &KeywordBuilder{resolver: resolver, now: now}
}

// Now is the builder's clock.
func (b *KeywordBuilder) Now() time.Time { return b.now() }

// Build classifies text. The intent is valid when a keyword group matched or
// the text holds an explicit time expression.
func (b *KeywordBuilder) Build(text string) Intent {
	lower := strings.ToLower(strings.TrimSpace(text))

	spec := Spec{
		Text:    text,
		Type:    General,
		Metrics: DefaultMetrics(General),
	}
	matched := false
	for _, g := range keywordGroups {
		if g.matches(lower) {
			spec.Type = g.kind
			spec.Metrics = g.metrics
			matched = true
			break
		}
	}

	window, explicit := timeexpr.Parse(text, b.now())
	spec.Window = window

	if b.resolver != nil {
		spec.Capsters = b.resolver.CapstersIn(text)
		spec.Branches = b.resolver.BranchesIn(text)
		spec.Aliases = b.resolver.Aliases()
	}

	if m := reTopN.FindStringSubmatch(lower); m != nil {
		spec.Limit, _ = strconv.Atoi(m[1])
	}
	if reAscending.MatchString(lower) {
		spec.Order = Asc
	}
	if spec.Type == CapsterRanking && reByCount.MatchString(lower) {
		spec.SortBy = SortCount
	}

	spec.Valid = matched || explicit
	return New(spec)
}
