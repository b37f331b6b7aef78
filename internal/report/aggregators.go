package report

import (
	"fmt"

	"laporan/internal/core"
	"laporan/internal/query"
)

// summaryTop bounds the capster and service lists of summary reports.
const summaryTop = 5

// Input is everything an aggregator may read. Rows are already filtered.
type Input struct {
	Intent           query.Intent
	Period           Period
	Rows             []core.Transaction
	Branches         []core.BranchConfig
	CanonicalCapster func(string) string
	CanonicalBranch  func(string) string
}

func (in Input) ranking() Ranking {
	return Ranking{SortBy: in.Intent.SortBy(), Order: in.Intent.Order(), Limit: in.Intent.Limit()}
}

// Aggregator fills the sections of out for one report type. Totals are set
// before it runs.
type Aggregator func(in Input, out *Result)

// aggregators binds every report type to its aggregation.
var aggregators = map[query.ReportType]Aggregator{
	query.Revenue:           aggregateRevenue,
	query.TransactionCount:  aggregateRevenue,
	query.CapsterRanking:    aggregateRanking,
	query.BranchComparison:  aggregateComparison,
	query.ServicePopularity: aggregatePopularity,
	query.Profit:            aggregateProfit,
	query.DailySummary:      aggregateDailySummary,
	query.WeeklySummary:     aggregateDailySummary,
	query.MonthlySummary:    aggregateMonthlySummary,
	query.General:           aggregateGeneral,
}

// GetAggregator returns the aggregation bound to kind.
func GetAggregator(kind query.ReportType) (Aggregator, error) {
	agg, ok := aggregators[kind]
	if !ok {
		return nil, fmt.Errorf("unknown report type: %s", kind)
	}
	return agg, nil
}

func aggregateRevenue(in Input, out *Result) {
	out.Branches = CompareBranches(in.Rows, in.CanonicalBranch)
	if len(in.Intent.Capsters()) > 0 {
		out.Capsters = RankCapsters(in.Rows, in.CanonicalCapster, in.ranking())
	}
}

func aggregateRanking(in Input, out *Result) {
	out.Capsters = RankCapsters(in.Rows, in.CanonicalCapster, in.ranking())
}

func aggregateComparison(in Input, out *Result) {
	out.Branches = CompareBranches(in.Rows, in.CanonicalBranch)
}

func aggregatePopularity(in Input, out *Result) {
	out.Services = PopularServices(in.Rows, in.Intent.Limit())
}

func aggregateProfit(in Input, out *Result) {
	p := ComputeProfit(in.Rows, in.Branches, in.CanonicalBranch)
	out.Profit = &p
	out.Branches = CompareBranches(in.Rows, in.CanonicalBranch)
}

func aggregateDailySummary(in Input, out *Result) {
	summarise(in, out)
	out.Days = DailyBreakdown(in.Rows)
}

func aggregateMonthlySummary(in Input, out *Result) {
	summarise(in, out)
	out.Weeks = WeeklyBreakdown(in.Rows, weeksIn(in.Period))
}

func aggregateGeneral(in Input, out *Result) {
	out.Branches = CompareBranches(in.Rows, in.CanonicalBranch)
	out.Capsters = RankCapsters(in.Rows, in.CanonicalCapster, in.ranking())
}

func summarise(in Input, out *Result) {
	out.Branches = CompareBranches(in.Rows, in.CanonicalBranch)
	r := in.ranking()
	r.Limit = min(r.Limit, summaryTop)
	out.Capsters = RankCapsters(in.Rows, in.CanonicalCapster, r)
	out.Services = PopularServices(in.Rows, summaryTop)
	out.Payments = PaymentBreakdown(in.Rows)
}
