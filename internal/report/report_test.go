package report

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"laporan/internal/calendar"
	"laporan/internal/core"
	"laporan/internal/entity"
	"laporan/internal/query"
	"laporan/internal/timeexpr"
)

// Wednesday 11 March 2026
var now = time.Date(2026, time.March, 11, 15, 0, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func at(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC)
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name      string
		w         timeexpr.Window
		wantStart time.Time
		wantEnd   time.Time
	}{
		{"today", timeexpr.RelativeOf(timeexpr.Today), day(2026, 3, 11), day(2026, 3, 11)},
		{"yesterday", timeexpr.RelativeOf(timeexpr.Yesterday), day(2026, 3, 10), day(2026, 3, 10)},
		{"this week", timeexpr.RelativeOf(timeexpr.ThisWeek), day(2026, 3, 9), day(2026, 3, 15)},
		{"last week", timeexpr.RelativeOf(timeexpr.LastWeek), day(2026, 3, 2), day(2026, 3, 8)},
		{"this month", timeexpr.RelativeOf(timeexpr.ThisMonth), day(2026, 3, 1), day(2026, 3, 31)},
		{"last month", timeexpr.RelativeOf(timeexpr.LastMonth), day(2026, 2, 1), day(2026, 2, 28)},
		{"last 3 months is 90 days", timeexpr.RelativeOf(timeexpr.Last3Months), day(2025, 12, 11), day(2026, 3, 11)},
		{"month", timeexpr.MonthOf(time.February, 2024), day(2024, 2, 1), day(2024, 2, 29)},
		{"single date", timeexpr.Date(day(2026, 1, 5)), day(2026, 1, 5), day(2026, 1, 5)},
		{"range", timeexpr.Range(day(2025, 12, 28), day(2026, 1, 3)), day(2025, 12, 28), day(2026, 1, 3)},
		{"dates", timeexpr.Dates(day(2026, 1, 15), day(2026, 1, 18)), day(2026, 1, 15), day(2026, 1, 18)},
		{"none defaults to this month", timeexpr.Window{}, day(2026, 3, 1), day(2026, 3, 31)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Resolve(tt.w, now)
			wantEnd := tt.wantEnd.Add(24*time.Hour - time.Second)
			if !p.Start.Equal(tt.wantStart) || !p.End.Equal(wantEnd) {
				t.Errorf("Resolve() = [%v, %v], want [%v, %v]", p.Start, p.End, tt.wantStart, wantEnd)
			}
		})
	}
}

func TestPeriodContainsAndYears(t *testing.T) {
	p := Resolve(timeexpr.Dates(day(2026, 1, 15), day(2026, 1, 18)), now)
	if !p.Contains(at(2026, 1, 15, 10)) || !p.Contains(at(2026, 1, 18, 23)) {
		t.Errorf("Contains() = false for a listed date")
	}
	if p.Contains(at(2026, 1, 16, 10)) {
		t.Errorf("Contains() = true for a date between the listed dates")
	}

	cross := Resolve(timeexpr.Range(day(2025, 12, 28), day(2026, 1, 3)), now)
	if got := cross.Years(); !reflect.DeepEqual(got, []int{2025, 2026}) {
		t.Errorf("Years() = %v, want [2025 2026]", got)
	}
}

func identity(s string) string { return s }

func buckets(names ...any) []core.Bucket {
	var out []core.Bucket
	for i := 0; i < len(names); i += 3 {
		out = append(out, core.Bucket{Name: names[i].(string), Revenue: int64(names[i+1].(int)), Count: names[i+2].(int)})
	}
	return out
}

func rowsFor(capster string, prices ...int64) []core.Transaction {
	var out []core.Transaction
	for i, p := range prices {
		out = append(out, core.Transaction{Date: at(2026, 3, 2+i, 10), Capster: capster, Service: "Potong", Price: p, Branch: "Cabang Denailla"})
	}
	return out
}

func TestRankCapsters(t *testing.T) {
	var rows []core.Transaction
	rows = append(rows, rowsFor("Citra", 50000)...)
	rows = append(rows, rowsFor("Budi", 25000, 25000)...)
	rows = append(rows, rowsFor("Andi", 50000)...)
	rows = append(rows, rowsFor("Dewi", 10000)...)

	tests := []struct {
		name string
		r    Ranking
		want []core.Bucket
	}{
		{
			name: "revenue desc, ties by count then name",
			r:    Ranking{SortBy: query.SortRevenue, Order: query.Desc},
			want: buckets("Budi", 50000, 2, "Andi", 50000, 1, "Citra", 50000, 1, "Dewi", 10000, 1),
		},
		{
			name: "limit",
			r:    Ranking{SortBy: query.SortRevenue, Order: query.Desc, Limit: 2},
			want: buckets("Budi", 50000, 2, "Andi", 50000, 1),
		},
		{
			name: "count desc",
			r:    Ranking{SortBy: query.SortCount, Order: query.Desc},
			want: buckets("Budi", 50000, 2, "Andi", 50000, 1, "Citra", 50000, 1, "Dewi", 10000, 1),
		},
		{
			name: "revenue asc keeps name order on ties",
			r:    Ranking{SortBy: query.SortRevenue, Order: query.Asc},
			want: buckets("Dewi", 10000, 1, "Andi", 50000, 1, "Citra", 50000, 1, "Budi", 50000, 2),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RankCapsters(rows, identity, tt.r); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("RankCapsters() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPopularServicesOrdersByCount(t *testing.T) {
	rows := []core.Transaction{
		{Date: at(2026, 3, 1, 9), Service: "Creambath", Price: 100000},
		{Date: at(2026, 3, 1, 10), Service: "Potong", Price: 35000},
		{Date: at(2026, 3, 1, 11), Service: "Potong", Price: 35000},
		{Date: at(2026, 3, 1, 12), Service: "Cukur", Price: 20000},
	}
	got := PopularServices(rows, 2)
	want := buckets("Potong", 70000, 2, "Creambath", 100000, 1)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("PopularServices() = %v, want %v", got, want)
	}
}

func TestCompareBranchesAndPayments(t *testing.T) {
	rows := []core.Transaction{
		{Date: at(2026, 3, 1, 9), Branch: "sumput", Price: 30000, PaymentMethod: "QRIS"},
		{Date: at(2026, 3, 1, 10), Branch: "Cabang Denailla", Price: 50000, PaymentMethod: "Cash"},
		{Date: at(2026, 3, 1, 11), Branch: "Cabang Sumput", Price: 30000},
	}
	r := entity.NewResolver(nil, core.DefaultBranches())
	got := CompareBranches(rows, r.BranchName)
	want := buckets("Cabang Sumput", 60000, 2, "Cabang Denailla", 50000, 1)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CompareBranches() = %v, want %v", got, want)
	}

	pay := PaymentBreakdown(rows)
	wantPay := buckets("Cash", 50000, 1, "-", 30000, 1, "QRIS", 30000, 1)
	if !reflect.DeepEqual(pay, wantPay) {
		t.Errorf("PaymentBreakdown() = %v, want %v", pay, wantPay)
	}
}

func TestDailyBreakdown(t *testing.T) {
	rows := []core.Transaction{
		{Date: at(2026, 3, 10, 9), Price: 10000},
		{Date: at(2026, 3, 9, 9), Price: 20000},
		{Date: at(2026, 3, 9, 15), Price: 5000},
	}
	got := DailyBreakdown(rows)
	want := []Day{
		{Date: "2026-03-09", DayName: "Senin", Revenue: 25000, Count: 2},
		{Date: "2026-03-10", DayName: "Selasa", Revenue: 10000, Count: 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DailyBreakdown() = %v, want %v", got, want)
	}
}

func TestWeeklyBreakdown(t *testing.T) {
	weeks := calendar.WeeksInMonth(2026, time.March, time.UTC)
	rows := []core.Transaction{
		{Date: at(2026, 3, 1, 9), Price: 10000},  // week 1 is only Sunday 1 March
		{Date: at(2026, 3, 2, 9), Price: 20000},  // week 2
		{Date: at(2026, 3, 31, 9), Price: 30000}, // last week
	}
	got := WeeklyBreakdown(rows, weeks)
	if len(got) != len(weeks) {
		t.Fatalf("WeeklyBreakdown() returned %d weeks, want %d", len(got), len(weeks))
	}
	if got[0].Revenue != 10000 || got[1].Revenue != 20000 || got[len(got)-1].Revenue != 30000 {
		t.Errorf("WeeklyBreakdown() = %+v", got)
	}
}

func TestSummarise(t *testing.T) {
	rows := []core.Transaction{
		{Date: at(2026, 3, 9, 9), Price: 20000},
		{Date: at(2026, 3, 9, 15), Price: 10000},
		{Date: at(2026, 3, 11, 9), Price: 30000},
	}
	got := Summarise(rows)
	want := core.Totals{Revenue: 60000, Count: 3, OperatingDays: 2, AveragePerDay: 30000}
	if got != want {
		t.Errorf("Summarise() = %+v, want %+v", got, want)
	}
}

func scenarioBranches() []core.BranchConfig {
	return []core.BranchConfig{
		{ID: "a", Name: "Branch A", FixedCosts: []core.CostItem{{Name: "tempat", Amount: 400000}, {Name: "listrik", Amount: 200000}}},
		{ID: "b", Name: "Branch B", CommissionRate: decimal.RequireFromString("0.5"), FixedCosts: []core.CostItem{{Name: "tempat", Amount: 300000}}},
	}
}

func TestComputeProfitScenario(t *testing.T) {
	rows := []core.Transaction{
		{Date: at(2026, 2, 3, 10), Branch: "Branch A", Price: 600000},
		{Date: at(2026, 2, 4, 10), Branch: "Branch A", Price: 400000},
		{Date: at(2026, 2, 5, 10), Branch: "Branch B", Price: 1000000},
	}
	p := ComputeProfit(rows, scenarioBranches(), identity)

	if len(p.Lines) != 2 {
		t.Fatalf("ComputeProfit() returned %d lines, want 2", len(p.Lines))
	}
	a, b := p.Lines[0], p.Lines[1]
	checks := []struct {
		name string
		got  decimal.Decimal
		want int64
	}{
		{"A net profit", a.NetProfit, 400000},
		{"A commission", a.CommissionCost, 0},
		{"B commission", b.CommissionCost, 500000},
		{"B total cost", b.TotalCost, 800000},
		{"B net profit", b.NetProfit, 200000},
		{"total revenue", p.Total.Revenue, 2000000},
		{"total fixed", p.Total.FixedCost, 900000},
		{"total net", p.Total.NetProfit, 600000},
	}
	for _, c := range checks {
		if !c.got.Equal(decimal.NewFromInt(c.want)) {
			t.Errorf("%s = %s, want %d", c.name, c.got, c.want)
		}
	}
}

func TestComputeProfitIdentity(t *testing.T) {
	rates := []string{"0", "0.1", "0.125", "0.33", "1"}
	revenues := []int64{0, 1, 35000, 999999, 12345678}
	for _, rs := range rates {
		for _, rev := range revenues {
			rate := decimal.RequireFromString(rs)
			cfg := []core.BranchConfig{{Name: "X", CommissionRate: rate, FixedCosts: []core.CostItem{{Name: "f", Amount: 250000}}}}
			var rows []core.Transaction
			if rev > 0 {
				rows = []core.Transaction{{Date: at(2026, 3, 1, 9), Branch: "X", Price: rev}}
			}
			line := ComputeProfit(rows, cfg, identity).Lines[0]

			r := decimal.NewFromInt(rev)
			want := r.Sub(decimal.NewFromInt(250000)).Sub(r.Mul(rate))
			if !line.NetProfit.Equal(want) {
				t.Errorf("rate %s revenue %d: net = %s, want %s", rs, rev, line.NetProfit, want)
			}
		}
	}
}

func TestComputeProfitUnknownBranch(t *testing.T) {
	rows := []core.Transaction{{Date: at(2026, 3, 1, 9), Branch: "Cabang Baru", Price: 50000}}
	p := ComputeProfit(rows, scenarioBranches(), identity)
	if len(p.Lines) != 3 {
		t.Fatalf("ComputeProfit() returned %d lines, want 3", len(p.Lines))
	}
	u := p.Lines[2]
	if u.Branch != "Cabang Baru" || u.Configured || !u.TotalCost.IsZero() || !u.NetProfit.Equal(decimal.NewFromInt(50000)) {
		t.Errorf("unknown branch line = %+v", u)
	}
	if !p.Lines[0].Revenue.IsZero() || !p.Lines[0].NetProfit.Equal(decimal.NewFromInt(-600000)) {
		t.Errorf("branch without rows = %+v", p.Lines[0])
	}
}

type fakeLedgers struct {
	calls atomic.Int32
	years []int
	rows  []core.Transaction
	err   error
}

func (f *fakeLedgers) Resolve(ctx context.Context, year int) (*core.Ledger, error) {
	f.calls.Add(1)
	f.years = append(f.years, year)
	if f.err != nil {
		return nil, f.err
	}
	var rows []core.Transaction
	for _, r := range f.rows {
		if r.Date.Year() == year {
			rows = append(rows, r)
		}
	}
	return core.NewLedger(year, rows), nil
}

func engineResolver() *entity.Resolver {
	return entity.NewResolver(
		[]core.Capster{{Name: "Andi", Alias: "Ndi"}, {Name: "Budi"}},
		core.DefaultBranches(),
	)
}

func engineRows() []core.Transaction {
	return []core.Transaction{
		{Date: at(2026, 3, 2, 10), Capster: "Ndi", Service: "Potong", Price: 35000, PaymentMethod: "Cash", Branch: "Cabang Denailla"},
		{Date: at(2026, 3, 3, 10), Capster: "Andi", Service: "Potong", Price: 35000, PaymentMethod: "QRIS", Branch: "mojosari"},
		{Date: at(2026, 3, 3, 11), Capster: "Budi", Service: "Cukur", Price: 25000, PaymentMethod: "Cash", Branch: "Cabang Sumput"},
		{Date: at(2026, 3, 10, 11), Capster: "Budi", Service: "Potong", Price: 35000, PaymentMethod: "Cash", Branch: "Cabang Sumput"},
		{Date: at(2026, 2, 20, 11), Capster: "andi", Service: "Creambath", Price: 100000, PaymentMethod: "Cash", Branch: "Cabang Denailla"},
	}
}

func newTestEngine(l LedgerSource) *Engine {
	return NewEngine(l, engineResolver(), WithClock(func() time.Time { return now }))
}

func intentFor(t *testing.T, text string) query.Intent {
	t.Helper()
	return query.NewKeywordBuilder(engineResolver(), func() time.Time { return now }).Build(text)
}

func TestEngineInvalidIntentSkipsFetch(t *testing.T) {
	l := &fakeLedgers{rows: engineRows()}
	e := newTestEngine(l)

	_, err := e.Run(context.Background(), intentFor(t, "halo apa kabar"))
	if !errors.Is(err, ErrNotUnderstood) {
		t.Fatalf("Run() error = %v, want %v", err, ErrNotUnderstood)
	}
	if l.calls.Load() != 0 {
		t.Errorf("ledger fetches = %d, want 0", l.calls.Load())
	}
}

func TestEngineStoreFailure(t *testing.T) {
	errDown := errors.New("quota exceeded")
	e := newTestEngine(&fakeLedgers{err: errDown})

	_, err := e.Run(context.Background(), intentFor(t, "pendapatan bulan ini"))
	var se *StoreError
	if !errors.As(err, &se) || se.Year != 2026 || !errors.Is(err, errDown) {
		t.Fatalf("Run() error = %v, want StoreError for 2026", err)
	}
}

func TestEngineNoData(t *testing.T) {
	e := newTestEngine(&fakeLedgers{rows: engineRows()})
	res, err := e.Run(context.Background(), intentFor(t, "pendapatan bulan agustus 2025"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.Empty || res.Totals.Count != 0 {
		t.Errorf("Run() = %+v, want empty result", res)
	}
}

func TestEngineRevenue(t *testing.T) {
	e := newTestEngine(&fakeLedgers{rows: engineRows()})
	res, err := e.Run(context.Background(), intentFor(t, "pendapatan bulan ini"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Totals.Revenue != 130000 || res.Totals.Count != 4 || res.Totals.OperatingDays != 3 {
		t.Errorf("Totals = %+v", res.Totals)
	}
	want := buckets("Cabang Denailla", 70000, 2, "Cabang Sumput", 60000, 2)
	if !reflect.DeepEqual(res.Branches, want) {
		t.Errorf("Branches = %v, want %v", res.Branches, want)
	}
}

func TestEngineAliasEquivalence(t *testing.T) {
	e := newTestEngine(&fakeLedgers{rows: engineRows()})

	ranking := func(name string) query.Intent {
		return query.New(query.Spec{
			Type:     query.CapsterRanking,
			Window:   timeexpr.RelativeOf(timeexpr.Last3Months),
			Capsters: []string{name},
			Aliases:  engineResolver().Aliases(),
			Valid:    true,
		})
	}

	byAlias, err := e.Run(context.Background(), ranking("Ndi"))
	if err != nil {
		t.Fatalf("Run(alias) error = %v", err)
	}
	byName, err := e.Run(context.Background(), ranking("Andi"))
	if err != nil {
		t.Fatalf("Run(name) error = %v", err)
	}
	if !reflect.DeepEqual(byAlias.Capsters, byName.Capsters) {
		t.Errorf("alias buckets %v != name buckets %v", byAlias.Capsters, byName.Capsters)
	}
	want := buckets("Andi", 170000, 3)
	if !reflect.DeepEqual(byName.Capsters, want) {
		t.Errorf("Capsters = %v, want %v", byName.Capsters, want)
	}
}

func TestEngineBranchFilter(t *testing.T) {
	e := newTestEngine(&fakeLedgers{rows: engineRows()})
	res, err := e.Run(context.Background(), intentFor(t, "pendapatan mojosari bulan ini"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Totals.Revenue != 70000 || len(res.Branches) != 1 || res.Branches[0].Name != "Cabang Denailla" {
		t.Errorf("Run() = totals %+v branches %v", res.Totals, res.Branches)
	}
}

func TestEngineDiscreteDates(t *testing.T) {
	e := newTestEngine(&fakeLedgers{rows: engineRows()})
	res, err := e.Run(context.Background(), intentFor(t, "transaksi 2 maret 2026, 10 maret 2026"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Totals.Count != 2 || res.Totals.Revenue != 70000 {
		t.Errorf("Totals = %+v, want the rows of 2 and 10 March only", res.Totals)
	}
}

func TestEngineCrossYearFetchesEachYear(t *testing.T) {
	l := &fakeLedgers{rows: engineRows()}
	e := newTestEngine(l)
	if _, err := e.Run(context.Background(), intentFor(t, "pendapatan 28 desember 2025 sampai 3 januari 2026")); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !reflect.DeepEqual(l.years, []int{2025, 2026}) {
		t.Errorf("fetched years = %v, want [2025 2026]", l.years)
	}
}

func TestEngineMonthlyProfit(t *testing.T) {
	e := newTestEngine(&fakeLedgers{rows: engineRows()})
	res, err := e.MonthlyProfit(context.Background(), 2026, time.March)
	if err != nil {
		t.Fatalf("MonthlyProfit() error = %v", err)
	}
	if res.Profit == nil {
		t.Fatalf("MonthlyProfit() returned no profit section")
	}
	// Denailla 70000 - 3435000, Sumput 60000 - 1172000
	if got, want := res.Profit.Total.NetProfit, decimal.NewFromInt(130000-3435000-1172000); !got.Equal(want) {
		t.Errorf("total net = %s, want %s", got, want)
	}
	if res.Period.Label != "Maret 2026" {
		t.Errorf("Period.Label = %q, want Maret 2026", res.Period.Label)
	}
}

func TestEngineProfitUsesMonthOfWindow(t *testing.T) {
	e := newTestEngine(&fakeLedgers{rows: engineRows()})
	res, err := e.Run(context.Background(), intentFor(t, "laba bulan lalu"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.Period.Start.Equal(day(2026, 2, 1)) || res.Totals.Revenue != 100000 {
		t.Errorf("Run() = period %v revenue %d, want February", res.Period.Start, res.Totals.Revenue)
	}
}

func TestEngineSummaries(t *testing.T) {
	e := newTestEngine(&fakeLedgers{rows: engineRows()})

	weekly, err := e.Run(context.Background(), query.ForReport(query.WeeklySummary, timeexpr.RelativeOf(timeexpr.LastWeek)))
	if err != nil {
		t.Fatalf("Run(weekly) error = %v", err)
	}
	if len(weekly.Days) != 2 || weekly.Days[0].DayName != "Senin" || len(weekly.Payments) != 2 {
		t.Errorf("weekly = days %v payments %v", weekly.Days, weekly.Payments)
	}

	monthly, err := e.Run(context.Background(), query.ForReport(query.MonthlySummary, timeexpr.MonthOf(time.March, 2026)))
	if err != nil {
		t.Fatalf("Run(monthly) error = %v", err)
	}
	if len(monthly.Weeks) != len(calendar.WeeksInMonth(2026, time.March, time.UTC)) {
		t.Errorf("monthly weeks = %d", len(monthly.Weeks))
	}
	if len(monthly.Services) == 0 || monthly.Services[0].Name != "Potong" {
		t.Errorf("monthly services = %v", monthly.Services)
	}
}

func TestGetAggregatorCoversEveryType(t *testing.T) {
	for _, k := range query.ReportTypes() {
		if _, err := GetAggregator(k); err != nil {
			t.Errorf("GetAggregator(%q) error = %v", k, err)
		}
	}
	if _, err := GetAggregator("bogus"); err == nil {
		t.Errorf("GetAggregator(bogus) error = nil")
	}
}
