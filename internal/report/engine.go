// Package report resolves a query intent against the cached ledger and
// computes the requested aggregation.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"laporan/internal/core"
	"laporan/internal/entity"
	"laporan/internal/query"
	"laporan/internal/timeexpr"
)

// ErrNotUnderstood is returned for intents that carry no usable signal.
var ErrNotUnderstood = errors.New("query not understood")

// StoreError reports a failed ledger fetch.
type StoreError struct {
	Year int
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("load transactions for %d: %v", e.Year, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// LedgerSource hands out per-year ledger snapshots.
type LedgerSource interface {
	Resolve(ctx context.Context, year int) (*core.Ledger, error)
}

// Result is the structured payload of one report. Renderers pick the
// sections relevant to Type.
type Result struct {
	Type     query.ReportType `json:"report_type"`
	Period   Period           `json:"period"`
	Totals   core.Totals      `json:"totals"`
	Capsters []core.Bucket    `json:"capsters,omitempty"`
	Branches []core.Bucket    `json:"branches,omitempty"`
	Services []core.Bucket    `json:"services,omitempty"`
	Payments []core.Bucket    `json:"payments,omitempty"`
	Days     []Day            `json:"days,omitempty"`
	Weeks    []WeekTotal      `json:"weeks,omitempty"`
	Profit   *Profit          `json:"profit,omitempty"`
	Empty    bool             `json:"empty"`
}

// Engine runs intents. It holds no mutable state of its own.
type Engine struct {
	ledgers  LedgerSource
	resolver *entity.Resolver
	now      func() time.Time
	logger   *slog.Logger
}

type Option func(*Engine)

// WithClock replaces time.Now. The clock's location is the business time
// zone.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func NewEngine(ledgers LedgerSource, resolver *entity.Resolver, opts ...Option) *Engine {
	e := &Engine{
		ledgers:  ledgers,
		resolver: resolver,
		now:      time.Now,
		logger:   slog.Default(),
	}
	if e.resolver == nil {
		e.resolver = entity.NewResolver(nil, core.DefaultBranches())
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes intent. An invalid intent fails with ErrNotUnderstood before
// any fetch. A period without matching rows yields a Result with Empty set.
func (e *Engine) Run(ctx context.Context, intent query.Intent) (*Result, error) {
	if !intent.Valid() {
		return nil, ErrNotUnderstood
	}
	agg, err := GetAggregator(intent.Type())
	if err != nil {
		return nil, err
	}

	period := Resolve(intent.Window(), e.now())
	if intent.Type() == query.Profit {
		period = MonthPeriod(period.Start.Year(), period.Start.Month(), period.Start.Location())
	}

	rows, err := e.rows(ctx, period, intent)
	if err != nil {
		return nil, err
	}

	res := &Result{Type: intent.Type(), Period: period}
	if len(rows) == 0 {
		res.Empty = true
		e.logger.InfoContext(ctx, "No data for period",
			"component", "engine",
			"report_type", intent.Type(),
			"timeframe", period.Label)
		return res, nil
	}

	res.Totals = Summarise(rows)
	agg(e.input(intent, period, rows), res)

	e.logger.InfoContext(ctx, "Report computed",
		"component", "engine",
		"report_type", intent.Type(),
		"timeframe", period.Label,
		"rows", len(rows))
	return res, nil
}

// MonthlyProfit is the profit report for one calendar month.
func (e *Engine) MonthlyProfit(ctx context.Context, year int, month time.Month) (*Result, error) {
	return e.Run(ctx, query.ForReport(query.Profit, timeexpr.MonthOf(month, year)))
}

// rows loads every year the period touches and applies the period, capster
// and branch filters.
func (e *Engine) rows(ctx context.Context, p Period, intent query.Intent) ([]core.Transaction, error) {
	capsters := intent.CapsterSet()
	branches := e.branchSet(intent.Branches())

	var out []core.Transaction
	for _, year := range p.Years() {
		ledger, err := e.ledgers.Resolve(ctx, year)
		if err != nil {
			return nil, &StoreError{Year: year, Err: err}
		}
		for _, r := range ledger.Between(p.Start, p.End) {
			if !p.Contains(r.Date) || !capsters.Has(r.Capster) {
				continue
			}
			if branches != nil && !branches[strings.ToLower(e.resolver.BranchName(r.Branch))] {
				continue
			}
			out = append(out, r)
		}
	}
	return out, nil
}

// branchSet canonicalises the requested branch names. Nil means no filter.
func (e *Engine) branchSet(names []string) map[string]bool {
	if len(names) == 0 {
		return nil
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[strings.ToLower(e.resolver.BranchName(n))] = true
	}
	return set
}

// configuredBranches are the branch configs in scope of the branch filter.
func (e *Engine) configuredBranches(names []string) []core.BranchConfig {
	all := e.resolver.Branches()
	set := e.branchSet(names)
	if set == nil {
		return all
	}
	var out []core.BranchConfig
	for _, b := range all {
		if set[strings.ToLower(strings.TrimSpace(b.Name))] {
			out = append(out, b)
		}
	}
	return out
}

func (e *Engine) input(intent query.Intent, period Period, rows []core.Transaction) Input {
	return Input{
		Intent:           intent,
		Period:           period,
		Rows:             rows,
		Branches:         e.configuredBranches(intent.Branches()),
		CanonicalCapster: e.resolver.Canonical,
		CanonicalBranch:  e.resolver.BranchName,
	}
}
