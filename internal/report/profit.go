package report

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"laporan/internal/core"
)

// ProfitLine is the profit statement of one branch, or of all of them.
type ProfitLine struct {
	Branch         string          `json:"branch"`
	Revenue        decimal.Decimal `json:"revenue"`
	FixedCost      decimal.Decimal `json:"fixed_cost"`
	CommissionRate decimal.Decimal `json:"commission_rate"`
	CommissionCost decimal.Decimal `json:"commission_cost"`
	TotalCost      decimal.Decimal `json:"total_cost"`
	NetProfit      decimal.Decimal `json:"net_profit"`
	Costs          []core.CostItem `json:"costs,omitempty"`
	Configured     bool            `json:"configured"`
}

// Profit holds the per-branch lines and their component-wise sum. The total
// carries no commission rate.
type Profit struct {
	Lines []ProfitLine `json:"branches"`
	Total ProfitLine   `json:"total"`
}

// ComputeProfit applies, per branch,
//
//	commission = revenue × rate
//	total_cost = fixed + commission
//	net        = revenue − total_cost
//
// Every configured branch gets a line even without rows. Branches seen in
// rows but missing from the configuration get zero cost and zero commission.
// canonical maps a recorded branch name to its configured display name.
func ComputeProfit(rows []core.Transaction, branches []core.BranchConfig, canonical func(string) string) Profit {
	revenue := make(map[string]int64)
	display := make(map[string]string)
	for _, r := range rows {
		name := canonical(r.Branch)
		key := strings.ToLower(name)
		revenue[key] += r.Price
		if _, ok := display[key]; !ok {
			display[key] = name
		}
	}

	var p Profit
	seen := make(map[string]bool)
	for _, b := range branches {
		key := strings.ToLower(strings.TrimSpace(b.Name))
		if seen[key] {
			continue
		}
		seen[key] = true
		p.Lines = append(p.Lines, profitLine(strings.TrimSpace(b.Name), revenue[key], b, true))
	}

	var unknown []string
	for key := range revenue {
		if !seen[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	for _, key := range unknown {
		p.Lines = append(p.Lines, profitLine(display[key], revenue[key], core.BranchConfig{}, false))
	}

	p.Total = ProfitLine{
		Branch:         "Total",
		Revenue:        decimal.Zero,
		FixedCost:      decimal.Zero,
		CommissionRate: decimal.Zero,
		CommissionCost: decimal.Zero,
		TotalCost:      decimal.Zero,
		NetProfit:      decimal.Zero,
		Configured:     true,
	}
	for _, l := range p.Lines {
		p.Total.Revenue = p.Total.Revenue.Add(l.Revenue)
		p.Total.FixedCost = p.Total.FixedCost.Add(l.FixedCost)
		p.Total.CommissionCost = p.Total.CommissionCost.Add(l.CommissionCost)
		p.Total.TotalCost = p.Total.TotalCost.Add(l.TotalCost)
		p.Total.NetProfit = p.Total.NetProfit.Add(l.NetProfit)
	}
	return p
}

func profitLine(name string, revenue int64, b core.BranchConfig, configured bool) ProfitLine {
	rev := decimal.NewFromInt(revenue)
	fixed := decimal.NewFromInt(b.FixedCostTotal())
	rate := b.CommissionRate
	commission := rev.Mul(rate)
	total := fixed.Add(commission)
	return ProfitLine{
		Branch:         name,
		Revenue:        rev,
		FixedCost:      fixed,
		CommissionRate: rate,
		CommissionCost: commission,
		TotalCost:      total,
		NetProfit:      rev.Sub(total),
		Costs:          append([]core.CostItem(nil), b.FixedCosts...),
		Configured:     configured,
	}
}
