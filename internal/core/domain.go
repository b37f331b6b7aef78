package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type (
	// Transaction is one ledger row. Price is in whole rupiah.
	Transaction struct {
		Date          time.Time
		Capster       string
		Service       string
		Price         int64
		PaymentMethod string
		Branch        string
	}

	Capster struct {
		Name       string
		TelegramID int64
		Alias      string
	}

	CostItem struct {
		Name   string `json:"name"`
		Amount int64  `json:"amount"`
	}

	BranchConfig struct {
		ID             string
		Name           string
		Location       string
		Short          string
		Employees      int
		CommissionRate decimal.Decimal // fraction of revenue, 0..1
		FixedCosts     []CostItem      // monthly
	}
)

var (
	ErrZeroDate          = errors.New("transaction date cannot be zero")
	ErrNegativePrice     = errors.New("negative price")
	ErrEmptyCapster      = errors.New("empty capster name")
	ErrEmptyBranchName   = errors.New("empty branch name")
	ErrInvalidCommission = errors.New("commission rate must be between 0 and 1")
	ErrNegativeCost      = errors.New("negative cost item")
)

func (t Transaction) Validate() error {
	if t.Date.IsZero() {
		return ErrZeroDate
	}
	if t.Price < 0 {
		return ErrNegativePrice
	}
	if strings.TrimSpace(t.Capster) == "" {
		return ErrEmptyCapster
	}
	return nil
}

// Names returns the primary name followed by the alias, if it differs.
func (c Capster) Names() []string {
	names := []string{strings.TrimSpace(c.Name)}
	alias := strings.TrimSpace(c.Alias)
	if alias != "" && !strings.EqualFold(alias, names[0]) {
		names = append(names, alias)
	}
	return names
}

func (b BranchConfig) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return ErrEmptyBranchName
	}
	if b.CommissionRate.IsNegative() || b.CommissionRate.GreaterThan(decimal.NewFromInt(1)) {
		return ErrInvalidCommission
	}
	for _, c := range b.FixedCosts {
		if c.Amount < 0 {
			return errors.New(ErrNegativeCost.Error() + ": " + c.Name)
		}
	}
	return nil
}

// FixedCostTotal sums the monthly fixed cost items.
func (b BranchConfig) FixedCostTotal() int64 {
	var total int64
	for _, c := range b.FixedCosts {
		total += c.Amount
	}
	return total
}

// DefaultBranches is the built-in configuration used when no BranchConfig
// sheet is available.
func DefaultBranches() []BranchConfig {
	return []BranchConfig{
		{
			ID:             "cabang_a",
			Name:           "Cabang Denailla",
			Location:       "Mojosari",
			Short:          "Cabang A",
			Employees:      2,
			CommissionRate: decimal.Zero,
			FixedCosts: []CostItem{
				{Name: "tempat", Amount: 520000},
				{Name: "listrik air", Amount: 400000},
				{Name: "wifi", Amount: 15000},
				{Name: "karyawan fixed", Amount: 2500000},
			},
		},
		{
			ID:             "cabang_b",
			Name:           "Cabang Sumput",
			Location:       "Sumput",
			Short:          "Cabang B",
			Employees:      2,
			CommissionRate: decimal.Zero,
			FixedCosts: []CostItem{
				{Name: "tempat", Amount: 792000},
				{Name: "listrik air", Amount: 350000},
				{Name: "wifi", Amount: 30000},
			},
		},
	}
}
