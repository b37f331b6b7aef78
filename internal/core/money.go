// Package core provides money parsing and handling utilities.
//
// Sheet cells arrive as formatted strings, so prices and rates are parsed
// leniently: currency prefixes are stripped and both Indonesian ("25.000",
// "0,5") and plain ("25000", "0.5") notations are accepted.
package core

import (
	"errors"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

// ParseRupiah converts a price cell to whole rupiah.
//
// Examples:
//
//	ParseRupiah("25000")      -> 25000
//	ParseRupiah("Rp 25.000")  -> 25000
//	ParseRupiah("25.000,50")  -> 25001 (half-up)
//	ParseRupiah("25000.0")    -> 25000
func ParseRupiah(s string) (int64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.TrimSpace(strings.TrimPrefix(s, "rp"))
	s = strings.TrimPrefix(s, ".")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '.' && r != ',' {
			return 0, ErrInvalidAmount
		}
	}

	d, err := decimal.NewFromString(normalizeNumber(s))
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return d.Round(0).IntPart(), nil
}

// ParseRate converts a commission cell ("0,5", "0.5", "50%") to a fraction.
// An empty cell is a zero rate.
func ParseRate(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	percent := strings.HasSuffix(s, "%")
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", "."))
	if err != nil {
		return decimal.Zero, ErrInvalidCommission
	}
	if percent || d.GreaterThan(decimal.NewFromInt(1)) {
		d = d.Div(decimal.NewFromInt(100))
	}
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, ErrInvalidCommission
	}
	return d, nil
}

// normalizeNumber turns a grouped number into a plain dot-decimal string.
// Groups of exactly three digits after a single separator kind are read as
// thousands, except behind a leading zero ("0.500").
func normalizeNumber(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		// Both present: the rightmost one is the decimal separator.
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastDot >= 0 || lastComma >= 0:
		sep := "."
		idx := lastDot
		if lastComma >= 0 {
			sep = ","
			idx = lastComma
		}
		groups := strings.Split(s, sep)
		if isThousandsGrouping(groups) {
			return strings.Join(groups, "")
		}
		if len(groups) > 2 {
			return strings.Join(groups, "")
		}
		return s[:idx] + "." + s[idx+1:]
	default:
		return s
	}
}

func isThousandsGrouping(groups []string) bool {
	if len(groups) < 2 || groups[0] == "" || groups[0] == "0" || len(groups[0]) > 3 {
		return false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return false
		}
	}
	return true
}
