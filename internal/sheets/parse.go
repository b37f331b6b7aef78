package sheets

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"laporan/internal/core"
)

// Worksheet layout shared by the Sheets adapter and the CSV seeds.
const (
	CapsterSheet = "CapsterList"
	BranchSheet  = "BranchConfig"

	DateTimeLayout = "2006-01-02 15:04:05"
	DateLayout     = "2006-01-02"

	costPrefix       = "cost_"
	defaultEmployees = 2
)

// RowError reports a row that was skipped while parsing. Row is 1-based and
// counts the header.
type RowError struct {
	Row int
	Err error
}

func (e RowError) Error() string { return fmt.Sprintf("row %d: %v", e.Row, e.Err) }

func (e RowError) Unwrap() error { return e.Err }

// Parsed holds the rows that survived parsing and the ones that did not.
type Parsed[T any] struct {
	Items   []T
	Skipped []RowError
}

type header []string

// col returns the first column named like one of names, or -1.
func (h header) col(names ...string) int {
	for _, n := range names {
		for i, v := range h {
			if strings.EqualFold(strings.TrimSpace(v), n) {
				return i
			}
		}
	}
	return -1
}

func safeGet(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// ParseDate reads a Date cell in loc, with or without the time part.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(DateTimeLayout, s, loc); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable date %q", s)
	}
	return t, nil
}

// ParseTransactions converts a monthly worksheet (header row first) into
// transactions. Empty rows are ignored. Rows with an unparseable date or no
// capster are skipped and reported; an unparseable price counts as zero.
func ParseTransactions(values [][]string, loc *time.Location) (Parsed[core.Transaction], error) {
	var out Parsed[core.Transaction]
	if len(values) == 0 {
		return out, nil
	}
	h := header(values[0])
	colDate := h.col("Date")
	colCapster := h.col("Capster", "Caster")
	colService := h.col("Service")
	colPrice := h.col("Price")
	colPayment := h.col("Payment_Method", "Payment Method")
	colBranch := h.col("Branch")

	var missing []string
	if colDate == -1 {
		missing = append(missing, "Date")
	}
	if colCapster == -1 {
		missing = append(missing, "Capster")
	}
	if colPrice == -1 {
		missing = append(missing, "Price")
	}
	if len(missing) > 0 {
		return out, fmt.Errorf("unexpected transaction header: missing %s; got headers=%v", strings.Join(missing, ","), values[0])
	}

	for i, row := range values[1:] {
		if blank(row) {
			continue
		}
		date, err := ParseDate(safeGet(row, colDate), loc)
		if err != nil {
			out.Skipped = append(out.Skipped, RowError{Row: i + 2, Err: err})
			continue
		}
		price, err := core.ParseRupiah(safeGet(row, colPrice))
		if err != nil {
			price = 0
		}
		t := core.Transaction{
			Date:          date,
			Capster:       safeGet(row, colCapster),
			Service:       safeGet(row, colService),
			Price:         price,
			PaymentMethod: safeGet(row, colPayment),
			Branch:        safeGet(row, colBranch),
		}
		if err := t.Validate(); err != nil {
			out.Skipped = append(out.Skipped, RowError{Row: i + 2, Err: err})
			continue
		}
		out.Items = append(out.Items, t)
	}
	return out, nil
}

// ParseCapsters reads the CapsterList sheet. A missing or malformed
// TelegramID is zero.
func ParseCapsters(values [][]string) (Parsed[core.Capster], error) {
	var out Parsed[core.Capster]
	if len(values) == 0 {
		return out, nil
	}
	h := header(values[0])
	colName := h.col("Name")
	colTelegram := h.col("TelegramID", "Telegram_ID")
	colAlias := h.col("Alias")
	if colName == -1 {
		return out, fmt.Errorf("unexpected capster header: missing Name; got headers=%v", values[0])
	}

	seen := make(map[string]bool)
	for i, row := range values[1:] {
		name := safeGet(row, colName)
		if name == "" {
			if !blank(row) {
				out.Skipped = append(out.Skipped, RowError{Row: i + 2, Err: core.ErrEmptyCapster})
			}
			continue
		}
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		id, _ := strconv.ParseInt(safeGet(row, colTelegram), 10, 64)
		out.Items = append(out.Items, core.Capster{
			Name:       name,
			TelegramID: id,
			Alias:      safeGet(row, colAlias),
		})
	}
	return out, nil
}

// ParseBranches reads the BranchConfig sheet. Every Cost_<name> column is a
// monthly fixed-cost item named <name> with underscores as spaces. Employees
// defaults to 2. Rows failing validation are skipped.
func ParseBranches(values [][]string) (Parsed[core.BranchConfig], error) {
	var out Parsed[core.BranchConfig]
	if len(values) == 0 {
		return out, nil
	}
	h := header(values[0])
	colID := h.col("BranchID", "Branch_ID", "ID")
	colName := h.col("Name")
	colLocation := h.col("Location")
	colShort := h.col("Short")
	colEmployees := h.col("Employees")
	colRate := h.col("CommissionRate", "Commission_Rate")
	if colName == -1 {
		return out, fmt.Errorf("unexpected branch header: missing Name; got headers=%v", values[0])
	}

	type costCol struct {
		idx  int
		name string
	}
	var costs []costCol
	for i, v := range h {
		v = strings.TrimSpace(v)
		if len(v) > len(costPrefix) && strings.EqualFold(v[:len(costPrefix)], costPrefix) {
			costs = append(costs, costCol{idx: i, name: strings.ReplaceAll(v[len(costPrefix):], "_", " ")})
		}
	}

	for i, row := range values[1:] {
		if blank(row) {
			continue
		}
		b := core.BranchConfig{
			ID:             safeGet(row, colID),
			Name:           safeGet(row, colName),
			Location:       safeGet(row, colLocation),
			Short:          safeGet(row, colShort),
			Employees:      defaultEmployees,
			CommissionRate: decimal.Zero,
		}
		if n, err := strconv.Atoi(safeGet(row, colEmployees)); err == nil {
			b.Employees = n
		}
		rate, err := core.ParseRate(safeGet(row, colRate))
		if err != nil {
			out.Skipped = append(out.Skipped, RowError{Row: i + 2, Err: err})
			continue
		}
		b.CommissionRate = rate

		ok := true
		for _, c := range costs {
			cell := safeGet(row, c.idx)
			if cell == "" {
				b.FixedCosts = append(b.FixedCosts, core.CostItem{Name: c.name})
				continue
			}
			amount, err := core.ParseRupiah(cell)
			if err != nil {
				out.Skipped = append(out.Skipped, RowError{Row: i + 2, Err: fmt.Errorf("cost %s: %w", c.name, err)})
				ok = false
				break
			}
			b.FixedCosts = append(b.FixedCosts, core.CostItem{Name: c.name, Amount: amount})
		}
		if !ok {
			continue
		}
		if err := b.Validate(); err != nil {
			out.Skipped = append(out.Skipped, RowError{Row: i + 2, Err: err})
			continue
		}
		out.Items = append(out.Items, b)
	}
	return out, nil
}
