package core

import (
	"sort"
	"time"
)

// Ledger is an immutable, date-ordered snapshot of one year of transactions.
// Once built it is never mutated, so it is safe to share between goroutines.
type Ledger struct {
	year int
	rows []Transaction
}

// NewLedger copies rows and orders them by date. Rows outside year are kept;
// the store decides what belongs to a year.
func NewLedger(year int, rows []Transaction) *Ledger {
	cp := make([]Transaction, len(rows))
	copy(cp, rows)
	sort.SliceStable(cp, func(i, j int) bool { return cp[i].Date.Before(cp[j].Date) })
	return &Ledger{year: year, rows: cp}
}

func (l *Ledger) Year() int { return l.year }

func (l *Ledger) Len() int { return len(l.rows) }

// Rows returns a copy of all rows.
func (l *Ledger) Rows() []Transaction {
	out := make([]Transaction, len(l.rows))
	copy(out, l.rows)
	return out
}

// Between returns the rows with start <= Date <= end.
func (l *Ledger) Between(start, end time.Time) []Transaction {
	lo := sort.Search(len(l.rows), func(i int) bool { return !l.rows[i].Date.Before(start) })
	hi := sort.Search(len(l.rows), func(i int) bool { return l.rows[i].Date.After(end) })
	if lo >= hi {
		return nil
	}
	out := make([]Transaction, hi-lo)
	copy(out, l.rows[lo:hi])
	return out
}
