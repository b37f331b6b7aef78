package memory

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"laporan/internal/core"
	ports "laporan/internal/sheets"
)

// Seed file names under the data directory. Each has the header row of the
// corresponding worksheet.
const (
	TransactionsFile = "transactions.csv"
	CapstersFile     = "capsters.csv"
	BranchesFile     = "branches.csv"
)

// Store is an in-memory ledger and directory, used for development and
// tests.
type Store struct {
	mu       sync.RWMutex
	rows     []core.Transaction
	capsters []core.Capster
	branches []core.BranchConfig
}

var _ ports.Store = (*Store)(nil)

func New(rows []core.Transaction, capsters []core.Capster, branches []core.BranchConfig) *Store {
	return &Store{
		rows:     append([]core.Transaction(nil), rows...),
		capsters: append([]core.Capster(nil), capsters...),
		branches: append([]core.BranchConfig(nil), branches...),
	}
}

// NewFromFiles loads the CSV seeds in base. Missing files are empty; a file
// with an unexpected header is an error.
func NewFromFiles(base string, loc *time.Location) (*Store, error) {
	if loc == nil {
		loc = time.Local
	}
	values, err := readCSV(filepath.Join(base, TransactionsFile))
	if err != nil {
		return nil, err
	}
	rows, err := ports.ParseTransactions(values, loc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", TransactionsFile, err)
	}

	values, err = readCSV(filepath.Join(base, CapstersFile))
	if err != nil {
		return nil, err
	}
	capsters, err := ports.ParseCapsters(values)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", CapstersFile, err)
	}

	values, err = readCSV(filepath.Join(base, BranchesFile))
	if err != nil {
		return nil, err
	}
	branches, err := ports.ParseBranches(values)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", BranchesFile, err)
	}

	return New(rows.Items, capsters.Items, branches.Items), nil
}

// Append stores the transaction and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, t)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Transactions returns the rows dated in year.
func (s *Store) Transactions(_ context.Context, year int) ([]core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Transaction
	for _, r := range s.rows {
		if r.Date.Year() == year {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) Capsters(_ context.Context) ([]core.Capster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Capster(nil), s.capsters...), nil
}

func (s *Store) Branches(_ context.Context) ([]core.BranchConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.BranchConfig(nil), s.branches...), nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open seed: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.Comment = '#'
	values, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return values, nil
}
