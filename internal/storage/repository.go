package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"laporan/internal/core"
	"laporan/internal/sheets"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339

// SQLiteRepository is the local mirror of the Sheets ledger and directory.
type SQLiteRepository struct {
	db  *sql.DB
	loc *time.Location
}

var _ sheets.Store = (*SQLiteRepository)(nil)

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// migrates it. Dates are returned in loc.
func NewSQLiteRepository(dbPath string, loc *time.Location) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// One connection serialises writers; the sync job and readers share the file.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if loc == nil {
		loc = time.Local
	}
	return &SQLiteRepository{db: db, loc: loc}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Transactions implements sheets.TransactionReader
func (r *SQLiteRepository) Transactions(ctx context.Context, year int) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT occurred_at, capster, service, price, payment_method, branch
		FROM transactions
		WHERE year = ?
		ORDER BY occurred_at, id`, year)
	if err != nil {
		return nil, fmt.Errorf("query transactions %d: %w", year, err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			t    core.Transaction
			when string
		)
		if err := rows.Scan(&when, &t.Capster, &t.Service, &t.Price, &t.PaymentMethod, &t.Branch); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		d, err := time.Parse(timeLayout, when)
		if err != nil {
			return nil, fmt.Errorf("parse occurred_at %q: %w", when, err)
		}
		t.Date = d.In(r.loc)
		out = append(out, t)
	}
	return out, rows.Err()
}

// ReplaceYear swaps the stored rows of year for rows in one transaction and
// records the sync run.
func (r *SQLiteRepository) ReplaceYear(ctx context.Context, year int, txs []core.Transaction) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE year = ?`, year); err != nil {
		return fmt.Errorf("clear year %d: %w", year, err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transactions (year, occurred_at, capster, service, price, payment_method, branch)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range txs {
		if _, err := stmt.ExecContext(ctx, year, t.Date.Format(timeLayout), t.Capster, t.Service, t.Price, t.PaymentMethod, t.Branch); err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sync_runs (year, rows, finished_at) VALUES (?, ?, ?)
		ON CONFLICT(year) DO UPDATE SET rows = excluded.rows, finished_at = excluded.finished_at`,
		year, len(txs), time.Now().UTC().Format(timeLayout)); err != nil {
		return fmt.Errorf("record sync run: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Ledger year mirrored to SQLite", "component", "storage", "year", year, "rows", len(txs))
	return nil
}

// LastSync returns when year was last mirrored. ok is false if never.
func (r *SQLiteRepository) LastSync(ctx context.Context, year int) (at time.Time, rows int, ok bool, err error) {
	var finished string
	err = r.db.QueryRowContext(ctx, `SELECT rows, finished_at FROM sync_runs WHERE year = ?`, year).Scan(&rows, &finished)
	if err == sql.ErrNoRows {
		return time.Time{}, 0, false, nil
	}
	if err != nil {
		return time.Time{}, 0, false, fmt.Errorf("query sync run: %w", err)
	}
	at, err = time.Parse(timeLayout, finished)
	if err != nil {
		return time.Time{}, 0, false, fmt.Errorf("parse finished_at: %w", err)
	}
	return at, rows, true, nil
}

// Capsters implements sheets.DirectoryReader
func (r *SQLiteRepository) Capsters(ctx context.Context) ([]core.Capster, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name, telegram_id, alias FROM capsters ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query capsters: %w", err)
	}
	defer rows.Close()

	var out []core.Capster
	for rows.Next() {
		var c core.Capster
		if err := rows.Scan(&c.Name, &c.TelegramID, &c.Alias); err != nil {
			return nil, fmt.Errorf("scan capster: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Branches implements sheets.DirectoryReader
func (r *SQLiteRepository) Branches(ctx context.Context) ([]core.BranchConfig, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT name, branch_id, location, short, employees, commission_rate
		FROM branches ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query branches: %w", err)
	}
	var out []core.BranchConfig
	for rows.Next() {
		var (
			b    core.BranchConfig
			rate string
		)
		if err := rows.Scan(&b.Name, &b.ID, &b.Location, &b.Short, &b.Employees, &rate); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan branch: %w", err)
		}
		if b.CommissionRate, err = decimal.NewFromString(rate); err != nil {
			rows.Close()
			return nil, fmt.Errorf("branch %s commission %q: %w", b.Name, rate, err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range out {
		costs, err := r.branchCosts(ctx, out[i].Name)
		if err != nil {
			return nil, err
		}
		out[i].FixedCosts = costs
	}
	return out, nil
}

func (r *SQLiteRepository) branchCosts(ctx context.Context, branch string) ([]core.CostItem, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name, amount FROM branch_costs WHERE branch = ? ORDER BY position`, branch)
	if err != nil {
		return nil, fmt.Errorf("query costs of %s: %w", branch, err)
	}
	defer rows.Close()

	var out []core.CostItem
	for rows.Next() {
		var c core.CostItem
		if err := rows.Scan(&c.Name, &c.Amount); err != nil {
			return nil, fmt.Errorf("scan cost: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ReplaceDirectory swaps the stored roster and branch configuration.
func (r *SQLiteRepository) ReplaceDirectory(ctx context.Context, d sheets.Directory) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{`DELETE FROM branch_costs`, `DELETE FROM branches`, `DELETE FROM capsters`} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("clear directory: %w", err)
		}
	}
	for i, c := range d.Capsters {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO capsters (name, telegram_id, alias, position) VALUES (?, ?, ?, ?)
			ON CONFLICT(name) DO NOTHING`,
			c.Name, c.TelegramID, c.Alias, i); err != nil {
			return fmt.Errorf("insert capster %s: %w", c.Name, err)
		}
	}
	for i, b := range d.Branches {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO branches (name, branch_id, location, short, employees, commission_rate, position)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			b.Name, b.ID, b.Location, b.Short, b.Employees, b.CommissionRate.String(), i); err != nil {
			return fmt.Errorf("insert branch %s: %w", b.Name, err)
		}
		for j, c := range b.FixedCosts {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO branch_costs (branch, name, amount, position) VALUES (?, ?, ?, ?)
				ON CONFLICT(branch, name) DO UPDATE SET amount = excluded.amount`,
				b.Name, c.Name, c.Amount, j); err != nil {
				return fmt.Errorf("insert cost %s/%s: %w", b.Name, c.Name, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Directory mirrored to SQLite", "component", "storage",
		"capsters", len(d.Capsters), "branches", len(d.Branches))
	return nil
}
