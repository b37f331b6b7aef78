package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"laporan/internal/core"
	"laporan/internal/sheets"
)

// Mirror receives copies of the source ledger and directory.
type Mirror interface {
	ReplaceYear(ctx context.Context, year int, rows []core.Transaction) error
	ReplaceDirectory(ctx context.Context, d sheets.Directory) error
}

type SyncConfig struct {
	// Interval between sync runs (default: 15m)
	Interval time.Duration

	// YearsBack is how many years before the current one are copied too
	// (default: 1, so "3 bulan terakhir" in January still has its rows)
	YearsBack int

	Now func() time.Time
}

func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		Interval:  15 * time.Minute,
		YearsBack: 1,
		Now:       time.Now,
	}
}

// SyncWorker periodically copies the Sheets ledger and directory into the
// local mirror.
type SyncWorker struct {
	source sheets.Store
	mirror Mirror
	config SyncConfig

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSyncWorker(source sheets.Store, mirror Mirror, config SyncConfig) *SyncWorker {
	def := DefaultSyncConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.YearsBack < 0 {
		config.YearsBack = 0
	}
	if config.Now == nil {
		config.Now = def.Now
	}
	return &SyncWorker{source: source, mirror: mirror, config: config}
}

// Years returns the ledger years a run copies, newest first.
func (w *SyncWorker) Years() []int {
	current := w.config.Now().Year()
	years := make([]int, 0, w.config.YearsBack+1)
	for y := current; y >= current-w.config.YearsBack; y-- {
		years = append(years, y)
	}
	return years
}

// SyncOnce copies the directory, then every year. A failing year does not
// stop the others; all failures are returned joined.
func (w *SyncWorker) SyncOnce(ctx context.Context) error {
	start := time.Now()

	dir, err := sheets.LoadDirectory(ctx, w.source)
	if err != nil {
		return fmt.Errorf("load directory: %w", err)
	}
	if err := w.mirror.ReplaceDirectory(ctx, dir); err != nil {
		return fmt.Errorf("mirror directory: %w", err)
	}

	var errs []error
	total := 0
	for _, year := range w.Years() {
		if err := ctx.Err(); err != nil {
			return err
		}
		rows, err := w.source.Transactions(ctx, year)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to read ledger year", "component", "sync", "year", year, "error", err)
			errs = append(errs, fmt.Errorf("read %d: %w", year, err))
			continue
		}
		if err := w.mirror.ReplaceYear(ctx, year, rows); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror ledger year", "component", "sync", "year", year, "error", err)
			errs = append(errs, fmt.Errorf("mirror %d: %w", year, err))
			continue
		}
		total += len(rows)
	}

	slog.InfoContext(ctx, "Mirror sync completed",
		"component", "sync",
		"rows", total,
		"failed_years", len(errs),
		"duration_ms", time.Since(start).Milliseconds())
	return errors.Join(errs...)
}

// Start runs SyncOnce immediately and then every Interval until Stop or
// ctx cancellation. Returns an error if already running.
func (w *SyncWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("sync worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	go w.runLoop(ctx)

	slog.InfoContext(ctx, "Sync worker started", "component", "sync", "interval", w.config.Interval, "years", w.Years())
	return nil
}

// Stop signals the loop and waits for the current run to finish.
func (w *SyncWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	close(w.stopCh)
	done := w.doneCh
	w.mu.Unlock()

	select {
	case <-done:
		slog.InfoContext(ctx, "Sync worker stopped gracefully", "component", "sync")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync worker stop timed out", "component", "sync")
		return ctx.Err()
	}
}

func (w *SyncWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *SyncWorker) runLoop(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	w.run(ctx)
	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.run(ctx)
		}
	}
}

func (w *SyncWorker) run(ctx context.Context) {
	if err := w.SyncOnce(ctx); err != nil {
		slog.ErrorContext(ctx, "Mirror sync failed", "component", "sync", "error", err)
	}
}
