package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"laporan/internal/core"
)

// DefaultLedgerTTL is how long a fetched year stays fresh.
const DefaultLedgerTTL = 5 * time.Minute

// FetchFunc loads every transaction recorded for a calendar year.
type FetchFunc func(ctx context.Context, year int) ([]core.Transaction, error)

type ledgerEntry struct {
	ledger    *core.Ledger
	fetchedAt time.Time
}

// LedgerCache memoises one immutable ledger per year. Concurrent misses for
// the same year share a single fetch.
type LedgerCache struct {
	mu           sync.RWMutex
	entries      map[int]*ledgerEntry
	ttl          time.Duration
	now          Clock
	fetch        FetchFunc
	group        singleflight.Group
	staleOnError bool
	logger       *slog.Logger
}

// LedgerOption configures a LedgerCache.
type LedgerOption func(*LedgerCache)

// WithTTL sets the freshness window. Non-positive values are ignored.
func WithTTL(ttl time.Duration) LedgerOption {
	return func(c *LedgerCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now Clock) LedgerOption {
	return func(c *LedgerCache) { c.now = now }
}

// WithStaleOnError makes a failed refresh return the previous ledger for the
// year, if any, instead of the error.
func WithStaleOnError(enabled bool) LedgerOption {
	return func(c *LedgerCache) { c.staleOnError = enabled }
}

// WithLogger sets the logger used for refresh warnings.
func WithLogger(l *slog.Logger) LedgerOption {
	return func(c *LedgerCache) { c.logger = l }
}

// NewLedgerCache creates a cache backed by fetch.
func NewLedgerCache(fetch FetchFunc, opts ...LedgerOption) *LedgerCache {
	c := &LedgerCache{
		entries: make(map[int]*ledgerEntry),
		ttl:     DefaultLedgerTTL,
		now:     time.Now,
		fetch:   fetch,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve returns the ledger for year, fetching it when absent or expired.
// Within the TTL repeated calls return the same snapshot.
func (c *LedgerCache) Resolve(ctx context.Context, year int) (*core.Ledger, error) {
	stale, fresh := c.lookup(year)
	if fresh {
		return stale.ledger, nil
	}

	ch := c.group.DoChan(strconv.Itoa(year), func() (any, error) {
		// Another caller may have refreshed while we waited for the flight.
		if e, ok := c.lookup(year); ok {
			return e.ledger, nil
		}
		rows, err := c.fetch(context.WithoutCancel(ctx), year)
		if err != nil {
			return nil, err
		}
		ledger := core.NewLedger(year, rows)
		c.mu.Lock()
		c.entries[year] = &ledgerEntry{ledger: ledger, fetchedAt: c.now()}
		c.mu.Unlock()
		return ledger, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err == nil {
			return res.Val.(*core.Ledger), nil
		}
		if c.staleOnError && stale != nil {
			c.logger.Warn("Serving stale ledger after refresh failure",
				"component", "ledger_cache",
				"year", year,
				"fetched_at", stale.fetchedAt,
				"error", res.Err)
			return stale.ledger, nil
		}
		return nil, fmt.Errorf("fetch ledger %d: %w", year, res.Err)
	}
}

// lookup returns the current entry for year and whether it is still fresh.
func (c *LedgerCache) lookup(year int) (*ledgerEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[year]
	if !ok {
		return nil, false
	}
	return e, c.now().Sub(e.fetchedAt) < c.ttl
}

// CleanExpired removes expired years unless they are kept for stale serving.
func (c *LedgerCache) CleanExpired() int {
	if c.staleOnError {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	removed := 0
	for year, e := range c.entries {
		if now.Sub(e.fetchedAt) >= c.ttl {
			delete(c.entries, year)
			removed++
		}
	}
	return removed
}

// Size returns the number of cached years.
func (c *LedgerCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
