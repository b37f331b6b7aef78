// Package app assembles the report stack shared by the HTTP server and the
// queue worker.
package app

import (
	"context"
	"fmt"
	"time"

	"laporan/internal/ai"
	"laporan/internal/backend"
	"laporan/internal/cache"
	"laporan/internal/config"
	"laporan/internal/log"
	"laporan/internal/query"
	"laporan/internal/report"
	"laporan/internal/services"
	"laporan/internal/sheets"
)

const (
	memoSize        = 512
	memoTTL         = time.Hour
	cleanupInterval = 10 * time.Minute
)

// Stack is a running report service with the resources behind it.
type Stack struct {
	Reports *services.ReportService
	Ledgers *cache.LedgerCache
	Backend *backend.BackendResult

	caches *cache.Manager
}

// Build opens the configured backend, loads the directory once and wires the
// parser chain, cache and engine around it.
func Build(ctx context.Context, cfg *config.Config, logger *log.Logger) (*Stack, error) {
	loc := cfg.Location()
	now := func() time.Time { return time.Now().In(loc) }

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, err
	}

	dir, err := sheets.LoadDirectory(ctx, res.Store)
	if err != nil {
		res.Close()
		return nil, fmt.Errorf("load directory: %w", err)
	}
	resolver := dir.Resolver()
	logger.InfoContext(ctx, "Directory loaded",
		"capsters", len(dir.Capsters),
		"branches", len(dir.Branches))

	ledgers := cache.NewLedgerCache(res.Store.Transactions,
		cache.WithTTL(cfg.ReportCacheTTL),
		cache.WithStaleOnError(cfg.CacheServeStale),
		cache.WithLogger(logger.WithComponent(log.ComponentCache).Slog()))

	manager := cache.NewManager()
	manager.Register(ledgers)

	opts := []query.ParserOption{
		query.WithParserLogger(logger.WithComponent(log.ComponentQuery).Slog()),
	}
	if cfg.AIEnabled() {
		memo := cache.NewLRUCache[query.Intent](memoSize, memoTTL)
		manager.Register(memo)
		opts = append(opts,
			query.WithAI(ai.New(ai.Config{
				APIKey:  cfg.GeminiAPIKey,
				Model:   cfg.GeminiModel,
				Timeout: cfg.AITimeout,
				Now:     now,
			}), cfg.AITimeout),
			query.WithMemo(memo))
		logger.InfoContext(ctx, "AI parser enabled", "model", cfg.GeminiModel)
	}
	parser := query.NewParser(resolver, now, opts...)

	engine := report.NewEngine(ledgers, resolver,
		report.WithClock(now),
		report.WithLogger(logger.WithComponent(log.ComponentEngine).Slog()))

	manager.StartCleanup(cleanupInterval)

	return &Stack{
		Reports: services.NewReportService(parser, engine, now, logger),
		Ledgers: ledgers,
		Backend: res,
		caches:  manager,
	}, nil
}

// Close stops cache cleanup and releases the backend.
func (s *Stack) Close() error {
	s.caches.Stop()
	return s.Backend.Close()
}
