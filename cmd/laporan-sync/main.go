package main

import (
	"context"
	"os"
	"time"
	_ "time/tzdata"

	"laporan/internal/backend"
	"laporan/internal/cli"
	"laporan/internal/config"
	"laporan/internal/log"
	"laporan/internal/storage"
	"laporan/internal/worker"
)

func main() {
	cfg, logger := cli.Setup(log.ComponentSync, (*config.Config).ValidateSync)

	ctx, stop := cli.SignalContext()
	defer stop()

	loc := cfg.Location()
	source, err := backend.NewFactory(logger).CreateBackend(ctx, backend.Config{
		Type:                     backend.SheetsBackend,
		GoogleSpreadsheetID:      cfg.GoogleSpreadsheetID,
		GoogleServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: cfg.GoogleServiceAccountFile,
		Location:                 loc,
	})
	if err != nil {
		cli.Fatal(ctx, logger, "Failed to initialize Google Sheets client", err)
	}
	defer source.Close()

	mirror, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, loc)
	if err != nil {
		cli.Fatal(ctx, logger, "Failed to initialize SQLite repository", err, "path", cfg.SQLiteDBPath)
	}
	defer mirror.Close()

	syncWorker := worker.NewSyncWorker(source.Store, mirror, worker.SyncConfig{
		Interval:  cfg.SyncInterval,
		YearsBack: cfg.SyncYearsBack,
		Now:       func() time.Time { return time.Now().In(loc) },
	})

	// SYNC_ONCE=true copies once and exits, for cron.
	if os.Getenv("SYNC_ONCE") == "true" {
		if err := syncWorker.SyncOnce(ctx); err != nil {
			cli.Fatal(ctx, logger, "Mirror sync failed", err)
		}
		return
	}

	if err := syncWorker.Start(ctx); err != nil {
		cli.Fatal(ctx, logger, "Failed to start sync worker", err)
	}

	<-ctx.Done()
	logger.InfoContext(context.Background(), "Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := syncWorker.Stop(shutdownCtx); err != nil {
		logger.WarnContext(shutdownCtx, "Sync worker stop timed out", log.FieldError, err)
	}
}
