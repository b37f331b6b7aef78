package app

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"laporan/internal/config"
	"laporan/internal/log"
	"laporan/internal/services"
	"laporan/internal/sheets/memory"
)

func testLogger() *log.Logger {
	return log.New(log.Config{
		Component: log.ComponentApp,
		Handler:   log.NewTextHandler(&bytes.Buffer{}, slog.LevelDebug),
	})
}

func TestBuild_Memory(t *testing.T) {
	dir := t.TempDir()
	seed := map[string]string{
		memory.TransactionsFile: "Date,Capster,Service,Price,Payment_Method,Branch\n" +
			"2026-03-02 10:00:00,Bagus,Haircut,50000,Cash,Cabang Denailla\n" +
			"2026-03-10 11:00:00,Andi,Shave,30000,QRIS,Cabang Sumput\n",
		memory.CapstersFile: "Name,TelegramID,Alias\nBagus,1,Gus\nAndi,2,\n",
	}
	for name, body := range seed {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	cfg := &config.Config{
		DataBackend:    config.BackendMemory,
		DataDir:        dir,
		ReportCacheTTL: time.Minute,
		Timezone:       "Asia/Jakarta",
	}
	stack, err := Build(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer stack.Close()

	tests := []struct {
		text        string
		wantStatus  services.Status
		wantRevenue int64
	}{
		{"omzet maret 2026", services.StatusOK, 80000},
		{"omzet Gus maret 2026", services.StatusOK, 50000},
		{"omzet februari 2026", services.StatusNoData, 0},
		{"halo", services.StatusNotUnderstood, 0},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			out := stack.Reports.Answer(context.Background(), tt.text)
			if out.Status != tt.wantStatus {
				t.Fatalf("Answer(%q).Status = %v, want %v (%s)", tt.text, out.Status, tt.wantStatus, out.Error)
			}
			if tt.wantStatus == services.StatusOK && out.Result.Totals.Revenue != tt.wantRevenue {
				t.Errorf("Answer(%q) revenue = %d, want %d", tt.text, out.Result.Totals.Revenue, tt.wantRevenue)
			}
		})
	}

	if got := stack.Ledgers.Size(); got != 1 {
		t.Errorf("Ledgers.Size() = %d, want 1 cached year", got)
	}
}

func TestBuild_BadBackend(t *testing.T) {
	cfg := &config.Config{DataBackend: "postgres", Timezone: "UTC"}
	if _, err := Build(context.Background(), cfg, testLogger()); err == nil {
		t.Fatal("Build() error = nil, want error")
	}
}

func TestBuild_BadSeed(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, memory.CapstersFile), []byte("Nickname\nBagus\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{DataBackend: config.BackendMemory, DataDir: dir, Timezone: "UTC"}
	if _, err := Build(context.Background(), cfg, testLogger()); err == nil {
		t.Fatal("Build() error = nil, want header error")
	}
}
