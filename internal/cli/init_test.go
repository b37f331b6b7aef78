package cli

import (
	"context"
	"log/slog"
	"testing"

	"laporan/internal/log"
)

func TestSetupLogger(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger := SetupLogger(tt.level, log.ComponentSync)
			if got := logger.Component(); got != log.ComponentSync {
				t.Errorf("SetupLogger().Component() = %q, want %q", got, log.ComponentSync)
			}
			if !logger.Enabled(context.Background(), tt.want) {
				t.Errorf("SetupLogger(%q) not enabled at %v", tt.level, tt.want)
			}
			if tt.want > slog.LevelDebug && logger.Enabled(context.Background(), tt.want-4) {
				t.Errorf("SetupLogger(%q) enabled below %v", tt.level, tt.want)
			}
			if slog.Default().Handler() != logger.Handler() {
				t.Error("SetupLogger() did not install the default logger")
			}
		})
	}
}
