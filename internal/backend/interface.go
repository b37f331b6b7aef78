package backend

import (
	"context"
	"time"

	"laporan/internal/sheets"
)

// CleanupFunc releases the resources a backend holds.
type CleanupFunc func() error

// CheckFunc reports whether a backend can currently serve reads.
type CheckFunc func(ctx context.Context) error

// BackendResult contains the store and its optional lifecycle hooks.
type BackendResult struct {
	Store   sheets.Store
	Cleanup CleanupFunc
	Check   CheckFunc
}

// Close runs Cleanup when there is one.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite mirror
	SQLiteDBPath string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Memory backend: CSV files under this directory
	DataDirectory string

	Location *time.Location
}

// BackendType represents the type of backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	SheetsBackend BackendType = "sheets"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, SheetsBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
