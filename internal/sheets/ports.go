package sheets

import (
	"context"

	"laporan/internal/core"
)

// Ports for outbound adapters.
type (
	// TransactionReader returns every ledger row recorded for a year.
	TransactionReader interface {
		Transactions(ctx context.Context, year int) ([]core.Transaction, error)
	}

	// DirectoryReader returns the capster roster and the branch
	// configuration. An empty branch list means "use the defaults".
	DirectoryReader interface {
		Capsters(ctx context.Context) ([]core.Capster, error)
		Branches(ctx context.Context) ([]core.BranchConfig, error)
	}

	// Store is what a data backend provides.
	Store interface {
		TransactionReader
		DirectoryReader
	}
)
