package sheets

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"laporan/internal/core"
	"laporan/internal/entity"
)

// Directory is the capster roster and branch configuration of one load.
type Directory struct {
	Capsters []core.Capster
	Branches []core.BranchConfig
}

// LoadDirectory reads capsters and branches concurrently. When the reader
// has no branch configuration the built-in branches are used.
func LoadDirectory(ctx context.Context, r DirectoryReader) (Directory, error) {
	var d Directory
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		capsters, err := r.Capsters(gctx)
		if err != nil {
			return fmt.Errorf("load capsters: %w", err)
		}
		d.Capsters = capsters
		return nil
	})
	g.Go(func() error {
		branches, err := r.Branches(gctx)
		if err != nil {
			return fmt.Errorf("load branches: %w", err)
		}
		d.Branches = branches
		return nil
	})
	if err := g.Wait(); err != nil {
		return Directory{}, err
	}
	if len(d.Branches) == 0 {
		d.Branches = core.DefaultBranches()
	}
	return d, nil
}

// Resolver builds the entity resolver for this directory.
func (d Directory) Resolver(opts ...entity.Option) *entity.Resolver {
	return entity.NewResolver(d.Capsters, d.Branches, opts...)
}
