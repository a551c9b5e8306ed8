package built

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sourcegraph/conc/iter"

	"github.com/utkarsh5026/pkgiter/workspace"
)

// lookupConcurrency bounds concurrent store queries during Filter.
const lookupConcurrency = 16

// Filter drops the packages already built under label and reports how many
// were dropped. With an empty label pkgs is returned as is and store is not
// consulted. Filter never writes to the store.
//
// Any failed lookup fails the whole call: callers must not fall back to the
// unfiltered set.
func Filter(
	ctx context.Context,
	store Store,
	pkgs []workspace.Package,
	label string,
	log *slog.Logger,
) ([]workspace.Package, int, error) {
	if label == "" {
		return pkgs, 0, nil
	}
	if store == nil {
		return nil, 0, fmt.Errorf("filter %q: %w", label, ErrNoStore)
	}

	mapper := iter.Mapper[workspace.Package, bool]{MaxGoroutines: lookupConcurrency}
	isBuilt, err := mapper.MapErr(pkgs, func(pkg *workspace.Package) (bool, error) {
		ok, err := store.IsBuilt(ctx, *pkg, label)
		if err != nil {
			return false, fmt.Errorf("query built state of %s: %w", pkg.Name, err)
		}
		return ok, nil
	})
	if err != nil {
		return nil, 0, err
	}

	kept := make([]workspace.Package, 0, len(pkgs))
	for i, pkg := range pkgs {
		if !isBuilt[i] {
			kept = append(kept, pkg)
		}
	}

	filtered := len(pkgs) - len(kept)
	if filtered > 0 && log != nil {
		log.Info("filtered-out built packages",
			slog.String("label", label),
			slog.Int("filtered", filtered),
			slog.Int("total", len(pkgs)),
		)
	}
	return kept, filtered, nil
}
