// SPDX-License-Identifier: MPL-2.0

package preflight

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/invowk/envprov/pkg/recipe"
)

// maxConcurrentLookups bounds parallel remote lookups.
const maxConcurrentLookups = 4

// Check resolves every project of r concurrently. The first failure cancels
// the remaining lookups and is returned; results keep the recipe's project
// order.
func Check(ctx context.Context, r *recipe.Recipe, resolver Resolver) ([]Resolution, error) {
	results := make([]Resolution, len(r.Projects))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentLookups)
	for i, p := range r.Projects {
		g.Go(func() error {
			res, err := resolver.Resolve(gctx, p)
			if err != nil {
				return err
			}
			slog.Debug("revision resolved", "project", p.Name, "revision", res.Revision, "commit", res.Commit, "source", res.Source)
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Commits maps each project to its resolved commit.
func Commits(results []Resolution) map[recipe.ProjectName]string {
	m := make(map[recipe.ProjectName]string, len(results))
	for _, r := range results {
		m[r.Project] = r.Commit
	}
	return m
}
