// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"fmt"
	"path/filepath"
	"slices"

	"github.com/spf13/afero"

	"github.com/invowk/envprov/pkg/recipe"
)

// PruneFixtures removes every directory under dir that matches pattern and
// returns the removed paths, sorted. Matching regular files are left alone.
// No match is not an error.
func PruneFixtures(fs afero.Fs, dir recipe.CheckoutDir, pattern recipe.FixturePattern) ([]string, error) {
	if pattern == "" {
		return nil, nil
	}
	if err := pattern.Validate(); err != nil {
		return nil, err
	}
	matches, err := afero.Glob(fs, filepath.Join(string(dir), filepath.FromSlash(string(pattern))))
	if err != nil {
		return nil, fmt.Errorf("failed to match fixture pattern %q: %w", pattern, err)
	}
	slices.Sort(matches)

	var removed []string
	for _, m := range matches {
		info, statErr := fs.Stat(m)
		if statErr != nil || !info.IsDir() {
			continue
		}
		if err := fs.RemoveAll(m); err != nil {
			return removed, fmt.Errorf("failed to remove fixture directory %s: %w", m, err)
		}
		removed = append(removed, m)
	}
	return removed, nil
}

// RemainingFixtures returns the directories under dir that still match
// pattern.
func RemainingFixtures(fs afero.Fs, dir recipe.CheckoutDir, pattern recipe.FixturePattern) ([]string, error) {
	if pattern == "" {
		return nil, nil
	}
	matches, err := afero.Glob(fs, filepath.Join(string(dir), filepath.FromSlash(string(pattern))))
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, m := range matches {
		if info, statErr := fs.Stat(m); statErr == nil && info.IsDir() {
			dirs = append(dirs, m)
		}
	}
	slices.Sort(dirs)
	return dirs, nil
}
