// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/invowk/envprov/internal/issue"
	"github.com/invowk/envprov/pkg/recipe"
	"github.com/invowk/envprov/pkg/types"
)

// errInvalidRevisionFlag is returned for a --rev value without "=".
var errInvalidRevisionFlag = errors.New("expected --rev <project>=<revision>")

// recipeFlags are the three build parameters every recipe-driven command accepts.
type recipeFlags struct {
	firstRev  string
	secondRev string
	envName   string
	revs      []string
}

func (f *recipeFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.firstRev, "weather-rev", "", "revision of the first project (default: main)")
	flags.StringVar(&f.secondRev, "arco-rev", "", "revision of the second project (default: main)")
	flags.StringVar(&f.envName, "env-name", "", "name of the environment to create (default: weather-tools)")
	flags.StringArrayVar(&f.revs, "rev", nil, "revision for any project as <project>=<revision> (repeatable)")
}

// overrides maps the flags onto r's projects. --weather-rev and --arco-rev
// address the first and second project so recipe files may rename them.
func (f *recipeFlags) overrides(r *recipe.Recipe) (recipe.Overrides, error) {
	o := recipe.Overrides{
		EnvironmentName: recipe.EnvironmentName(f.envName),
		Revisions:       make(map[recipe.ProjectName]recipe.Revision),
	}
	positional := []string{f.firstRev, f.secondRev}
	for i, rev := range positional {
		if rev == "" {
			continue
		}
		if i >= len(r.Projects) {
			return recipe.Overrides{}, fmt.Errorf("%w: the recipe has only %d project(s)", recipe.ErrUnknownProject, len(r.Projects))
		}
		o.Revisions[r.Projects[i].Name] = recipe.Revision(rev)
	}
	for _, kv := range f.revs {
		name, rev, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return recipe.Overrides{}, fmt.Errorf("%w: %q", errInvalidRevisionFlag, kv)
		}
		o.Revisions[recipe.ProjectName(name)] = recipe.Revision(rev)
	}
	return o, nil
}

// loadRecipe returns the recipe file (or the built-in recipe) with the
// command-line parameters applied and validated.
func (a *App) loadRecipe(f *recipeFlags) (*recipe.Recipe, error) {
	base := recipe.Default()
	if path := a.opts.recipeFile; path != "" {
		loaded, err := recipe.Load(path)
		if err != nil {
			return nil, recipeError(path, err)
		}
		base = loaded
	}

	o, err := f.overrides(base)
	if err != nil {
		return nil, recipeError(a.opts.recipeFile, err)
	}
	r, err := base.Apply(o)
	if err != nil {
		return nil, recipeError(a.opts.recipeFile, err)
	}
	if err := r.Validate(); err != nil {
		return nil, recipeError(a.opts.recipeFile, err)
	}
	return r, nil
}

func recipeError(path string, err error) error {
	return &ExitError{
		Code: types.ExitUsage,
		Err: issue.NewErrorContext().
			WithOperation("load recipe").
			WithResource(path).
			WithSuggestion("Revisions must not start with '-' or contain whitespace").
			WithSuggestion("Environment names may use letters, digits, '.', '_' and '-', and must not be 'base'").
			WithSuggestion("Run 'envprov plan' to see the effective recipe").
			Wrap(err).
			BuildError(),
	}
}
