// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/afero"

	"github.com/invowk/envprov/internal/tooling"
	"github.com/invowk/envprov/pkg/recipe"
)

// ErrMissingTool is returned by NewPlan when a required tool client is nil.
var ErrMissingTool = errors.New("missing tool client")

type (
	// Tools are the clients a plan's steps invoke. Callers construct them
	// with tooling.WithEnviron(state.Environ) so that the search-path step
	// changes which binaries later steps resolve.
	Tools struct {
		Git            *tooling.Git
		PackageManager *tooling.PackageManager
		Pip            *tooling.Pip
		// FS is the filesystem used for fixture pruning, the login hook and
		// specification parsing. Defaults to the OS filesystem.
		FS afero.Fs
	}

	// Plan is the ordered step sequence for one recipe.
	Plan struct {
		Recipe *recipe.Recipe
		Steps  []Step
	}
)

// NewPlan validates r and expands it into its step sequence: solver install
// and configuration, then per project clone, checkout and fixture pruning,
// environment creation, login hook and search path for the environment
// owner, and finally the editable install.
func NewPlan(r *recipe.Recipe, tools *Tools) (*Plan, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil recipe", recipe.ErrInvalidRecipe)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if tools == nil || tools.Git == nil || tools.PackageManager == nil || tools.Pip == nil {
		return nil, ErrMissingTool
	}
	fs := tools.FS
	if fs == nil {
		fs = afero.NewOsFs()
	}

	r = r.Clone()
	steps := []Step{
		&installSolverStep{pm: tools.PackageManager, solver: r.Solver},
		&setSolverStep{pm: tools.PackageManager, solver: r.Solver},
	}
	for _, p := range r.Projects {
		steps = append(steps,
			&cloneStep{git: tools.Git, project: p},
			&checkoutStep{git: tools.Git, project: p},
		)
		if p.FixturePattern != "" {
			steps = append(steps, &pruneFixturesStep{fs: fs, project: p})
		}
		if p.OwnsEnvironment() {
			steps = append(steps,
				&createEnvStep{pm: tools.PackageManager, fs: fs, env: r.Environment, project: p},
				&loginHookStep{fs: fs, env: r.Environment},
				&searchPathStep{pm: tools.PackageManager, env: r.Environment},
			)
		}
		steps = append(steps, &installEditableStep{pip: tools.Pip, project: p})
	}
	return &Plan{Recipe: r, Steps: steps}, nil
}

// IDs returns the step ids in execution order.
func (p *Plan) IDs() []StepID {
	ids := make([]StepID, len(p.Steps))
	for i, s := range p.Steps {
		ids[i] = s.ID()
	}
	return ids
}

// Describe returns one numbered line per step with the command it runs.
func (p *Plan) Describe() string {
	var b strings.Builder
	for i, s := range p.Steps {
		label := s.ID().String()
		if proj := s.Project(); proj != "" {
			label += " " + proj.String()
		}
		fmt.Fprintf(&b, "%2d. [%s] %s\n", i+1, label, s.Describe())
	}
	return b.String()
}
