// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/invowk/envprov/pkg/recipe"
	"github.com/invowk/envprov/pkg/types"
)

// State is the only data shared between steps: the search path every later
// tool invocation sees, and what earlier steps learned.
type State struct {
	environ  []string
	prepends []string

	// EnvPrefix is the installation prefix of the created environment.
	EnvPrefix types.FilesystemPath
	// Expected holds preflight-resolved commits, if preflight ran.
	Expected map[recipe.ProjectName]string
	// Heads holds each checkout's commit after the checkout step.
	Heads map[recipe.ProjectName]string
	// Pruned holds the fixture directories removed per project.
	Pruned map[recipe.ProjectName][]string
	// LoginScript is the expanded login script path.
	LoginScript types.FilesystemPath
	// HookAdded is false when the login script already activated the environment.
	HookAdded bool
}

// NewState creates a state whose tools start from environ (usually os.Environ()).
func NewState(environ []string) *State {
	return &State{
		environ:  slices.Clone(environ),
		Expected: make(map[recipe.ProjectName]string),
		Heads:    make(map[recipe.ProjectName]string),
		Pruned:   make(map[recipe.ProjectName][]string),
	}
}

// PrependPath puts dir ahead of every existing search-path entry.
func (s *State) PrependPath(dir string) {
	s.prepends = append([]string{dir}, s.prepends...)
}

// Path returns the effective PATH value.
func (s *State) Path() string {
	base := ""
	for _, kv := range s.environ {
		if v, ok := strings.CutPrefix(kv, "PATH="); ok {
			base = v
		}
	}
	parts := slices.Clone(s.prepends)
	if base != "" {
		parts = append(parts, base)
	}
	return strings.Join(parts, string(os.PathListSeparator))
}

// Environ returns the environment for the next tool invocation.
func (s *State) Environ() []string {
	env := make([]string, 0, len(s.environ)+1)
	for _, kv := range s.environ {
		if !strings.HasPrefix(kv, "PATH=") {
			env = append(env, kv)
		}
	}
	return append(env, "PATH="+s.Path())
}

// EnvBinDir returns the bin directory of the created environment.
func (s *State) EnvBinDir() string {
	return filepath.Join(string(s.EnvPrefix), "bin")
}
