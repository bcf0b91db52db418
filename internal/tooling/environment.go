// SPDX-License-Identifier: MPL-2.0

package tooling

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/invowk/envprov/pkg/types"
)

// ErrInvalidEnvironmentFile is returned when an environment specification
// file cannot be used to build an environment.
var ErrInvalidEnvironmentFile = errors.New("invalid environment specification file")

type (
	// EnvironmentFile is the parsed form of a conda environment.yml.
	EnvironmentFile struct {
		Name         string       `yaml:"name"`
		Channels     []string     `yaml:"channels"`
		Dependencies []Dependency `yaml:"dependencies"`
	}

	// Dependency is either a conda match spec ("python=3.11") or a nested
	// pip requirement list.
	Dependency struct {
		Spec string
		Pip  []string
	}
)

// UnmarshalYAML accepts a scalar match spec or a {pip: [...]} mapping.
func (d *Dependency) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		d.Spec = node.Value
		if strings.TrimSpace(d.Spec) == "" {
			return fmt.Errorf("line %d: empty dependency", node.Line)
		}
		return nil
	case yaml.MappingNode:
		var m map[string][]string
		if err := node.Decode(&m); err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		pip, ok := m["pip"]
		if !ok || len(m) != 1 {
			return fmt.Errorf("line %d: only a 'pip' list may be nested in dependencies", node.Line)
		}
		d.Pip = pip
		return nil
	default:
		return fmt.Errorf("line %d: dependency must be a string or a pip list", node.Line)
	}
}

// CondaSpecs returns the conda match specs, excluding nested pip entries.
func (f *EnvironmentFile) CondaSpecs() []string {
	var specs []string
	for _, d := range f.Dependencies {
		if d.Spec != "" {
			specs = append(specs, d.Spec)
		}
	}
	return specs
}

// PipRequirements returns every nested pip requirement.
func (f *EnvironmentFile) PipRequirements() []string {
	var reqs []string
	for _, d := range f.Dependencies {
		reqs = append(reqs, d.Pip...)
	}
	return reqs
}

// ParseEnvironmentFile reads and checks an environment specification so a
// malformed file fails before the long-running solver starts.
func ParseEnvironmentFile(fs afero.Fs, path types.FilesystemPath) (*EnvironmentFile, error) {
	data, err := afero.ReadFile(fs, string(path))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEnvironmentFile, err)
	}
	return ParseEnvironment(data, string(path))
}

// ParseEnvironment parses environment.yml content; name is used in errors.
func ParseEnvironment(data []byte, name string) (*EnvironmentFile, error) {
	var f EnvironmentFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidEnvironmentFile, name, err)
	}
	if len(f.Dependencies) == 0 {
		return nil, fmt.Errorf("%w: %s: no dependencies declared", ErrInvalidEnvironmentFile, name)
	}
	if len(f.CondaSpecs()) == 0 {
		return nil, fmt.Errorf("%w: %s: at least one conda dependency (the interpreter) is required", ErrInvalidEnvironmentFile, name)
	}
	return &f, nil
}
