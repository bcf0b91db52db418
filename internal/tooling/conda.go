// SPDX-License-Identifier: MPL-2.0

package tooling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/invowk/envprov/pkg/recipe"
	"github.com/invowk/envprov/pkg/types"
)

const (
	// FlavorConda is the reference conda client.
	FlavorConda Flavor = "conda"
	// FlavorMamba is the mamba drop-in replacement.
	FlavorMamba Flavor = "mamba"
	// FlavorMicromamba is the standalone micromamba binary.
	FlavorMicromamba Flavor = "micromamba"
)

var (
	// ErrInvalidFlavor is the sentinel error wrapped by InvalidFlavorError.
	ErrInvalidFlavor = errors.New("invalid package manager flavor")
	// ErrEnvironmentNotFound is returned by EnvPrefix when no environment
	// with the requested name exists.
	ErrEnvironmentNotFound = errors.New("environment not found")
)

type (
	// Flavor selects the conda-family client.
	Flavor string

	// InvalidFlavorError is returned when a Flavor is not recognized.
	InvalidFlavorError struct {
		Value Flavor
	}

	// PackageManagerNotAvailableError is returned when neither the preferred
	// flavor nor the conda fallback is installed.
	PackageManagerNotAvailableError struct {
		Flavor Flavor
		Reason string
	}

	// PackageManager drives conda, mamba or micromamba.
	PackageManager struct {
		*BaseCLITool
		flavor Flavor
	}

	envListOutput struct {
		Envs []string `json:"envs"`
	}
)

// Validate returns an error if the flavor is not recognized.
func (f Flavor) Validate() error {
	switch f {
	case FlavorConda, FlavorMamba, FlavorMicromamba:
		return nil
	default:
		return &InvalidFlavorError{Value: f}
	}
}

// String returns the string representation of the Flavor.
func (f Flavor) String() string { return string(f) }

// Error implements the error interface.
func (e *InvalidFlavorError) Error() string {
	return fmt.Sprintf("invalid package manager %q (valid: conda, mamba, micromamba)", e.Value)
}

// Unwrap returns ErrInvalidFlavor for errors.Is() compatibility.
func (e *InvalidFlavorError) Unwrap() error { return ErrInvalidFlavor }

// Error implements the error interface.
func (e *PackageManagerNotAvailableError) Error() string {
	return fmt.Sprintf("package manager '%s' is not available: %s", e.Flavor, e.Reason)
}

// NewPackageManagerFlavor creates a client for flavor without checking that
// it is installed. Used for rendering and tests.
func NewPackageManagerFlavor(flavor Flavor, opts ...Option) *PackageManager {
	return &PackageManager{
		BaseCLITool: NewBaseCLITool(string(flavor), opts...),
		flavor:      flavor,
	}
}

// NewPackageManager returns a client for the preferred flavor, falling back
// to conda when the preferred binary is not installed.
func NewPackageManager(preferred Flavor, opts ...Option) (*PackageManager, error) {
	if err := preferred.Validate(); err != nil {
		return nil, err
	}
	pm := NewPackageManagerFlavor(preferred, opts...)
	if pm.Available() {
		return pm, nil
	}
	if preferred != FlavorConda {
		fallback := NewPackageManagerFlavor(FlavorConda, opts...)
		if fallback.Available() {
			slog.Warn("package manager not found, falling back to conda", "preferred", preferred)
			return fallback, nil
		}
		return nil, &PackageManagerNotAvailableError{
			Flavor: preferred,
			Reason: fmt.Sprintf("%s is not on the search path, and the conda fallback is also not available", preferred),
		}
	}
	return nil, &PackageManagerNotAvailableError{Flavor: preferred, Reason: "conda is not on the search path"}
}

// Flavor returns the client flavor.
func (p *PackageManager) Flavor() Flavor { return p.flavor }

// SupportsSolverConfig reports whether the client has a configurable solver.
// mamba and micromamba always resolve with libmamba.
func (p *PackageManager) SupportsSolverConfig() bool { return p.flavor == FlavorConda }

// InstallIntoBaseArgs returns the arguments that install pkg into base.
func (p *PackageManager) InstallIntoBaseArgs(pkg string) []string {
	return []string{"install", "-n", "base", "-y", pkg}
}

// SetSolverArgs returns the arguments that make solver the default.
func (p *PackageManager) SetSolverArgs(solver string) []string {
	return []string{"config", "--set", "solver", solver}
}

// CreateEnvArgs returns the arguments that build env from the specification file.
func (p *PackageManager) CreateEnvArgs(env recipe.EnvironmentName, specFile types.FilesystemPath) []string {
	if p.flavor == FlavorMicromamba {
		return []string{"create", "-y", "-n", string(env), "-f", string(specFile)}
	}
	return []string{"env", "create", "-n", string(env), "-f", string(specFile)}
}

// InstallIntoBase installs pkg into the base environment.
func (p *PackageManager) InstallIntoBase(ctx context.Context, pkg string) error {
	return p.Run(ctx, p.InstallIntoBaseArgs(pkg)...)
}

// SetSolver sets the default solver. It is a no-op for flavors without a
// configurable solver.
func (p *PackageManager) SetSolver(ctx context.Context, solver string) error {
	if !p.SupportsSolverConfig() {
		slog.Debug("solver is built in, skipping solver configuration", "flavor", p.flavor, "solver", solver)
		return nil
	}
	return p.Run(ctx, p.SetSolverArgs(solver)...)
}

// CreateEnv builds env from specFile. It blocks until the solver finishes.
func (p *PackageManager) CreateEnv(ctx context.Context, env recipe.EnvironmentName, specFile types.FilesystemPath) error {
	return p.Run(ctx, p.CreateEnvArgs(env, specFile)...)
}

// EnvPrefix returns the installation prefix of env, as reported by
// "env list --json".
func (p *PackageManager) EnvPrefix(ctx context.Context, env recipe.EnvironmentName) (types.FilesystemPath, error) {
	out, err := p.RunWithOutput(ctx, "env", "list", "--json")
	if err != nil {
		return "", err
	}
	return FindEnvPrefix([]byte(out), env)
}

// Version returns the client version string.
func (p *PackageManager) Version(ctx context.Context) (string, error) {
	out, err := p.RunWithOutput(ctx, "--version")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(out), string(p.flavor))), nil
}

// FindEnvPrefix picks the prefix of env from "env list --json" output. Named
// environments live in an "envs" directory under one of the envs roots.
func FindEnvPrefix(envListJSON []byte, env recipe.EnvironmentName) (types.FilesystemPath, error) {
	var parsed envListOutput
	if err := json.Unmarshal(envListJSON, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse environment list: %w", err)
	}
	for _, prefix := range parsed.Envs {
		if filepath.Base(prefix) == string(env) && filepath.Base(filepath.Dir(prefix)) == "envs" {
			return types.FilesystemPath(prefix), nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrEnvironmentNotFound, env)
}
