// SPDX-License-Identifier: MPL-2.0

package recipe

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/invowk/envprov/pkg/types"
)

const (
	// DefaultBaseImage is the image the rendered Dockerfile starts from.
	DefaultBaseImage = "continuumio/miniconda3:latest"
	// DefaultSolverPackage is installed into the base environment before any
	// environment is created.
	DefaultSolverPackage = "conda-libmamba-solver"
	// DefaultSolverName is the value passed to "conda config --set solver".
	DefaultSolverName = "libmamba"
	// DefaultEnvironmentName names the environment created from the first
	// project's specification file.
	DefaultEnvironmentName EnvironmentName = "weather-tools"
	// DefaultEnvironmentArg is the Dockerfile ARG carrying the environment name.
	DefaultEnvironmentArg = "CONDA_ENV_NAME"
	// DefaultLoginScript receives the activation hook. A leading "~/" is
	// expanded against the invoking user's home directory.
	DefaultLoginScript types.FilesystemPath = "~/.bashrc"
	// DefaultFixturePattern matches the bundled test-data directories pruned
	// from every checkout.
	DefaultFixturePattern FixturePattern = "weather_*/test_data"
)

var (
	// ErrInvalidRecipe is the sentinel error wrapped by InvalidRecipeError.
	ErrInvalidRecipe = errors.New("invalid recipe")
	// ErrInvalidCheckoutDir is the sentinel error wrapped by InvalidCheckoutDirError.
	ErrInvalidCheckoutDir = errors.New("invalid checkout directory")
	// ErrUnknownProject is returned when an override names a project the
	// recipe does not contain.
	ErrUnknownProject = errors.New("unknown project")
)

type (
	// CheckoutDir is the absolute directory a project is cloned into.
	CheckoutDir string

	// InvalidCheckoutDirError is returned when a CheckoutDir is empty,
	// relative, or the filesystem root.
	InvalidCheckoutDirError struct {
		Value CheckoutDir
		Err   error
	}

	// Solver is the alternative dependency-resolution backend.
	Solver struct {
		// Package is installed into the base environment.
		Package string `json:"package"`
		// Name is set as the package manager's default solver.
		Name string `json:"name"`
	}

	// Environment describes the isolated environment built from the first
	// project's specification file.
	Environment struct {
		Name EnvironmentName `json:"name"`
		// NameArg is the build argument that carries Name in image mode.
		NameArg string `json:"name_arg,omitempty"`
		// LoginScript receives "source activate <name>".
		LoginScript types.FilesystemPath `json:"login_script"`
	}

	// Project is one external source tree to clone and install editable.
	Project struct {
		Name        ProjectName   `json:"name"`
		Repository  RepositoryURL `json:"repository"`
		Revision    Revision      `json:"revision,omitempty"`
		CheckoutDir CheckoutDir   `json:"checkout_dir"`
		// FixturePattern selects the test-fixture directories to prune.
		FixturePattern FixturePattern `json:"fixture_pattern,omitempty"`
		// EnvironmentFile is the declarative environment specification,
		// relative to CheckoutDir. Only the first project sets it.
		EnvironmentFile types.FilesystemPath `json:"environment_file,omitempty"`
		// RevisionArg is the build argument that carries Revision in image mode.
		RevisionArg string `json:"revision_arg,omitempty"`
	}

	// Recipe is the full provisioning input.
	Recipe struct {
		BaseImage   string      `json:"base_image"`
		Solver      Solver      `json:"solver"`
		Environment Environment `json:"environment"`
		Projects    []Project   `json:"projects"`
	}

	// Overrides carries the build parameters given on the command line.
	Overrides struct {
		EnvironmentName EnvironmentName
		Revisions       map[ProjectName]Revision
	}

	// InvalidRecipeError collects every field error found by Validate.
	InvalidRecipeError struct {
		FieldErrors []error
	}
)

// Default returns the built-in recipe: weather-tools owning the environment
// specification, followed by arco-era5 installed into the same environment.
func Default() *Recipe {
	return &Recipe{
		BaseImage: DefaultBaseImage,
		Solver: Solver{
			Package: DefaultSolverPackage,
			Name:    DefaultSolverName,
		},
		Environment: Environment{
			Name:        DefaultEnvironmentName,
			NameArg:     DefaultEnvironmentArg,
			LoginScript: DefaultLoginScript,
		},
		Projects: []Project{
			{
				Name:            "weather-tools",
				Repository:      "https://github.com/google/weather-tools.git",
				Revision:        DefaultRevision,
				CheckoutDir:     "/weather",
				FixturePattern:  DefaultFixturePattern,
				EnvironmentFile: "environment.yml",
				RevisionArg:     "weather_tools_git_rev",
			},
			{
				Name:           "arco-era5",
				Repository:     "https://github.com/google-research/arco-era5.git",
				Revision:       DefaultRevision,
				CheckoutDir:    "/arco-era5",
				FixturePattern: DefaultFixturePattern,
				RevisionArg:    "arco_era5_git_rev",
			},
		},
	}
}

// String returns the string representation of the CheckoutDir.
func (d CheckoutDir) String() string { return string(d) }

// Path returns d as a FilesystemPath.
func (d CheckoutDir) Path() types.FilesystemPath { return types.FilesystemPath(d) }

// Validate returns an error if d is empty, relative or the filesystem root.
func (d CheckoutDir) Validate() error {
	if err := d.Path().ValidateAbsolute(); err != nil {
		return &InvalidCheckoutDirError{Value: d, Err: err}
	}
	if filepath.Clean(string(d)) == string(filepath.Separator) {
		return &InvalidCheckoutDirError{Value: d, Err: errors.New("must not be the filesystem root")}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidCheckoutDirError) Error() string {
	return fmt.Sprintf("invalid checkout directory %q: %v", e.Value, e.Err)
}

// Unwrap returns ErrInvalidCheckoutDir and the underlying cause.
func (e *InvalidCheckoutDirError) Unwrap() []error {
	return []error{ErrInvalidCheckoutDir, e.Err}
}

// EnvironmentFilePath returns the absolute path of the environment
// specification file, or "" when the project does not own one.
func (p Project) EnvironmentFilePath() types.FilesystemPath {
	if p.EnvironmentFile == "" {
		return ""
	}
	if filepath.IsAbs(string(p.EnvironmentFile)) {
		return p.EnvironmentFile
	}
	return p.CheckoutDir.Path().Join(string(p.EnvironmentFile))
}

// OwnsEnvironment reports whether the project supplies the environment
// specification file.
func (p Project) OwnsEnvironment() bool { return p.EnvironmentFile != "" }

// ExpandLoginScript returns the login script path with a leading "~/"
// replaced by the current user's home directory.
func (e Environment) ExpandLoginScript() (types.FilesystemPath, error) {
	s := string(e.LoginScript)
	if !strings.HasPrefix(s, "~/") {
		return e.LoginScript, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to expand login script %q: %w", s, err)
	}
	return types.FilesystemPath(filepath.Join(home, s[2:])), nil
}

// Owner returns the project that supplies the environment specification.
func (r *Recipe) Owner() (Project, bool) {
	for _, p := range r.Projects {
		if p.OwnsEnvironment() {
			return p, true
		}
	}
	return Project{}, false
}

// Project returns the project with the given name.
func (r *Recipe) Project(name ProjectName) (Project, bool) {
	for _, p := range r.Projects {
		if p.Name == name {
			return p, true
		}
	}
	return Project{}, false
}

// Clone returns a deep copy of r.
func (r *Recipe) Clone() *Recipe {
	c := *r
	c.Projects = append([]Project(nil), r.Projects...)
	return &c
}

// Apply returns a copy of r with the overrides applied. Empty override values
// leave the recipe untouched.
func (r *Recipe) Apply(o Overrides) (*Recipe, error) {
	c := r.Clone()
	if o.EnvironmentName != "" {
		c.Environment.Name = o.EnvironmentName
	}
	for name, rev := range o.Revisions {
		if rev == "" {
			continue
		}
		idx := -1
		for i := range c.Projects {
			if c.Projects[i].Name == name {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownProject, name)
		}
		c.Projects[idx].Revision = rev
	}
	return c, nil
}

// Normalize fills omitted per-project fields: the mainline revision and
// the build argument names.
func (r *Recipe) Normalize() {
	if r.Environment.NameArg == "" {
		r.Environment.NameArg = DefaultEnvironmentArg
	}
	if r.Environment.LoginScript == "" {
		r.Environment.LoginScript = DefaultLoginScript
	}
	for i := range r.Projects {
		p := &r.Projects[i]
		p.Revision = p.Revision.OrDefault()
		if p.RevisionArg == "" {
			p.RevisionArg = strings.NewReplacer("-", "_", ".", "_").Replace(string(p.Name)) + "_git_rev"
		}
	}
}

// Validate checks every field and the cross-field constraints: at least one
// project, exactly one environment owner placed first, unique names and
// checkout directories.
func (r *Recipe) Validate() error {
	var errs []error

	if strings.TrimSpace(r.BaseImage) == "" {
		errs = append(errs, errors.New("base_image: must be non-empty"))
	}
	if strings.TrimSpace(r.Solver.Package) == "" {
		errs = append(errs, errors.New("solver.package: must be non-empty"))
	}
	if strings.TrimSpace(r.Solver.Name) == "" {
		errs = append(errs, errors.New("solver.name: must be non-empty"))
	}
	if err := r.Environment.Name.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("environment.name: %w", err))
	}
	if err := validateLoginScript(r.Environment.LoginScript); err != nil {
		errs = append(errs, fmt.Errorf("environment.login_script: %w", err))
	}

	if len(r.Projects) == 0 {
		errs = append(errs, errors.New("projects: at least one project is required"))
	}

	names := make(map[ProjectName]int, len(r.Projects))
	dirs := make(map[string]int, len(r.Projects))
	owners := 0
	for i, p := range r.Projects {
		field := fmt.Sprintf("projects[%d]", i)
		if err := p.Name.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s.name: %w", field, err))
		}
		if j, dup := names[p.Name]; dup {
			errs = append(errs, fmt.Errorf("%s.name: %q duplicates projects[%d]", field, p.Name, j))
		}
		names[p.Name] = i
		if err := p.Repository.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s.repository: %w", field, err))
		}
		if err := p.Revision.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s.revision: %w", field, err))
		}
		if err := p.CheckoutDir.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s.checkout_dir: %w", field, err))
		} else {
			clean := filepath.Clean(string(p.CheckoutDir))
			if j, dup := dirs[clean]; dup {
				errs = append(errs, fmt.Errorf("%s.checkout_dir: %q duplicates projects[%d]", field, p.CheckoutDir, j))
			}
			dirs[clean] = i
		}
		if err := p.FixturePattern.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s.fixture_pattern: %w", field, err))
		}
		if p.OwnsEnvironment() {
			owners++
			if i != 0 {
				errs = append(errs, fmt.Errorf("%s.environment_file: only the first project may declare the environment specification", field))
			}
		}
	}
	if len(r.Projects) > 0 && owners == 0 {
		errs = append(errs, errors.New("projects[0].environment_file: the first project must declare the environment specification"))
	}

	if len(errs) > 0 {
		return &InvalidRecipeError{FieldErrors: errs}
	}
	return nil
}

func validateLoginScript(p types.FilesystemPath) error {
	if strings.HasPrefix(string(p), "~/") && len(p) > 2 {
		return nil
	}
	return p.ValidateAbsolute()
}

// Error implements the error interface.
func (e *InvalidRecipeError) Error() string {
	return fmt.Sprintf("invalid recipe: %d field error(s)\n%v", len(e.FieldErrors), errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidRecipe plus every field error, so errors.Is
// matches both the recipe sentinel and the field-level sentinels.
func (e *InvalidRecipeError) Unwrap() []error {
	return append([]error{ErrInvalidRecipe}, e.FieldErrors...)
}
