// SPDX-License-Identifier: MPL-2.0

package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"

	"github.com/invowk/envprov/internal/provision"
	"github.com/invowk/envprov/internal/tooling"
	"github.com/invowk/envprov/pkg/recipe"
)

const (
	CheckRevision   CheckName = "revision"
	CheckFixtures   CheckName = "fixtures-pruned"
	CheckSearchPath CheckName = "search-path"
	CheckLoginHook  CheckName = "login-hook"
	CheckEditable   CheckName = "editable-install"

	defaultInterpreter = "python"
)

// ErrChecksFailed is returned by Err when at least one check failed.
var ErrChecksFailed = errors.New("verification failed")

type (
	// CheckName identifies a verified property.
	CheckName string

	// Check is the outcome of one property on one project (or the
	// environment, when Project is empty).
	Check struct {
		Name    CheckName
		Project recipe.ProjectName
		Passed  bool
		Detail  string
	}

	// Verifier runs the checks. Its tools must be constructed with
	// tooling.WithEnviron(state.Environ) for the state passed to New, so
	// that pip resolves inside the environment.
	Verifier struct {
		tools *provision.Tools
		state *provision.State
		fs    afero.Fs
	}
)

// String returns the string representation of the CheckName.
func (n CheckName) String() string { return string(n) }

// New creates a Verifier.
func New(tools *provision.Tools, state *provision.State) *Verifier {
	fs := tools.FS
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Verifier{tools: tools, state: state, fs: fs}
}

// Run checks every property. The environment prefix comes from the receipt
// when given, otherwise from the package manager. Checks that cannot run
// are reported as failed with the reason in Detail; the error is reserved
// for an unusable environment.
func (v *Verifier) Run(ctx context.Context, r *recipe.Recipe, receipt *provision.Receipt) ([]Check, error) {
	if err := v.locateEnvironment(ctx, r, receipt); err != nil {
		return nil, err
	}

	var checks []Check
	for _, p := range r.Projects {
		checks = append(checks, v.checkRevision(ctx, p, receipt))
		if p.FixturePattern != "" {
			checks = append(checks, v.checkFixtures(p))
		}
	}
	checks = append(checks, v.checkSearchPath(), v.checkLoginHook(r, receipt))

	editable, listErr := v.tools.Pip.ListEditable(ctx)
	for _, p := range r.Projects {
		checks = append(checks, checkEditable(p, editable, listErr))
	}
	return checks, nil
}

func (v *Verifier) locateEnvironment(ctx context.Context, r *recipe.Recipe, receipt *provision.Receipt) error {
	if v.state.EnvPrefix != "" {
		return nil
	}
	if receipt != nil && receipt.Environment.Prefix != "" {
		v.state.EnvPrefix = receipt.Environment.Prefix
	} else {
		if v.tools.PackageManager == nil {
			return fmt.Errorf("no receipt and no package manager to locate environment %s", r.Environment.Name)
		}
		prefix, err := v.tools.PackageManager.EnvPrefix(ctx, r.Environment.Name)
		if err != nil {
			return fmt.Errorf("failed to locate environment %s: %w", r.Environment.Name, err)
		}
		v.state.EnvPrefix = prefix
	}
	v.state.PrependPath(v.state.EnvBinDir())
	slog.Debug("verifying environment", "prefix", v.state.EnvPrefix)
	return nil
}

// checkRevision compares HEAD with the receipt's commit, or with the
// requested revision when there is no receipt.
func (v *Verifier) checkRevision(ctx context.Context, p recipe.Project, receipt *provision.Receipt) Check {
	c := Check{Name: CheckRevision, Project: p.Name}
	head, err := v.tools.Git.RevParse(ctx, p.CheckoutDir, "HEAD")
	if err != nil {
		c.Detail = fmt.Sprintf("cannot read HEAD of %s: %v", p.CheckoutDir, err)
		return c
	}

	want := ""
	if receipt != nil {
		if rp, ok := receipt.Project(p.Name); ok {
			want = rp.Commit
		}
	}
	if want == "" {
		want, err = v.tools.Git.RevParse(ctx, p.CheckoutDir, p.Revision.OrDefault().String())
		if err != nil {
			c.Detail = fmt.Sprintf("revision %s does not resolve in %s: %v", p.Revision.OrDefault(), p.CheckoutDir, err)
			return c
		}
	}

	c.Passed = strings.HasPrefix(head, want) || strings.HasPrefix(want, head)
	if c.Passed {
		c.Detail = fmt.Sprintf("HEAD %s matches %s", shortSHA(head), p.Revision.OrDefault())
	} else {
		c.Detail = fmt.Sprintf("HEAD %s, want %s (%s)", shortSHA(head), shortSHA(want), p.Revision.OrDefault())
	}
	return c
}

func (v *Verifier) checkFixtures(p recipe.Project) Check {
	c := Check{Name: CheckFixtures, Project: p.Name}
	remaining, err := provision.RemainingFixtures(v.fs, p.CheckoutDir, p.FixturePattern)
	switch {
	case err != nil:
		c.Detail = err.Error()
	case len(remaining) > 0:
		c.Detail = "still present: " + strings.Join(remaining, ", ")
	default:
		c.Passed = true
		c.Detail = fmt.Sprintf("no directory matches %s", p.FixturePattern)
	}
	return c
}

// checkSearchPath resolves the interpreter on the search path the
// environment's activation produces and expects it under <prefix>/bin.
func (v *Verifier) checkSearchPath() Check {
	c := Check{Name: CheckSearchPath}
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "/"
	}
	found, err := interp.LookPathDir(cwd, expand.ListEnviron(v.state.Environ()...), defaultInterpreter)
	if err != nil {
		c.Detail = fmt.Sprintf("%s not found on %s", defaultInterpreter, v.state.Path())
		return c
	}
	bin := filepath.Clean(v.state.EnvBinDir())
	c.Passed = filepath.Dir(filepath.Clean(found)) == bin
	if c.Passed {
		c.Detail = fmt.Sprintf("%s resolves to %s", defaultInterpreter, found)
	} else {
		c.Detail = fmt.Sprintf("%s resolves to %s, want it under %s", defaultInterpreter, found, bin)
	}
	return c
}

func (v *Verifier) checkLoginHook(r *recipe.Recipe, receipt *provision.Receipt) Check {
	c := Check{Name: CheckLoginHook}
	script := r.Environment.LoginScript
	if receipt != nil && receipt.Environment.LoginScript != "" {
		script = receipt.Environment.LoginScript
	} else if expanded, err := r.Environment.ExpandLoginScript(); err == nil {
		script = expanded
	}
	data, err := afero.ReadFile(v.fs, string(script))
	if err != nil {
		c.Detail = fmt.Sprintf("cannot read %s: %v", script, err)
		return c
	}
	c.Passed = provision.HasActivation(data, r.Environment.Name)
	if c.Passed {
		c.Detail = fmt.Sprintf("%s activates %s", script, r.Environment.Name)
	} else {
		c.Detail = fmt.Sprintf("%s does not activate %s", script, r.Environment.Name)
	}
	return c
}

func checkEditable(p recipe.Project, pkgs []tooling.EditablePackage, listErr error) Check {
	c := Check{Name: CheckEditable, Project: p.Name}
	if listErr != nil {
		c.Detail = fmt.Sprintf("cannot list editable installs: %v", listErr)
		return c
	}
	pkg, ok := tooling.EditableAt(pkgs, p.CheckoutDir)
	c.Passed = ok
	if ok {
		c.Detail = fmt.Sprintf("%s %s installed from %s", pkg.Name, pkg.Version, pkg.Location)
	} else {
		c.Detail = fmt.Sprintf("no editable install from %s", p.CheckoutDir)
	}
	return c
}

// Err returns ErrChecksFailed joined with one error per failed check, or nil.
func Err(checks []Check) error {
	var errs []error
	for _, c := range checks {
		if !c.Passed {
			errs = append(errs, fmt.Errorf("%s: %s", c.Label(), c.Detail))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(append([]error{ErrChecksFailed}, errs...)...)
}

// Label returns "name" or "name (project)".
func (c Check) Label() string {
	if c.Project == "" {
		return c.Name.String()
	}
	return fmt.Sprintf("%s (%s)", c.Name, c.Project)
}

func shortSHA(s string) string {
	if len(s) > 12 {
		return s[:12]
	}
	return s
}
