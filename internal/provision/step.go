// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/invowk/envprov/internal/tooling"
	"github.com/invowk/envprov/pkg/recipe"
	"github.com/invowk/envprov/pkg/types"
)

const (
	StepInstallSolver   StepID = "install-solver"
	StepSetSolver       StepID = "set-solver"
	StepClone           StepID = "clone"
	StepCheckout        StepID = "checkout"
	StepPruneFixtures   StepID = "prune-fixtures"
	StepCreateEnv       StepID = "create-env"
	StepLoginHook       StepID = "login-hook"
	StepSearchPath      StepID = "search-path"
	StepInstallEditable StepID = "install-editable"
)

type (
	// StepID names a kind of step. Project steps repeat per project.
	StepID string

	// Step is one external-tool invocation of a plan. A step's precondition
	// is the postcondition of the step before it.
	Step interface {
		ID() StepID
		// Project returns the project the step acts on, or "" for
		// environment-wide steps.
		Project() recipe.ProjectName
		Category() Category
		// Describe returns the shell command the step runs.
		Describe() string
		Run(ctx context.Context, state *State) error

		instructions(rc *renderContext) ([]string, error)
	}

	installSolverStep struct {
		pm     *tooling.PackageManager
		solver recipe.Solver
	}

	setSolverStep struct {
		pm     *tooling.PackageManager
		solver recipe.Solver
	}

	cloneStep struct {
		git     *tooling.Git
		project recipe.Project
	}

	checkoutStep struct {
		git     *tooling.Git
		project recipe.Project
	}

	pruneFixturesStep struct {
		fs      afero.Fs
		project recipe.Project
	}

	createEnvStep struct {
		pm      *tooling.PackageManager
		fs      afero.Fs
		env     recipe.Environment
		project recipe.Project
	}

	loginHookStep struct {
		fs  afero.Fs
		env recipe.Environment
	}

	searchPathStep struct {
		pm  *tooling.PackageManager
		env recipe.Environment
	}

	installEditableStep struct {
		pip     *tooling.Pip
		project recipe.Project
	}
)

// String returns the string representation of the StepID.
func (id StepID) String() string { return string(id) }

func (s *installSolverStep) ID() StepID                  { return StepInstallSolver }
func (s *installSolverStep) Project() recipe.ProjectName { return "" }
func (s *installSolverStep) Category() Category          { return CategoryPackageManager }

func (s *installSolverStep) Describe() string {
	return shellJoin(s.pm.Name(), s.pm.InstallIntoBaseArgs(s.solver.Package)...)
}

func (s *installSolverStep) Run(ctx context.Context, _ *State) error {
	return s.pm.InstallIntoBase(ctx, s.solver.Package)
}

func (s *installSolverStep) instructions(_ *renderContext) ([]string, error) {
	return []string{"RUN " + s.Describe()}, nil
}

func (s *setSolverStep) ID() StepID                  { return StepSetSolver }
func (s *setSolverStep) Project() recipe.ProjectName { return "" }
func (s *setSolverStep) Category() Category          { return CategoryPackageManager }

func (s *setSolverStep) Describe() string {
	if !s.pm.SupportsSolverConfig() {
		return fmt.Sprintf("# %s always uses the %s solver", s.pm.Flavor(), s.solver.Name)
	}
	return shellJoin(s.pm.Name(), s.pm.SetSolverArgs(s.solver.Name)...)
}

func (s *setSolverStep) Run(ctx context.Context, _ *State) error {
	return s.pm.SetSolver(ctx, s.solver.Name)
}

func (s *setSolverStep) instructions(_ *renderContext) ([]string, error) {
	if !s.pm.SupportsSolverConfig() {
		return nil, nil
	}
	return []string{"RUN " + s.Describe()}, nil
}

func (s *cloneStep) ID() StepID                  { return StepClone }
func (s *cloneStep) Project() recipe.ProjectName { return s.project.Name }
func (s *cloneStep) Category() Category          { return CategoryVCS }

func (s *cloneStep) Describe() string {
	p := s.project
	return shellJoin(s.git.Name(), tooling.CloneArgs(p.Repository, p.CheckoutDir, p.Revision)...)
}

func (s *cloneStep) Run(ctx context.Context, _ *State) error {
	p := s.project
	return s.git.Clone(ctx, p.Repository, p.CheckoutDir, p.Revision)
}

// In an image the revision is a build argument, so the clone always takes
// the default branch and the checkout below selects the revision.
func (s *cloneStep) instructions(_ *renderContext) ([]string, error) {
	p := s.project
	return []string{"RUN " + shellJoin("git", "clone", "--", string(p.Repository), p.CheckoutDir.String())}, nil
}

func (s *checkoutStep) ID() StepID                  { return StepCheckout }
func (s *checkoutStep) Project() recipe.ProjectName { return s.project.Name }
func (s *checkoutStep) Category() Category          { return CategoryVCS }

func (s *checkoutStep) Describe() string {
	p := s.project
	return shellJoin(s.git.Name(), tooling.CheckoutArgs(p.CheckoutDir, p.Revision)...)
}

func (s *checkoutStep) Run(ctx context.Context, state *State) error {
	p := s.project
	if err := s.git.Checkout(ctx, p.CheckoutDir, p.Revision); err != nil {
		return err
	}
	head, err := s.git.RevParse(ctx, p.CheckoutDir, "HEAD")
	if err != nil {
		return err
	}
	state.Heads[p.Name] = head
	if want, ok := state.Expected[p.Name]; ok && !strings.HasPrefix(head, want) && !strings.HasPrefix(want, head) {
		// The selector moved between preflight and checkout.
		slog.Warn("checkout differs from preflight resolution",
			"project", p.Name, "revision", p.Revision, "expected", want, "head", head)
	}
	return nil
}

func (s *checkoutStep) instructions(_ *renderContext) ([]string, error) {
	p := s.project
	return []string{
		"WORKDIR " + p.CheckoutDir.String(),
		fmt.Sprintf(`RUN git checkout "${%s}"`, p.RevisionArg),
	}, nil
}

func (s *pruneFixturesStep) ID() StepID                  { return StepPruneFixtures }
func (s *pruneFixturesStep) Project() recipe.ProjectName { return s.project.Name }
func (s *pruneFixturesStep) Category() Category          { return CategoryFilesystem }

// Describe never names the bare checkout root: without a pattern the step
// does nothing.
func (s *pruneFixturesStep) Describe() string {
	if s.project.FixturePattern == "" {
		return "true"
	}
	return "rm -rf -- " + fixtureGlob(s.project)
}

func (s *pruneFixturesStep) Run(_ context.Context, state *State) error {
	removed, err := PruneFixtures(s.fs, s.project.CheckoutDir, s.project.FixturePattern)
	if err != nil {
		return err
	}
	state.Pruned[s.project.Name] = removed
	if len(removed) == 0 {
		slog.Debug("no fixture directories matched", "project", s.project.Name, "pattern", s.project.FixturePattern)
	}
	return nil
}

func (s *pruneFixturesStep) instructions(_ *renderContext) ([]string, error) {
	if s.project.FixturePattern == "" {
		return nil, nil
	}
	if !isShellSafeGlob(string(s.project.FixturePattern)) {
		return nil, fmt.Errorf("fixture pattern %q cannot be rendered as a shell glob", s.project.FixturePattern)
	}
	return []string{"RUN " + s.Describe()}, nil
}

func (s *createEnvStep) ID() StepID                  { return StepCreateEnv }
func (s *createEnvStep) Project() recipe.ProjectName { return s.project.Name }
func (s *createEnvStep) Category() Category          { return CategorySpecFile }

func (s *createEnvStep) Describe() string {
	return shellJoin(s.pm.Name(), s.pm.CreateEnvArgs(s.env.Name, s.project.EnvironmentFilePath())...)
}

func (s *createEnvStep) Run(ctx context.Context, _ *State) error {
	specFile := s.project.EnvironmentFilePath()
	// Malformed specifications fail here, before the solver runs.
	parsed, err := tooling.ParseEnvironmentFile(s.fs, specFile)
	if err != nil {
		return err
	}
	slog.Debug("environment specification parsed",
		"file", specFile, "conda_specs", len(parsed.CondaSpecs()), "pip_requirements", len(parsed.PipRequirements()))
	return s.pm.CreateEnv(ctx, s.env.Name, specFile)
}

func (s *createEnvStep) instructions(rc *renderContext) ([]string, error) {
	args := s.pm.CreateEnvArgs(s.env.Name, s.project.EnvironmentFilePath())
	for i, a := range args {
		args[i] = shellQuote(a)
		if i > 0 && args[i-1] == "-n" {
			args[i] = rc.envRef()
		}
	}
	return []string{"RUN " + s.pm.Name() + " " + strings.Join(args, " ")}, nil
}

func (s *loginHookStep) ID() StepID                  { return StepLoginHook }
func (s *loginHookStep) Project() recipe.ProjectName { return "" }
func (s *loginHookStep) Category() Category          { return CategoryFilesystem }

func (s *loginHookStep) Describe() string {
	return fmt.Sprintf("echo %s >> %s", shellQuote(ActivationLine(s.env.Name)), loginScriptWord(s.env.LoginScript))
}

func (s *loginHookStep) Run(_ context.Context, state *State) error {
	script, err := s.env.ExpandLoginScript()
	if err != nil {
		return err
	}
	added, err := EnsureActivationHook(s.fs, script, s.env.Name)
	if err != nil {
		return err
	}
	state.LoginScript = script
	state.HookAdded = added
	if !added {
		slog.Info("login script already activates the environment", "script", script, "environment", s.env.Name)
	}
	return nil
}

func (s *loginHookStep) instructions(rc *renderContext) ([]string, error) {
	return []string{
		fmt.Sprintf(`RUN echo "source activate %s" >> %s`, rc.envRef(), loginScriptWord(s.env.LoginScript)),
	}, nil
}

func (s *searchPathStep) ID() StepID                  { return StepSearchPath }
func (s *searchPathStep) Project() recipe.ProjectName { return "" }
func (s *searchPathStep) Category() Category          { return CategoryPackageManager }

func (s *searchPathStep) Describe() string {
	return fmt.Sprintf(`export PATH="$(%s env list --json | <prefix of %s>)/bin:$PATH"`, s.pm.Name(), s.env.Name)
}

func (s *searchPathStep) Run(ctx context.Context, state *State) error {
	prefix, err := s.pm.EnvPrefix(ctx, s.env.Name)
	if err != nil {
		return err
	}
	state.EnvPrefix = prefix
	state.PrependPath(state.EnvBinDir())
	slog.Debug("search path updated", "prepended", state.EnvBinDir())
	return nil
}

func (s *searchPathStep) instructions(rc *renderContext) ([]string, error) {
	bin := filepath.ToSlash(filepath.Join(rc.config.CondaRoot, "envs")) + "/" + rc.envRef() + "/bin"
	return []string{"ENV PATH=" + bin + ":$PATH"}, nil
}

func (s *installEditableStep) ID() StepID                  { return StepInstallEditable }
func (s *installEditableStep) Project() recipe.ProjectName { return s.project.Name }
func (s *installEditableStep) Category() Category          { return CategoryInstall }

func (s *installEditableStep) Describe() string {
	return shellJoin(s.pip.Name(), tooling.InstallEditableArgs(s.project.CheckoutDir.String())...)
}

func (s *installEditableStep) Run(ctx context.Context, _ *State) error {
	return s.pip.InstallEditable(ctx, s.project.CheckoutDir)
}

func (s *installEditableStep) instructions(_ *renderContext) ([]string, error) {
	return []string{"RUN " + shellJoin("pip", tooling.InstallEditableArgs(s.project.CheckoutDir.String())...)}, nil
}

// fixtureGlob returns the shell word for the fixture directories of p: the
// quoted checkout dir followed by the unquoted pattern.
func fixtureGlob(p recipe.Project) string {
	return shellQuote(p.CheckoutDir.String()+"/") + string(p.FixturePattern)
}

// loginScriptWord leaves a leading "~/" unquoted so the shell expands it.
func loginScriptWord(script types.FilesystemPath) string {
	if rest, ok := strings.CutPrefix(string(script), "~/"); ok {
		return "~/" + shellQuote(rest)
	}
	return shellQuote(string(script))
}
