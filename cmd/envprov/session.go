// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"log/slog"

	"github.com/invowk/envprov/internal/preflight"
	"github.com/invowk/envprov/internal/provision"
	"github.com/invowk/envprov/internal/tooling"
	"github.com/invowk/envprov/pkg/recipe"
)

// session bundles the provisioning state with tools bound to it.
type session struct {
	state *provision.State
	tools *provision.Tools
	plan  *provision.Plan
}

// newSession builds the state, the tool clients and the plan for r. With
// requireTools the package manager must be installed (with the conda
// fallback); otherwise the configured flavor is used as-is for rendering.
func (a *App) newSession(r *recipe.Recipe, requireTools bool) (*session, error) {
	state := provision.NewState(a.Environ())
	opts := a.toolOptions(state.Environ)
	flavor := tooling.Flavor(a.loadedConfig().PackageManager)

	var pm *tooling.PackageManager
	if requireTools {
		var err error
		pm, err = tooling.NewPackageManager(flavor, opts...)
		if err != nil {
			return nil, err
		}
	} else {
		pm = tooling.NewPackageManagerFlavor(flavor, opts...)
	}

	tools := &provision.Tools{
		Git:            tooling.NewGit(opts...),
		PackageManager: pm,
		Pip:            tooling.NewPip(opts...),
		FS:             a.FS,
	}
	plan, err := provision.NewPlan(r, tools)
	if err != nil {
		return nil, recipeError(a.opts.recipeFile, err)
	}
	return &session{state: state, tools: tools, plan: plan}, nil
}

// newResolver returns the preflight resolver: the GitHub API for github.com
// repositories, git ls-remote for the rest and as fallback.
func (a *App) newResolver(ctx context.Context, git *tooling.Git, environ func() []string) preflight.Resolver {
	if a.Resolver != nil {
		return a.Resolver
	}
	opts := []tooling.Option{tooling.WithEnviron(environ), tooling.WithSandbox(a.sandbox)}
	if a.ExecCommand != nil {
		opts = append(opts, tooling.WithExecCommand(a.ExecCommand))
	}
	gh := tooling.NewBaseCLITool("gh", opts...)

	token, source, err := preflight.ResolveAuthToken(ctx, a.loadedConfig().GitHub.Token, gh)
	if err != nil {
		slog.Debug("GitHub token lookup failed, using anonymous access", "error", err)
	}
	if token != "" {
		slog.Debug("using GitHub token", "source", source)
	}

	return &preflight.ChainResolver{
		GitHub: preflight.NewGitHubResolver(preflight.NewGitHubClient(token)),
		Git:    preflight.NewGitResolver(git),
	}
}
