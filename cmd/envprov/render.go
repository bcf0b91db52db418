// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/invowk/envprov/internal/config"
	"github.com/invowk/envprov/internal/container"
	"github.com/invowk/envprov/internal/issue"
	"github.com/invowk/envprov/internal/preflight"
	"github.com/invowk/envprov/internal/provision"
	"github.com/invowk/envprov/internal/tooling"
	"github.com/invowk/envprov/internal/verify"
	"github.com/invowk/envprov/pkg/recipe"
)

// categoryIssues maps each failure category to its catalog entry.
var categoryIssues = map[provision.Category]issue.Id{
	provision.CategoryPackageManager: issue.PackageManagerFailedId,
	provision.CategoryVCS:            issue.VersionControlFailedId,
	provision.CategorySpecFile:       issue.SpecFileInvalidId,
	provision.CategoryInstall:        issue.InstallFailedId,
	provision.CategoryFilesystem:     issue.FilesystemFailedId,
	provision.CategoryConfig:         issue.RecipeInvalidId,
}

// categorySuggestions are the short hints printed under a failed step.
var categorySuggestions = map[provision.Category][]string{
	provision.CategoryPackageManager: {
		"Check that the package manager can reach its channels",
		"Set ENVPROV_PACKAGE_MANAGER to switch between conda, mamba and micromamba",
	},
	provision.CategoryVCS: {
		"Check that the revision exists: git ls-remote <repository> <revision>",
		"Remove leftover checkout directories from an earlier attempt",
	},
	provision.CategorySpecFile: {
		"Check that environment.yml exists at the selected revision and is valid YAML",
	},
	provision.CategoryInstall: {
		"Look for build errors of native dependencies in the output above",
	},
	provision.CategoryFilesystem: {
		"Check permissions of the checkout directories and the login script",
	},
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}

// stepError turns a failed step into an actionable error naming the step,
// its project and the failure category.
func stepError(se *provision.StepError) error {
	resource := se.Step.String()
	if se.Project != "" {
		resource = fmt.Sprintf("%s (%s)", se.Step, se.Project)
	}
	return issue.NewErrorContext().
		WithOperation("provision environment").
		WithResource(resource).
		WithSuggestions(categorySuggestions[se.Category]...).
		WithSuggestion("Run with --verbose for the full error chain and troubleshooting guide").
		Wrap(se).
		BuildError()
}

// issueFor picks the catalog entry that best explains err.
func issueFor(err error) (issue.Id, bool) {
	var (
		engineErr *container.ErrEngineNotAvailable
		pmErr     *tooling.PackageManagerNotAvailableError
		se        *provision.StepError
	)
	switch {
	case errors.Is(err, preflight.ErrUnknownRevision):
		return issue.RevisionNotFoundId, true
	case errors.As(err, &se):
		id, ok := categoryIssues[se.Category]
		return id, ok
	case errors.As(err, &engineErr):
		return issue.ContainerEngineNotFoundId, true
	case errors.As(err, &pmErr):
		return issue.PackageManagerFailedId, true
	case errors.Is(err, verify.ErrChecksFailed):
		return issue.VerificationFailedId, true
	case errors.Is(err, recipe.ErrInvalidRecipe), errors.Is(err, recipe.ErrUnknownProject):
		return issue.RecipeInvalidId, true
	case errors.Is(err, config.ErrInvalidConfig), errors.Is(err, config.ErrConfigFileNotFound):
		return issue.ConfigLoadFailedId, true
	case errors.Is(err, os.ErrPermission):
		return issue.PermissionDeniedId, true
	}
	return 0, false
}

// renderError writes err to w. Verbose mode appends the rendered issue
// catalog entry when one matches.
func (a *App) renderError(w io.Writer, err error) {
	verbose := a.opts.verbose

	var se *provision.StepError
	if errors.As(err, &se) {
		err = stepError(se)
	}
	fmt.Fprintln(w, ErrorStyle.Render("Error: ")+formatErrorForDisplay(err, verbose))

	if !verbose {
		return
	}
	id, ok := issueFor(err)
	if !ok {
		return
	}
	rendered, renderErr := issue.Get(id).Render(a.issueStyle())
	if renderErr != nil {
		slog.Debug("failed to render issue", "error", renderErr)
		return
	}
	fmt.Fprint(w, rendered)
}

// issueStyle returns the glamour style for the configured color scheme.
func (a *App) issueStyle() string {
	if a.loadedConfig().UI.ColorScheme == config.ColorSchemeLight {
		return "light"
	}
	return "dark"
}
