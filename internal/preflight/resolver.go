// SPDX-License-Identifier: MPL-2.0

package preflight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/invowk/envprov/internal/tooling"
	"github.com/invowk/envprov/pkg/recipe"
)

const (
	// SourceGit marks resolutions made with "git ls-remote".
	SourceGit Source = "git"
	// SourceGitHub marks resolutions made through the GitHub API.
	SourceGitHub Source = "github"
	// SourceUnverified marks commit-id selectors that could not be checked
	// remotely; the checkout step verifies them.
	SourceUnverified Source = "unverified"
)

// ErrUnknownRevision is wrapped by every RevisionError.
var ErrUnknownRevision = errors.New("unknown revision")

type (
	// Source identifies how a revision was resolved.
	Source string

	// Resolution is the outcome of resolving one project's selector.
	Resolution struct {
		Project  recipe.ProjectName
		Revision recipe.Revision
		Commit   string
		Source   Source
	}

	// Resolver resolves a project's revision selector to a commit id.
	Resolver interface {
		Resolve(ctx context.Context, p recipe.Project) (Resolution, error)
	}

	// RevisionError reports a selector that does not exist in its repository.
	RevisionError struct {
		Project    recipe.ProjectName
		Repository recipe.RepositoryURL
		Revision   recipe.Revision
		Err        error
	}

	// GitResolver resolves selectors with "git ls-remote".
	GitResolver struct {
		git *tooling.Git
	}

	// ChainResolver sends github.com projects to a GitHub resolver and every
	// other project to a git resolver. A GitHub failure that is not an
	// unknown revision falls back to git.
	ChainResolver struct {
		GitHub Resolver
		Git    Resolver
	}
)

// Error implements the error interface.
func (e *RevisionError) Error() string {
	return fmt.Sprintf("project %s: revision %q not found in %s: %v", e.Project, e.Revision.OrDefault(), e.Repository, e.Err)
}

// Unwrap returns ErrUnknownRevision and the underlying cause.
func (e *RevisionError) Unwrap() []error { return []error{ErrUnknownRevision, e.Err} }

// NewGitResolver creates a resolver backed by git.
func NewGitResolver(git *tooling.Git) *GitResolver {
	return &GitResolver{git: git}
}

// Resolve implements Resolver. Commit-id selectors that are not also ref
// names cannot be looked up with ls-remote and are returned unverified.
func (r *GitResolver) Resolve(ctx context.Context, p recipe.Project) (Resolution, error) {
	rev := p.Revision.OrDefault()
	res := Resolution{Project: p.Name, Revision: rev, Source: SourceGit}

	commit, err := r.git.ResolveRemote(ctx, p.Repository, rev)
	switch {
	case err == nil:
		res.Commit = commit
		return res, nil
	case errors.Is(err, tooling.ErrRevisionNotFound) && rev.IsCommitLike():
		slog.Debug("commit selector not advertised by remote, deferring to checkout", "project", p.Name, "revision", rev)
		res.Commit = string(rev)
		res.Source = SourceUnverified
		return res, nil
	case errors.Is(err, tooling.ErrRevisionNotFound):
		return Resolution{}, &RevisionError{Project: p.Name, Repository: p.Repository, Revision: rev, Err: err}
	default:
		return Resolution{}, fmt.Errorf("resolve %s@%s: %w", p.Name, rev, err)
	}
}

// Resolve implements Resolver.
func (c *ChainResolver) Resolve(ctx context.Context, p recipe.Project) (Resolution, error) {
	if c.GitHub != nil {
		if _, _, ok := p.Repository.GitHubRepository(); ok {
			res, err := c.GitHub.Resolve(ctx, p)
			if err == nil || errors.Is(err, ErrUnknownRevision) || c.Git == nil {
				return res, err
			}
			slog.Warn("GitHub lookup failed, falling back to git ls-remote", "project", p.Name, "error", err)
		}
	}
	if c.Git == nil {
		return Resolution{}, fmt.Errorf("no resolver for %s", p.Repository)
	}
	return c.Git.Resolve(ctx, p)
}
