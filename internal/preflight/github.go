// SPDX-License-Identifier: MPL-2.0

package preflight

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/go-github/v81/github"
	"golang.org/x/oauth2"

	"github.com/invowk/envprov/internal/tooling"
	"github.com/invowk/envprov/pkg/recipe"
)

const (
	// TokenSourceExplicit means the token came from configuration.
	TokenSourceExplicit TokenSource = "config"
	// TokenSourceEnv means the token came from GITHUB_TOKEN.
	TokenSourceEnv TokenSource = "env:GITHUB_TOKEN"
	// TokenSourceGitHubCLI means the token came from "gh auth token".
	TokenSourceGitHubCLI TokenSource = "gh"

	ghTokenTimeout = 5 * time.Second
)

type (
	// TokenSource names where a GitHub token was found.
	TokenSource string

	// GitHubResolver resolves selectors with the GitHub commits API, which
	// accepts branches, tags and (abbreviated) commit ids alike.
	GitHubResolver struct {
		client *github.Client
	}
)

// NewGitHubClient returns a GitHub client, authenticated when token is set.
func NewGitHubClient(token string) *github.Client {
	transport := http.DefaultTransport
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		transport = &oauth2.Transport{Source: ts, Base: transport}
	}
	return github.NewClient(&http.Client{Transport: transport})
}

// NewGitHubResolver creates a resolver using client.
func NewGitHubResolver(client *github.Client) *GitHubResolver {
	return &GitHubResolver{client: client}
}

// Resolve implements Resolver.
func (r *GitHubResolver) Resolve(ctx context.Context, p recipe.Project) (Resolution, error) {
	owner, repo, ok := p.Repository.GitHubRepository()
	if !ok {
		return Resolution{}, fmt.Errorf("%s is not a github.com repository", p.Repository)
	}
	rev := p.Revision.OrDefault()

	commit, _, err := r.client.Repositories.GetCommit(ctx, owner, repo, string(rev), nil)
	if err != nil {
		var er *github.ErrorResponse
		if errors.As(err, &er) && er.Response != nil &&
			(er.Response.StatusCode == http.StatusNotFound || er.Response.StatusCode == http.StatusUnprocessableEntity) {
			return Resolution{}, &RevisionError{Project: p.Name, Repository: p.Repository, Revision: rev, Err: err}
		}
		return Resolution{}, fmt.Errorf("resolve %s@%s via GitHub: %w", p.Name, rev, err)
	}
	return Resolution{
		Project:  p.Name,
		Revision: rev,
		Commit:   commit.GetSHA(),
		Source:   SourceGitHub,
	}, nil
}

// ResolveAuthToken picks a GitHub token: the configured one, then
// GITHUB_TOKEN, then "gh auth token". An empty token means anonymous access.
func ResolveAuthToken(ctx context.Context, configured string, gh *tooling.BaseCLITool) (string, TokenSource, error) {
	if tok := strings.TrimSpace(configured); tok != "" {
		return tok, TokenSourceExplicit, nil
	}
	if env := strings.TrimSpace(os.Getenv("GITHUB_TOKEN")); env != "" {
		return env, TokenSourceEnv, nil
	}
	if gh == nil || !gh.Available() {
		return "", "", nil
	}

	cmdCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		cmdCtx, cancel = context.WithTimeout(ctx, ghTokenTimeout)
		defer cancel()
	}
	out, err := gh.RunWithOutput(cmdCtx, "auth", "token", "-h", "github.com")
	if err != nil {
		if cmdCtx.Err() != nil {
			return "", "", cmdCtx.Err()
		}
		// Not logged in: anonymous access.
		return "", "", nil
	}
	tok := strings.TrimSpace(out)
	if tok == "" {
		return "", "", nil
	}
	if strings.ContainsAny(tok, " \t\r\n") {
		return "", "", errors.New("invalid token returned by gh: contains whitespace")
	}
	return tok, TokenSourceGitHubCLI, nil
}
