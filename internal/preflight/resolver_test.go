// SPDX-License-Identifier: MPL-2.0

package preflight

import (
	"context"
	"errors"
	"testing"

	"github.com/invowk/envprov/internal/testutil"
	"github.com/invowk/envprov/internal/tooling"
	"github.com/invowk/envprov/pkg/recipe"
)

func TestHelperProcess(t *testing.T) { testutil.RunHelperProcess() }

const mainCommit = "9f1c2e3d4b5a69788796a5b4c3d2e1f0a9b8c7d6"

func weatherProject(rev recipe.Revision) recipe.Project {
	p := recipe.Default().Projects[0]
	p.Revision = rev
	return p
}

func TestGitResolver(t *testing.T) {
	t.Parallel()

	rec := testutil.NewCommandRecorder()
	rec.On("git", "ls-remote", "main").Print(mainCommit + "\trefs/heads/main\n")
	rec.On("git", "ls-remote", "unreachable").Fail(128, "fatal: could not read from remote repository\n")
	resolver := NewGitResolver(tooling.NewGit(tooling.WithExecCommand(rec.ExecCommand)))
	ctx := context.Background()

	t.Run("branch", func(t *testing.T) {
		res, err := resolver.Resolve(ctx, weatherProject(""))
		if err != nil {
			t.Fatalf("Resolve() = %v", err)
		}
		if res.Commit != mainCommit || res.Revision != "main" || res.Source != SourceGit {
			t.Errorf("Resolution = %+v", res)
		}
	})

	t.Run("unknown branch", func(t *testing.T) {
		_, err := resolver.Resolve(ctx, weatherProject("no-such-branch"))
		if !errors.Is(err, ErrUnknownRevision) {
			t.Fatalf("error = %v, want ErrUnknownRevision", err)
		}
		var revErr *RevisionError
		if !errors.As(err, &revErr) || revErr.Project != "weather-tools" {
			t.Errorf("RevisionError = %+v", revErr)
		}
	})

	t.Run("commit selector is deferred", func(t *testing.T) {
		res, err := resolver.Resolve(ctx, weatherProject("4b825dc"))
		if err != nil {
			t.Fatalf("Resolve() = %v", err)
		}
		if res.Source != SourceUnverified || res.Commit != "4b825dc" {
			t.Errorf("Resolution = %+v", res)
		}
	})

	t.Run("remote failure is not an unknown revision", func(t *testing.T) {
		_, err := resolver.Resolve(ctx, weatherProject("unreachable"))
		if err == nil || errors.Is(err, ErrUnknownRevision) {
			t.Errorf("error = %v, want a transport failure", err)
		}
		if !tooling.IsFatal(err) {
			t.Errorf("git fatal status lost: %v", err)
		}
	})
}

type stubResolver struct {
	res   Resolution
	err   error
	calls int
}

func (s *stubResolver) Resolve(_ context.Context, p recipe.Project) (Resolution, error) {
	s.calls++
	if s.err != nil {
		return Resolution{}, s.err
	}
	r := s.res
	r.Project = p.Name
	return r, nil
}

func TestChainResolver(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	github := recipe.Default().Projects[0]
	local := github
	local.Repository = "/srv/git/weather-tools"

	t.Run("github repositories use the GitHub resolver", func(t *testing.T) {
		gh := &stubResolver{res: Resolution{Source: SourceGitHub}}
		git := &stubResolver{res: Resolution{Source: SourceGit}}
		res, err := (&ChainResolver{GitHub: gh, Git: git}).Resolve(ctx, github)
		if err != nil || res.Source != SourceGitHub || git.calls != 0 {
			t.Errorf("res=%+v err=%v git.calls=%d", res, err, git.calls)
		}
	})

	t.Run("other repositories use git", func(t *testing.T) {
		gh := &stubResolver{res: Resolution{Source: SourceGitHub}}
		git := &stubResolver{res: Resolution{Source: SourceGit}}
		res, err := (&ChainResolver{GitHub: gh, Git: git}).Resolve(ctx, local)
		if err != nil || res.Source != SourceGit || gh.calls != 0 {
			t.Errorf("res=%+v err=%v gh.calls=%d", res, err, gh.calls)
		}
	})

	t.Run("API failure falls back to git", func(t *testing.T) {
		gh := &stubResolver{err: errors.New("rate limited")}
		git := &stubResolver{res: Resolution{Source: SourceGit}}
		res, err := (&ChainResolver{GitHub: gh, Git: git}).Resolve(ctx, github)
		if err != nil || res.Source != SourceGit {
			t.Errorf("res=%+v err=%v", res, err)
		}
	})

	t.Run("unknown revision does not fall back", func(t *testing.T) {
		gh := &stubResolver{err: &RevisionError{Project: "weather-tools", Err: errors.New("404")}}
		git := &stubResolver{}
		_, err := (&ChainResolver{GitHub: gh, Git: git}).Resolve(ctx, github)
		if !errors.Is(err, ErrUnknownRevision) || git.calls != 0 {
			t.Errorf("err=%v git.calls=%d", err, git.calls)
		}
	})
}
