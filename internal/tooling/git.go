// SPDX-License-Identifier: MPL-2.0

package tooling

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/invowk/envprov/pkg/recipe"
)

// ErrRevisionNotFound is returned by LsRemote when the remote has no ref
// matching the selector.
var ErrRevisionNotFound = errors.New("revision not found")

type (
	// Git drives the git command-line client.
	Git struct {
		*BaseCLITool
	}

	// RemoteRef is one line of "git ls-remote" output.
	RemoteRef struct {
		Commit string
		Ref    string
	}
)

// NewGit creates a git client.
func NewGit(opts ...Option) *Git {
	return &Git{BaseCLITool: NewBaseCLITool("git", opts...)}
}

// CloneArgs returns the clone arguments for rev. Branches and tags are
// cloned directly with --branch; commit ids clone the default branch and
// rely on the explicit checkout that follows.
func CloneArgs(url recipe.RepositoryURL, dir recipe.CheckoutDir, rev recipe.Revision) []string {
	args := []string{"clone"}
	if r := rev.OrDefault(); !r.IsCommitLike() {
		args = append(args, "--branch", string(r))
	}
	return append(args, "--", string(url), string(dir))
}

// CheckoutArgs returns the arguments that switch dir to rev.
func CheckoutArgs(dir recipe.CheckoutDir, rev recipe.Revision) []string {
	return []string{"-C", string(dir), "checkout", string(rev.OrDefault())}
}

// Clone fetches url into dir.
func (g *Git) Clone(ctx context.Context, url recipe.RepositoryURL, dir recipe.CheckoutDir, rev recipe.Revision) error {
	return g.Run(ctx, CloneArgs(url, dir, rev)...)
}

// Checkout switches the working tree at dir to rev.
func (g *Git) Checkout(ctx context.Context, dir recipe.CheckoutDir, rev recipe.Revision) error {
	return g.Run(ctx, CheckoutArgs(dir, rev)...)
}

// RevParse resolves ref (e.g. "HEAD") to a full commit id inside dir.
func (g *Git) RevParse(ctx context.Context, dir recipe.CheckoutDir, ref string) (string, error) {
	out, err := g.RunWithOutput(ctx, "-C", string(dir), "rev-parse", "--verify", ref+"^{commit}")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// LsRemote lists the refs of url matching rev. A branch selector matches
// refs/heads/<rev>; a tag matches refs/tags/<rev> and its peeled form.
func (g *Git) LsRemote(ctx context.Context, url recipe.RepositoryURL, rev recipe.Revision) ([]RemoteRef, error) {
	out, err := g.RunWithOutput(ctx, "ls-remote", "--", string(url), string(rev.OrDefault()))
	if err != nil {
		return nil, err
	}
	return ParseLsRemote(out)
}

// ResolveRemote returns the commit rev points to on url. Annotated tags
// resolve to the peeled commit.
func (g *Git) ResolveRemote(ctx context.Context, url recipe.RepositoryURL, rev recipe.Revision) (string, error) {
	refs, err := g.LsRemote(ctx, url, rev)
	if err != nil {
		return "", err
	}
	r := string(rev.OrDefault())
	var branch, tag, peeled string
	for _, ref := range refs {
		switch ref.Ref {
		case "refs/heads/" + r:
			branch = ref.Commit
		case "refs/tags/" + r:
			tag = ref.Commit
		case "refs/tags/" + r + "^{}":
			peeled = ref.Commit
		}
	}
	switch {
	case branch != "":
		return branch, nil
	case peeled != "":
		return peeled, nil
	case tag != "":
		return tag, nil
	}
	return "", fmt.Errorf("%w: %q in %s", ErrRevisionNotFound, r, url)
}

// Version returns the git version string (e.g. "2.43.0").
func (g *Git) Version(ctx context.Context) (string, error) {
	out, err := g.RunWithOutput(ctx, "version")
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(strings.TrimSpace(out), "git version "), nil
}

// ParseLsRemote parses "git ls-remote" output.
func ParseLsRemote(out string) ([]RemoteRef, error) {
	var refs []RemoteRef
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		commit, ref, ok := strings.Cut(line, "\t")
		if !ok {
			return nil, fmt.Errorf("malformed ls-remote line %q", line)
		}
		refs = append(refs, RemoteRef{Commit: commit, Ref: ref})
	}
	return refs, sc.Err()
}

// IsFatal reports whether err is a git fatal error (exit status 128), which
// git uses for unknown revisions and unreachable repositories.
func IsFatal(err error) bool {
	var ce *CommandError
	return errors.As(err, &ce) && ce.Tool == "git" && ce.ExitCode.IsGitFatal()
}
