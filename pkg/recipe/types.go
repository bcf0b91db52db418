// SPDX-License-Identifier: MPL-2.0

package recipe

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// DefaultRevision is the mainline branch used when a revision selector is omitted.
const DefaultRevision Revision = "main"

var (
	// ErrInvalidRevision is the sentinel error wrapped by InvalidRevisionError.
	ErrInvalidRevision = errors.New("invalid revision selector")
	// ErrInvalidEnvironmentName is the sentinel error wrapped by InvalidEnvironmentNameError.
	ErrInvalidEnvironmentName = errors.New("invalid environment name")
	// ErrInvalidProjectName is the sentinel error wrapped by InvalidProjectNameError.
	ErrInvalidProjectName = errors.New("invalid project name")
	// ErrInvalidRepositoryURL is the sentinel error wrapped by InvalidRepositoryURLError.
	ErrInvalidRepositoryURL = errors.New("invalid repository URL")
	// ErrInvalidFixturePattern is the sentinel error wrapped by InvalidFixturePatternError.
	ErrInvalidFixturePattern = errors.New("invalid fixture pattern")

	environmentNamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
	projectNamePattern     = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)
	commitPattern          = regexp.MustCompile(`^[0-9a-fA-F]{7,40}$`)
	scpLikeURLPattern      = regexp.MustCompile(`^[A-Za-z0-9._-]+@[A-Za-z0-9.-]+:.+$`)
)

type (
	// Revision is a revision selector: a commit, tag, or branch name.
	// The zero value means "use DefaultRevision".
	Revision string

	// InvalidRevisionError is returned when a Revision could not be passed to
	// git safely.
	InvalidRevisionError struct {
		Value  Revision
		Reason string
	}

	// EnvironmentName names the isolated environment created by the package
	// manager. It also names the search-path entry <envs>/<name>/bin.
	EnvironmentName string

	// InvalidEnvironmentNameError is returned when an EnvironmentName is not
	// usable as a conda environment name.
	InvalidEnvironmentNameError struct {
		Value  EnvironmentName
		Reason string
	}

	// ProjectName identifies a project within a recipe (e.g. "weather-tools").
	ProjectName string

	// InvalidProjectNameError is returned when a ProjectName is malformed.
	InvalidProjectNameError struct {
		Value ProjectName
	}

	// RepositoryURL is the clone URL of a project: https, ssh, scp-like
	// (git@host:org/repo.git), file:// or an absolute local path.
	RepositoryURL string

	// InvalidRepositoryURLError is returned when a RepositoryURL is not cloneable.
	InvalidRepositoryURLError struct {
		Value  RepositoryURL
		Reason string
	}

	// FixturePattern is a glob, relative to a checkout root, matching the
	// test-fixture directories removed after checkout (e.g. "weather_*/test_data").
	// The zero value means the project ships no fixtures to prune.
	FixturePattern string

	// InvalidFixturePatternError is returned when a FixturePattern is not a
	// valid relative glob.
	InvalidFixturePatternError struct {
		Value  FixturePattern
		Reason string
	}
)

// String returns the revision, or DefaultRevision for the zero value.
func (r Revision) String() string {
	if r == "" {
		return string(DefaultRevision)
	}
	return string(r)
}

// OrDefault returns r, or DefaultRevision when r is empty.
func (r Revision) OrDefault() Revision {
	if r == "" {
		return DefaultRevision
	}
	return r
}

// IsCommitLike reports whether r looks like an abbreviated or full commit id.
// Such selectors cannot be passed to "git clone --branch".
func (r Revision) IsCommitLike() bool {
	return commitPattern.MatchString(string(r))
}

// Validate returns an error if the revision cannot be passed to git as a
// positional argument. The zero value is valid (it means DefaultRevision).
func (r Revision) Validate() error {
	s := string(r)
	switch {
	case s == "":
		return nil
	case strings.TrimSpace(s) == "":
		return &InvalidRevisionError{Value: r, Reason: "must not be whitespace-only"}
	case strings.HasPrefix(s, "-"):
		return &InvalidRevisionError{Value: r, Reason: "must not start with '-'"}
	case strings.ContainsAny(s, " \t\r\n"):
		return &InvalidRevisionError{Value: r, Reason: "must not contain whitespace"}
	case strings.Contains(s, ".."):
		return &InvalidRevisionError{Value: r, Reason: "ranges are not revision selectors"}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidRevisionError) Error() string {
	return fmt.Sprintf("invalid revision selector %q: %s", e.Value, e.Reason)
}

// Unwrap returns ErrInvalidRevision for errors.Is() compatibility.
func (e *InvalidRevisionError) Unwrap() error { return ErrInvalidRevision }

// String returns the string representation of the EnvironmentName.
func (n EnvironmentName) String() string { return string(n) }

// Validate returns an error if the name is empty, contains characters conda
// rejects, or is the reserved "base" environment.
func (n EnvironmentName) Validate() error {
	switch {
	case n == "":
		return &InvalidEnvironmentNameError{Value: n, Reason: "must be non-empty"}
	case n == "base":
		return &InvalidEnvironmentNameError{Value: n, Reason: "\"base\" is the package manager's own environment"}
	case !environmentNamePattern.MatchString(string(n)):
		return &InvalidEnvironmentNameError{Value: n, Reason: "only letters, digits, '.', '_' and '-' are allowed"}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidEnvironmentNameError) Error() string {
	return fmt.Sprintf("invalid environment name %q: %s", e.Value, e.Reason)
}

// Unwrap returns ErrInvalidEnvironmentName for errors.Is() compatibility.
func (e *InvalidEnvironmentNameError) Unwrap() error { return ErrInvalidEnvironmentName }

// String returns the string representation of the ProjectName.
func (n ProjectName) String() string { return string(n) }

// Validate returns an error if the name is not a lowercase identifier.
func (n ProjectName) Validate() error {
	if !projectNamePattern.MatchString(string(n)) {
		return &InvalidProjectNameError{Value: n}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidProjectNameError) Error() string {
	return fmt.Sprintf("invalid project name %q: must match %s", e.Value, projectNamePattern)
}

// Unwrap returns ErrInvalidProjectName for errors.Is() compatibility.
func (e *InvalidProjectNameError) Unwrap() error { return ErrInvalidProjectName }

// String returns the string representation of the RepositoryURL.
func (u RepositoryURL) String() string { return string(u) }

// Validate returns an error if the URL is not one of the supported forms.
func (u RepositoryURL) Validate() error {
	s := string(u)
	if strings.TrimSpace(s) == "" {
		return &InvalidRepositoryURLError{Value: u, Reason: "must be non-empty"}
	}
	if strings.HasPrefix(s, "-") {
		return &InvalidRepositoryURLError{Value: u, Reason: "must not start with '-'"}
	}
	if filepath.IsAbs(s) || scpLikeURLPattern.MatchString(s) {
		return nil
	}
	parsed, err := url.Parse(s)
	if err != nil {
		return &InvalidRepositoryURLError{Value: u, Reason: err.Error()}
	}
	switch parsed.Scheme {
	case "https", "http", "ssh", "git":
		if parsed.Host == "" {
			return &InvalidRepositoryURLError{Value: u, Reason: "missing host"}
		}
	case "file":
	default:
		return &InvalidRepositoryURLError{Value: u, Reason: fmt.Sprintf("unsupported scheme %q", parsed.Scheme)}
	}
	return nil
}

// GitHubRepository returns the owner and repository name when the URL points
// at github.com (https or scp-like form).
func (u RepositoryURL) GitHubRepository() (owner, repo string, ok bool) {
	s := string(u)
	var repoPath string
	switch {
	case strings.HasPrefix(s, "git@github.com:"):
		repoPath = strings.TrimPrefix(s, "git@github.com:")
	default:
		parsed, err := url.Parse(s)
		if err != nil || !strings.EqualFold(parsed.Host, "github.com") {
			return "", "", false
		}
		repoPath = strings.TrimPrefix(parsed.Path, "/")
	}
	repoPath = strings.TrimSuffix(strings.TrimSuffix(repoPath, "/"), ".git")
	parts := strings.Split(repoPath, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// Error implements the error interface.
func (e *InvalidRepositoryURLError) Error() string {
	return fmt.Sprintf("invalid repository URL %q: %s", e.Value, e.Reason)
}

// Unwrap returns ErrInvalidRepositoryURL for errors.Is() compatibility.
func (e *InvalidRepositoryURLError) Unwrap() error { return ErrInvalidRepositoryURL }

// String returns the string representation of the FixturePattern.
func (p FixturePattern) String() string { return string(p) }

// Validate returns an error if the pattern is absolute, escapes the checkout
// root, or is not a valid glob. The zero value is valid.
func (p FixturePattern) Validate() error {
	s := string(p)
	if s == "" {
		return nil
	}
	if path.IsAbs(s) || filepath.IsAbs(s) {
		return &InvalidFixturePatternError{Value: p, Reason: "must be relative to the checkout root"}
	}
	for _, seg := range strings.Split(filepath.ToSlash(s), "/") {
		if seg == ".." {
			return &InvalidFixturePatternError{Value: p, Reason: "must not contain '..'"}
		}
		if seg == "" || seg == "." {
			return &InvalidFixturePatternError{Value: p, Reason: "must not contain empty or '.' segments"}
		}
	}
	if _, err := path.Match(filepath.ToSlash(s), ""); err != nil {
		return &InvalidFixturePatternError{Value: p, Reason: err.Error()}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidFixturePatternError) Error() string {
	return fmt.Sprintf("invalid fixture pattern %q: %s", e.Value, e.Reason)
}

// Unwrap returns ErrInvalidFixturePattern for errors.Is() compatibility.
func (e *InvalidFixturePatternError) Unwrap() error { return ErrInvalidFixturePattern }
