// SPDX-License-Identifier: MPL-2.0

// Package preflight resolves every project's revision selector to a commit
// before provisioning mutates anything, so an unknown branch, tag or commit
// aborts the run ahead of the solver install and environment creation.
//
// Projects hosted on github.com are resolved through the GitHub API; every
// other repository (and any GitHub lookup that fails for reasons other than
// a missing revision) is resolved with "git ls-remote".
package preflight
