// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"strconv"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// shellQuote quotes s for bash. Strings that need no quoting are returned
// unchanged.
func shellQuote(s string) string {
	q, err := syntax.Quote(s, syntax.LangBash)
	if err != nil {
		// Only strings with NUL bytes are rejected.
		return strconv.Quote(s)
	}
	return q
}

// shellJoin renders a command line with every word quoted.
func shellJoin(name string, args ...string) string {
	words := make([]string, 0, len(args)+1)
	words = append(words, shellQuote(name))
	for _, a := range args {
		words = append(words, shellQuote(a))
	}
	return strings.Join(words, " ")
}

// isShellSafeGlob reports whether pattern can appear unquoted in a shell
// command without expanding to anything but a filename glob.
func isShellSafeGlob(pattern string) bool {
	if pattern == "" {
		return false
	}
	for _, r := range pattern {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune("._-/*?[]", r):
		default:
			return false
		}
	}
	return true
}
