// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	// ErrInvalidFilesystemPath is the sentinel error wrapped by InvalidFilesystemPathError.
	ErrInvalidFilesystemPath = errors.New("invalid filesystem path")

	// ErrRelativeFilesystemPath is returned by ValidateAbsolute for relative paths.
	ErrRelativeFilesystemPath = errors.New("filesystem path must be absolute")
)

type (
	// FilesystemPath represents an absolute or relative filesystem path.
	// A valid path must be non-empty and not whitespace-only.
	// The zero value ("") is invalid: a path must always point somewhere.
	FilesystemPath string

	// InvalidFilesystemPathError is returned when a FilesystemPath value is
	// empty, whitespace-only, or (for ValidateAbsolute) relative.
	InvalidFilesystemPathError struct {
		Value  FilesystemPath
		Reason error
	}
)

// String returns the string representation of the FilesystemPath.
func (p FilesystemPath) String() string { return string(p) }

// Validate returns an error if the path is empty or whitespace-only.
func (p FilesystemPath) Validate() error {
	if strings.TrimSpace(string(p)) == "" {
		return &InvalidFilesystemPathError{Value: p}
	}
	return nil
}

// ValidateAbsolute is Validate plus a check that the path is absolute.
// Checkout directories and login scripts are always addressed absolutely
// because provisioning changes the working directory between steps.
func (p FilesystemPath) ValidateAbsolute() error {
	if err := p.Validate(); err != nil {
		return err
	}
	if !filepath.IsAbs(string(p)) {
		return &InvalidFilesystemPathError{Value: p, Reason: ErrRelativeFilesystemPath}
	}
	return nil
}

// Join appends path elements to the path.
func (p FilesystemPath) Join(elem ...string) FilesystemPath {
	return FilesystemPath(filepath.Join(append([]string{string(p)}, elem...)...))
}

// Error implements the error interface for InvalidFilesystemPathError.
func (e *InvalidFilesystemPathError) Error() string {
	if e.Reason != nil {
		return fmt.Sprintf("invalid filesystem path %q: %v", e.Value, e.Reason)
	}
	return fmt.Sprintf("invalid filesystem path %q: must be non-empty", e.Value)
}

// Unwrap returns ErrInvalidFilesystemPath for errors.Is() compatibility, and the
// specific reason when one is set.
func (e *InvalidFilesystemPathError) Unwrap() []error {
	if e.Reason != nil {
		return []error{ErrInvalidFilesystemPath, e.Reason}
	}
	return []error{ErrInvalidFilesystemPath}
}
