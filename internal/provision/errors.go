// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"errors"
	"fmt"

	"github.com/invowk/envprov/pkg/recipe"
)

const (
	// CategoryPackageManager covers solver installation and configuration:
	// unreachable channels, missing packages, solver failures.
	CategoryPackageManager Category = "package-manager"
	// CategoryVCS covers clone and checkout: unreachable repositories and
	// unknown revisions.
	CategoryVCS Category = "version-control"
	// CategorySpecFile covers environment creation: malformed specification
	// files and unresolvable dependency sets.
	CategorySpecFile Category = "specification-file"
	// CategoryInstall covers editable installs: malformed project metadata.
	CategoryInstall Category = "installation"
	// CategoryFilesystem covers fixture pruning and the login hook.
	CategoryFilesystem Category = "filesystem"
	// CategoryConfig covers recipe validation and preflight.
	CategoryConfig Category = "configuration"
)

// ErrStepFailed is wrapped by every StepError.
var ErrStepFailed = errors.New("provisioning step failed")

type (
	// Category classifies a failure by the collaborator that caused it.
	Category string

	// StepError reports the step that aborted a run.
	StepError struct {
		Step     StepID
		Project  recipe.ProjectName
		Category Category
		Err      error
	}
)

// String returns the string representation of the Category.
func (c Category) String() string { return string(c) }

// Error implements the error interface.
func (e *StepError) Error() string {
	if e.Project != "" {
		return fmt.Sprintf("step %s (%s) failed [%s]: %v", e.Step, e.Project, e.Category, e.Err)
	}
	return fmt.Sprintf("step %s failed [%s]: %v", e.Step, e.Category, e.Err)
}

// Unwrap returns ErrStepFailed and the underlying cause.
func (e *StepError) Unwrap() []error { return []error{ErrStepFailed, e.Err} }

// CategoryOf returns the category of the step that produced err, or "" when
// err did not come from a step.
func CategoryOf(err error) Category {
	var se *StepError
	if errors.As(err, &se) {
		return se.Category
	}
	return ""
}
