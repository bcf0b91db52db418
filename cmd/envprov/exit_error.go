// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/invowk/envprov/pkg/types"
)

// ExitError carries the process exit code from a RunE handler up to Execute.
// Step, engine and verification failures exit 1; bad flags, recipes and
// config files exit 2.
type ExitError struct {
	Code types.ExitCode
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

func usageError(err error) error {
	return &ExitError{Code: types.ExitUsage, Err: err}
}

func failureError(err error) error {
	return &ExitError{Code: types.ExitFailure, Err: err}
}

// exitCodeOf returns the code of the outermost ExitError in err's chain.
// Any other error exits 1.
func exitCodeOf(err error) types.ExitCode {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return types.ExitFailure
}
