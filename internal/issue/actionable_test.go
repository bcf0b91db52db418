// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestActionableError_Error(t *testing.T) {
	t.Parallel()

	cause := errors.New("exit status 128")
	tests := []struct {
		name string
		err  *ActionableError
		want string
	}{
		{"operation only", &ActionableError{Operation: "provision environment"}, "failed to provision environment"},
		{"with resource", &ActionableError{Operation: "resolve revision", Resource: "arco-era5@v1"}, "failed to resolve revision: arco-era5@v1"},
		{"with cause", &ActionableError{Operation: "clone project", Cause: cause}, "failed to clone project: exit status 128"},
		{
			"everything",
			&ActionableError{Operation: "clone project", Resource: "weather-tools", Cause: cause},
			"failed to clone project: weather-tools: exit status 128",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestActionableError_Unwrap(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("solver failed")
	err := error(&ActionableError{Operation: "create environment", Cause: fmt.Errorf("conda: %w", sentinel)})
	if !errors.Is(err, sentinel) {
		t.Error("errors.Is does not reach the wrapped sentinel")
	}
	if (&ActionableError{Operation: "x"}).Unwrap() != nil {
		t.Error("Unwrap() without cause != nil")
	}
}

func TestActionableError_Format(t *testing.T) {
	t.Parallel()

	root := errors.New("ResolvePackageNotFound")
	err := &ActionableError{
		Operation:   "create environment",
		Resource:    "weather-tools",
		Suggestions: []string{"Check environment.yml", "Retry with --skip-preflight"},
		Cause:       fmt.Errorf("conda env create: %w", root),
	}

	plain := err.Format(false)
	for _, want := range []string{
		"failed to create environment: weather-tools",
		"\n\n  • Check environment.yml",
		"\n  • Retry with --skip-preflight",
	} {
		if !strings.Contains(plain, want) {
			t.Errorf("Format(false) missing %q:\n%s", want, plain)
		}
	}
	if strings.Contains(plain, "Error chain") {
		t.Errorf("Format(false) includes the chain:\n%s", plain)
	}

	verbose := err.Format(true)
	for _, want := range []string{
		"Error chain:",
		"  1. conda env create: ResolvePackageNotFound",
		"  2. ResolvePackageNotFound",
	} {
		if !strings.Contains(verbose, want) {
			t.Errorf("Format(true) missing %q:\n%s", want, verbose)
		}
	}

	bare := (&ActionableError{Operation: "write receipt"}).Format(true)
	if bare != "failed to write receipt" {
		t.Errorf("Format(true) without extras = %q", bare)
	}
}

func TestErrorContext_Build(t *testing.T) {
	t.Parallel()

	if NewErrorContext().WithResource("r").Build() != nil {
		t.Error("Build() without operation != nil")
	}
	if err := NewErrorContext().BuildError(); err != nil {
		t.Errorf("BuildError() without operation = %v, want untyped nil", err)
	}

	cause := errors.New("boom")
	ae := NewErrorContext().
		WithOperation("build image").
		WithResource("envprov:abc123").
		WithSuggestion("Is the engine running?").
		WithSuggestions("Try --engine docker", "Try --no-cache").
		Wrap(cause).
		Build()
	if ae.Operation != "build image" || ae.Resource != "envprov:abc123" || ae.Cause != cause {
		t.Errorf("Build() = %+v", ae)
	}
	if len(ae.Suggestions) != 3 || !ae.HasSuggestions() {
		t.Errorf("suggestions = %v", ae.Suggestions)
	}

	var target *ActionableError
	if err := NewErrorContext().WithOperation("x").BuildError(); !errors.As(err, &target) {
		t.Errorf("BuildError() = %T, want *ActionableError", err)
	}
}

func TestErrorContext_Reuse(t *testing.T) {
	t.Parallel()

	ctx := NewErrorContext().WithOperation("verify project").WithSuggestion("Re-run provision")
	first := ctx.Wrap(errors.New("checkout missing")).Build()
	ctx.WithSuggestion("Inspect the receipt")
	second := ctx.Wrap(errors.New("commit mismatch")).Build()

	if first.Cause.Error() == second.Cause.Error() {
		t.Error("reused context kept the first cause")
	}
	if len(first.Suggestions) != 1 {
		t.Errorf("first error suggestions changed after reuse: %v", first.Suggestions)
	}
	if len(second.Suggestions) != 2 {
		t.Errorf("second error suggestions = %v", second.Suggestions)
	}
}
