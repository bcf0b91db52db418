// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"
)

func TestFormatError(t *testing.T) {
	t.Parallel()

	t.Run("nil error returns nil", func(t *testing.T) {
		t.Parallel()

		if err := FormatError(nil, "recipe.cue"); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})

	t.Run("non-CUE error is wrapped with filepath", func(t *testing.T) {
		t.Parallel()

		originalErr := errors.New("some error")
		err := FormatError(originalErr, "recipe.cue")
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "recipe.cue") || !strings.Contains(err.Error(), "some error") {
			t.Errorf("unexpected message: %v", err)
		}
		if !errors.Is(err, originalErr) {
			t.Error("FormatError should wrap non-CUE errors")
		}
	})

	t.Run("wrapped sentinel stays reachable", func(t *testing.T) {
		t.Parallel()

		err := FormatError(fmt.Errorf("read recipe: %w", fs.ErrNotExist), "recipe.cue")
		if !errors.Is(err, fs.ErrNotExist) {
			t.Errorf("FormatError() = %v, lost fs.ErrNotExist", err)
		}
		if err.Error() != "recipe.cue: read recipe: file does not exist" {
			t.Errorf("FormatError() = %q", err.Error())
		}
	})
}

func TestFormatPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		path     []string
		expected string
	}{
		{name: "empty path", path: nil, expected: ""},
		{name: "single element", path: []string{"solver"}, expected: "solver"},
		{name: "nested path", path: []string{"environment", "name"}, expected: "environment.name"},
		{name: "array index", path: []string{"projects", "1", "revision"}, expected: "projects[1].revision"},
		{name: "leading numeric is not an index", path: []string{"0", "name"}, expected: "0.name"},
		{name: "trailing index", path: []string{"projects", "0"}, expected: "projects[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := formatPath(tt.path); got != tt.expected {
				t.Errorf("formatPath(%v) = %q, want %q", tt.path, got, tt.expected)
			}
		})
	}
}

func TestCheckFileSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		size    int
		max     int64
		wantErr bool
	}{
		{"within limit", 11, 100, false},
		{"exact limit", 100, 100, false},
		{"exceeds limit", 101, 100, true},
		{"empty", 0, 100, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := CheckFileSize(make([]byte, tt.size), tt.max, "recipe.cue")
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckFileSize() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !strings.Contains(err.Error(), "recipe.cue") {
				t.Errorf("error should contain filename, got: %v", err)
			}
		})
	}
}
