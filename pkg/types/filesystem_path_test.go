// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"testing"
)

func TestFilesystemPath_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		path    FilesystemPath
		wantErr bool
	}{
		{"absolute path", FilesystemPath("/weather"), false},
		{"relative path", FilesystemPath("environment.yml"), false},
		{"path with spaces", FilesystemPath("/path/to/my file.txt"), false},
		{"dot path", FilesystemPath("."), false},
		{"empty is invalid", FilesystemPath(""), true},
		{"whitespace only is invalid", FilesystemPath("   "), true},
		{"tab only is invalid", FilesystemPath("\t"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.path.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("FilesystemPath(%q).Validate() error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidFilesystemPath) {
				t.Errorf("error does not wrap ErrInvalidFilesystemPath: %v", err)
			}
		})
	}
}

func TestFilesystemPath_ValidateAbsolute(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		path         FilesystemPath
		wantErr      bool
		wantRelative bool
	}{
		{"absolute", "/arco-era5", false, false},
		{"relative", "arco-era5", true, true},
		{"empty", "", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.path.ValidateAbsolute()
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateAbsolute(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
			if got := errors.Is(err, ErrRelativeFilesystemPath); got != tt.wantRelative {
				t.Errorf("errors.Is(err, ErrRelativeFilesystemPath) = %v, want %v", got, tt.wantRelative)
			}
		})
	}
}

func TestFilesystemPath_Join(t *testing.T) {
	t.Parallel()

	got := FilesystemPath("/weather").Join("weather_dl", "test_data")
	if got != "/weather/weather_dl/test_data" {
		t.Errorf("Join() = %q", got)
	}
}
