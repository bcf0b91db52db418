// SPDX-License-Identifier: MPL-2.0

package tooling

import (
	"errors"
	"slices"
	"testing"

	"github.com/spf13/afero"
)

const weatherEnvironment = `name: weather-tools
channels:
  - conda-forge
dependencies:
  - python=3.8.13
  - apache-beam=2.40.0
  - pip=22.3
  - pip:
    - earthengine-api==0.1.329
    - firebase-admin==6.0.1
`

func TestParseEnvironmentFile(t *testing.T) {
	t.Parallel()

	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/weather/environment.yml", []byte(weatherEnvironment), 0o644); err != nil {
		t.Fatal(err)
	}

	env, err := ParseEnvironmentFile(fs, "/weather/environment.yml")
	if err != nil {
		t.Fatalf("ParseEnvironmentFile() = %v", err)
	}
	if env.Name != "weather-tools" || !slices.Equal(env.Channels, []string{"conda-forge"}) {
		t.Errorf("header = %q %v", env.Name, env.Channels)
	}
	if got := env.CondaSpecs(); len(got) != 3 || got[0] != "python=3.8.13" {
		t.Errorf("CondaSpecs() = %v", got)
	}
	if got := env.PipRequirements(); len(got) != 2 || got[1] != "firebase-admin==6.0.1" {
		t.Errorf("PipRequirements() = %v", got)
	}
}

func TestParseEnvironment_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
	}{
		{"malformed yaml", "dependencies: [python\n"},
		{"no dependencies", "name: x\n"},
		{"only pip", "dependencies:\n  - pip:\n    - requests\n"},
		{"unknown nested key", "dependencies:\n  - python\n  - npm:\n    - left-pad\n"},
		{"nested list", "dependencies:\n  - [python]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParseEnvironment([]byte(tt.data), "environment.yml")
			if !errors.Is(err, ErrInvalidEnvironmentFile) {
				t.Errorf("ParseEnvironment() = %v, want ErrInvalidEnvironmentFile", err)
			}
		})
	}
}

func TestParseEnvironmentFile_Missing(t *testing.T) {
	t.Parallel()

	_, err := ParseEnvironmentFile(afero.NewMemMapFs(), "/weather/environment.yml")
	if !errors.Is(err, ErrInvalidEnvironmentFile) {
		t.Errorf("missing file error = %v", err)
	}
}
