// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"testing"

	"github.com/spf13/afero"

	"github.com/invowk/envprov/internal/testutil"
	"github.com/invowk/envprov/internal/tooling"
	"github.com/invowk/envprov/pkg/recipe"
)

const (
	weatherHead = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"
	envListJSON = `{"envs": ["/opt/conda", "/opt/conda/envs/weather-tools"]}`
	environment = `name: weather-tools
channels:
  - conda-forge
dependencies:
  - python=3.9
  - pip
  - pip:
      - apache-beam[gcp]
`
)

func TestHelperProcess(t *testing.T) { testutil.RunHelperProcess() }

type fixture struct {
	rec    *testutil.CommandRecorder
	fs     afero.Fs
	state  *State
	recipe *recipe.Recipe
	tools  *Tools
}

// newFixture returns the default recipe with an absolute login script, a
// memory filesystem holding both checkouts, and tools wired to a recorder.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	r := recipe.Default()
	r.Environment.LoginScript = "/home/tester/.bashrc"

	fs := afero.NewMemMapFs()
	mustWrite(t, fs, "/weather/environment.yml", environment)
	mustWrite(t, fs, "/weather/weather_mv/test_data/era5.nc", "x")
	mustWrite(t, fs, "/weather/weather_dl/test_data/sample.grib", "x")
	mustWrite(t, fs, "/weather/weather_mv/loader_pipeline/__init__.py", "")
	mustWrite(t, fs, "/arco-era5/setup.py", "")

	rec := testutil.NewCommandRecorder()
	rec.On("git", "rev-parse").Print(weatherHead + "\n")
	rec.On("conda", "env", "list", "--json").Print(envListJSON)

	state := NewState([]string{"PATH=/usr/bin:/bin", "HOME=/home/tester"})
	opts := []tooling.Option{
		tooling.WithExecCommand(rec.ExecCommand),
		tooling.WithEnviron(state.Environ),
		tooling.WithOutput(nil, nil),
	}
	return &fixture{
		rec:    rec,
		fs:     fs,
		state:  state,
		recipe: r,
		tools: &Tools{
			Git:            tooling.NewGit(opts...),
			PackageManager: tooling.NewPackageManagerFlavor(tooling.FlavorConda, opts...),
			Pip:            tooling.NewPip(opts...),
			FS:             fs,
		},
	}
}

func (f *fixture) plan(t *testing.T) *Plan {
	t.Helper()
	plan, err := NewPlan(f.recipe, f.tools)
	if err != nil {
		t.Fatalf("NewPlan() = %v", err)
	}
	return plan
}

func mustWrite(t *testing.T, fs afero.Fs, name, content string) {
	t.Helper()
	if err := afero.WriteFile(fs, name, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s) = %v", name, err)
	}
}
