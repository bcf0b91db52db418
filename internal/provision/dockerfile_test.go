// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"strings"
	"testing"

	"github.com/invowk/envprov/internal/tooling"
)

const wantDefaultDockerfile = `FROM continuumio/miniconda3:latest

ARG weather_tools_git_rev=main
ARG CONDA_ENV_NAME=weather-tools
ARG arco_era5_git_rev=main

# install-solver
RUN conda install -n base -y conda-libmamba-solver

# set-solver
RUN conda config --set solver libmamba

# clone (weather-tools)
RUN git clone -- https://github.com/google/weather-tools.git /weather

# checkout (weather-tools)
WORKDIR /weather
RUN git checkout "${weather_tools_git_rev}"

# prune-fixtures (weather-tools)
RUN rm -rf -- /weather/weather_*/test_data

# create-env (weather-tools)
RUN conda env create -n ${CONDA_ENV_NAME} -f /weather/environment.yml

# login-hook
RUN echo "source activate ${CONDA_ENV_NAME}" >> ~/.bashrc

# search-path
ENV PATH=/opt/conda/envs/${CONDA_ENV_NAME}/bin:$PATH

# install-editable (weather-tools)
RUN pip install -e /weather

# clone (arco-era5)
RUN git clone -- https://github.com/google-research/arco-era5.git /arco-era5

# checkout (arco-era5)
WORKDIR /arco-era5
RUN git checkout "${arco_era5_git_rev}"

# prune-fixtures (arco-era5)
RUN rm -rf -- /arco-era5/weather_*/test_data

# install-editable (arco-era5)
RUN pip install -e /arco-era5
`

func TestRenderDockerfile_Default(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.recipe.Environment.LoginScript = "~/.bashrc"

	got, err := RenderDockerfile(f.plan(t), DefaultRenderConfig())
	if err != nil {
		t.Fatalf("RenderDockerfile() = %v", err)
	}
	if got != wantDefaultDockerfile {
		t.Errorf("RenderDockerfile() =\n%s\nwant\n%s", got, wantDefaultDockerfile)
	}
}

func TestRenderDockerfile_Parameters(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.recipe.Projects[0].Revision = "v0.2.1"
	f.recipe.Projects[1].Revision = "4b825dc642cb"
	f.recipe.Environment.Name = "wx"

	got, err := RenderDockerfile(f.plan(t), RenderConfig{CondaRoot: "/opt/miniforge"})
	if err != nil {
		t.Fatalf("RenderDockerfile() = %v", err)
	}
	for _, want := range []string{
		"ARG weather_tools_git_rev=v0.2.1\n",
		"ARG CONDA_ENV_NAME=wx\n",
		"ARG arco_era5_git_rev=4b825dc642cb\n",
		"ENV PATH=/opt/miniforge/envs/${CONDA_ENV_NAME}/bin:$PATH\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Dockerfile missing %q", want)
		}
	}

	args := BuildArgs(f.plan(t))
	if args["CONDA_ENV_NAME"] != "wx" || args["arco_era5_git_rev"] != "4b825dc642cb" || len(args) != 3 {
		t.Errorf("BuildArgs() = %v", args)
	}
}

func TestRenderDockerfile_NonCondaSkipsSolverConfig(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.tools.PackageManager = tooling.NewPackageManagerFlavor(tooling.FlavorMamba, tooling.WithExecCommand(f.rec.ExecCommand))

	got, err := RenderDockerfile(f.plan(t), DefaultRenderConfig())
	if err != nil {
		t.Fatalf("RenderDockerfile() = %v", err)
	}
	if strings.Contains(got, "config --set solver") {
		t.Error("solver configuration rendered for mamba")
	}
	if !strings.Contains(got, "RUN mamba env create") {
		t.Errorf("environment not created with mamba:\n%s", got)
	}
}

func TestRenderDockerfile_UnsafeFixturePattern(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.recipe.Projects[0].FixturePattern = "weather_{mv,dl}/test_data"

	if _, err := RenderDockerfile(f.plan(t), DefaultRenderConfig()); err == nil {
		t.Error("RenderDockerfile() = nil, want error for brace pattern")
	}
}

func TestRenderDockerfile_ProjectWithoutFixturePattern(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.recipe.Projects[1].FixturePattern = ""

	got, err := RenderDockerfile(f.plan(t), DefaultRenderConfig())
	if err != nil {
		t.Fatalf("RenderDockerfile() = %v", err)
	}
	if strings.Contains(got, "# prune-fixtures (arco-era5)") || strings.Contains(got, "rm -rf -- /arco-era5") {
		t.Errorf("pruning rendered for a project without a pattern:\n%s", got)
	}
	if !strings.Contains(got, "RUN rm -rf -- /weather/weather_*/test_data") {
		t.Errorf("first project pruning missing:\n%s", got)
	}
}
