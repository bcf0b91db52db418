// SPDX-License-Identifier: MPL-2.0

package container

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/invowk/envprov/internal/issue"
	"github.com/invowk/envprov/internal/testutil"
)

func TestHelperProcess(t *testing.T) { testutil.RunHelperProcess() }

func newTestEngines(rec *testutil.CommandRecorder) []Engine {
	opts := func(bin string) []BaseCLIEngineOption {
		return []BaseCLIEngineOption{
			WithBinaryPath(bin),
			WithExecCommand(rec.ExecCommand),
			WithBuildRetry(2, time.Millisecond),
		}
	}
	return []Engine{
		NewPodmanEngine(opts("podman")...),
		NewDockerEngine(opts("docker")...),
	}
}

func TestBuildArgs(t *testing.T) {
	t.Parallel()

	e := NewBaseCLIEngine("docker")
	got := e.BuildArgs(BuildOptions{
		ContextDir: "/ctx",
		Dockerfile: "Dockerfile",
		Tag:        "envprov-weather-tools:abc",
		NoCache:    true,
		BuildArgs:  map[string]string{"weather_tools_git_rev": "v1", "CONDA_ENV_NAME": "wx"},
	})
	want := []string{
		"build", "-f", "/ctx/Dockerfile", "-t", "envprov-weather-tools:abc", "--no-cache",
		"--build-arg", "CONDA_ENV_NAME=wx",
		"--build-arg", "weather_tools_git_rev=v1",
		"/ctx",
	}
	if !slices.Equal(got, want) {
		t.Errorf("BuildArgs() = %v, want %v", got, want)
	}
}

func TestBuildOptions_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		opts    BuildOptions
		wantErr error
	}{
		{"valid", BuildOptions{ContextDir: "/ctx", Tag: "a:b"}, nil},
		{"missing context", BuildOptions{Tag: "a:b"}, ErrInvalidBuildOptions},
		{"missing tag", BuildOptions{ContextDir: "/ctx"}, ErrInvalidImageTag},
		{"tag with space", BuildOptions{ContextDir: "/ctx", Tag: "a b"}, ErrInvalidImageTag},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.opts.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEngine_Build(t *testing.T) {
	t.Parallel()

	for i, name := range []string{"podman", "docker"} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			rec := testutil.NewCommandRecorder()
			rec.On(name, "build").Print("STEP 1/12: FROM continuumio/miniconda3:latest\n")
			engine := newTestEngines(rec)[i]

			var out bytes.Buffer
			err := engine.Build(context.Background(), BuildOptions{
				ContextDir: "/ctx",
				Dockerfile: "Dockerfile",
				Tag:        "envprov-weather-tools:abc",
				Stdout:     &out,
			})
			if err != nil {
				t.Fatalf("Build() = %v", err)
			}
			rec.AssertCommands(t, name+" build -f /ctx/Dockerfile -t envprov-weather-tools:abc /ctx")
			if !strings.Contains(out.String(), "FROM continuumio/miniconda3") {
				t.Errorf("build output not streamed: %q", out.String())
			}
		})
	}
}

func TestEngine_BuildRetriesTransientFailure(t *testing.T) {
	t.Parallel()

	rec := testutil.NewCommandRecorder()
	rec.On("podman", "build").Fail(125, "Error: OCI runtime error: crun: setns failed")
	engine := newTestEngines(rec)[0]

	var stderr bytes.Buffer
	err := engine.Build(context.Background(), BuildOptions{ContextDir: "/ctx", Tag: "t:1", Stderr: &stderr})
	if err == nil {
		t.Fatal("Build() = nil, want error")
	}
	if got := len(rec.Commands()); got != 2 {
		t.Errorf("build ran %d times, want 2", got)
	}
	if !strings.Contains(stderr.String(), "retrying") {
		t.Errorf("retry notice missing from stderr: %q", stderr.String())
	}

	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		t.Fatalf("Build() error %T is not actionable", err)
	}
	if !ae.HasSuggestions() {
		t.Error("build error has no suggestions")
	}
}

func TestEngine_BuildPermanentFailureRunsOnce(t *testing.T) {
	t.Parallel()

	rec := testutil.NewCommandRecorder()
	rec.On("docker", "build").Fail(1, "ERROR: failed to solve: process \"/bin/sh -c git checkout \\\"${weather_tools_git_rev}\\\"\" did not complete successfully")
	engine := newTestEngines(rec)[1]

	err := engine.Build(context.Background(), BuildOptions{ContextDir: "/ctx", Tag: "t:1"})
	if err == nil {
		t.Fatal("Build() = nil, want error")
	}
	if got := len(rec.Commands()); got != 1 {
		t.Errorf("build ran %d times, want 1", got)
	}
	if !strings.Contains(err.Error(), "did not complete successfully") {
		t.Errorf("error lacks engine diagnostics: %v", err)
	}
}

func TestEngine_ImageExists(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		engine  int
		tool    string
		code    int
		want    bool
		wantErr bool
		command string
	}{
		{"podman present", 0, "podman", 0, true, false, "podman image exists envprov:x"},
		{"podman absent", 0, "podman", 1, false, false, "podman image exists envprov:x"},
		{"podman broken", 0, "podman", 125, false, true, "podman image exists envprov:x"},
		{"docker present", 1, "docker", 0, true, false, "docker image inspect --format {{.Id}} envprov:x"},
		{"docker absent", 1, "docker", 1, false, false, "docker image inspect --format {{.Id}} envprov:x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := testutil.NewCommandRecorder()
			if tt.code != 0 {
				rec.On(tt.tool, "image").Fail(tt.code, "no such image")
			}
			engine := newTestEngines(rec)[tt.engine]

			got, err := engine.ImageExists(context.Background(), "envprov:x")
			if (err != nil) != tt.wantErr {
				t.Fatalf("ImageExists() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ImageExists() = %v, want %v", got, tt.want)
			}
			rec.AssertCommands(t, tt.command)
		})
	}
}

func TestEngine_RemoveImageAndVersion(t *testing.T) {
	t.Parallel()

	rec := testutil.NewCommandRecorder()
	rec.On("podman", "version").Print("5.2.1\n")
	engine := newTestEngines(rec)[0]
	ctx := context.Background()

	if err := engine.RemoveImage(ctx, "envprov:x", true); err != nil {
		t.Fatalf("RemoveImage() = %v", err)
	}
	v, err := engine.Version(ctx)
	if err != nil {
		t.Fatalf("Version() = %v", err)
	}
	if v != "5.2.1" {
		t.Errorf("Version() = %q, want 5.2.1", v)
	}
	rec.AssertCommands(t,
		"podman rmi -f envprov:x",
		"podman version --format {{.Version}}",
	)
}

func TestEngine_CmdEnvOverride(t *testing.T) {
	t.Parallel()

	rec := testutil.NewCommandRecorder()
	engine := NewPodmanEngine(
		WithBinaryPath("podman"),
		WithExecCommand(rec.ExecCommand),
		WithCmdEnvOverride("BUILDAH_FORMAT", "docker"),
	)
	if err := engine.RemoveImage(context.Background(), "x:y", false); err != nil {
		t.Fatalf("RemoveImage() = %v", err)
	}
	inv := rec.Invocations()[0]
	if !slices.Contains(inv.Cmd.Env, "BUILDAH_FORMAT=docker") {
		t.Errorf("override missing from env: %v", inv.Cmd.Env)
	}
}

func TestEngine_AvailableWithoutBinary(t *testing.T) {
	t.Parallel()

	for _, e := range []Engine{
		NewPodmanEngine(WithBinaryPath("")),
		NewDockerEngine(WithBinaryPath("")),
	} {
		if e.Available() {
			t.Errorf("%s.Available() = true without a binary", e.Name())
		}
	}
}

func TestNewEngine_InvalidType(t *testing.T) {
	t.Parallel()

	_, err := NewEngine("lxc")
	if !errors.Is(err, ErrInvalidEngineType) {
		t.Fatalf("NewEngine(lxc) = %v, want ErrInvalidEngineType", err)
	}
}

func TestEngineType_Validate(t *testing.T) {
	t.Parallel()

	for _, valid := range []EngineType{"", EngineTypeAuto, EngineTypeDocker, EngineTypePodman} {
		if err := valid.Validate(); err != nil {
			t.Errorf("%q.Validate() = %v", valid, err)
		}
	}
	if err := EngineType("containerd").Validate(); !errors.Is(err, ErrInvalidEngineType) {
		t.Errorf("containerd.Validate() = %v, want ErrInvalidEngineType", err)
	}
}

func TestResolveDockerfilePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		context    string
		dockerfile string
		want       string
		wantErr    bool
	}{
		{"empty", "/ctx", "", "", false},
		{"relative", "/ctx", "Dockerfile", "/ctx/Dockerfile", false},
		{"nested", "/ctx", "build/Dockerfile", "/ctx/build/Dockerfile", false},
		{"absolute", "/ctx", "/other/Dockerfile", "/other/Dockerfile", false},
		{"escape", "/ctx", "../Dockerfile", "", true},
		{"sibling prefix", "/ctx", "../ctx2/Dockerfile", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ResolveDockerfilePath(tt.context, tt.dockerfile)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ResolveDockerfilePath() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ResolveDockerfilePath() = %q, want %q", got, tt.want)
			}
		})
	}
}
