// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/spf13/afero"

	"github.com/invowk/envprov/internal/config"
	"github.com/invowk/envprov/internal/container"
	"github.com/invowk/envprov/internal/preflight"
	"github.com/invowk/envprov/internal/tooling"
	"github.com/invowk/envprov/pkg/platform"
)

type (
	// App wires CLI services and shared dependencies. It is the composition root for
	// the CLI layer; every Cobra command handler receives an App reference.
	App struct {
		Config      ConfigProvider
		ExecCommand tooling.ExecCommandFunc
		Environ     func() []string
		FS          afero.Fs
		NewEngine   EngineFactory
		Resolver    preflight.Resolver
		Now         func() time.Time
		stdout      io.Writer
		stderr      io.Writer

		// sandbox is set when envprov itself runs inside Flatpak or Snap.
		sandbox platform.SandboxType

		// buildContextParent overrides where image builds stage their context.
		buildContextParent string

		// Populated by the root command before any subcommand runs.
		opts globalOptions
		cfg  *config.Config
	}

	// Dependencies defines the injection points for building an App. Nil fields are
	// replaced with production defaults by NewApp. Tests supply a command recorder
	// and an in-memory filesystem to run commands without touching the host.
	Dependencies struct {
		Config      ConfigProvider
		ExecCommand tooling.ExecCommandFunc
		Environ     func() []string
		FS          afero.Fs
		NewEngine   EngineFactory
		// Resolver replaces the GitHub/git preflight resolver.
		Resolver preflight.Resolver
		Now      func() time.Time
		Stdout   io.Writer
		Stderr   io.Writer
	}

	// ConfigProvider loads configuration using explicit options.
	// This abstraction enables testing with custom config sources or mock implementations.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Config, error)
	}

	// EngineFactory returns the container engine for image builds.
	EngineFactory func(engineType container.EngineType) (container.Engine, error)

	// globalOptions holds the persistent root flags.
	globalOptions struct {
		configFile string
		recipeFile string
		verbose    bool
		logFormat  string
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Environ == nil {
		deps.Environ = os.Environ
	}
	if deps.FS == nil {
		deps.FS = afero.NewOsFs()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewEngine == nil {
		execCommand := deps.ExecCommand
		deps.NewEngine = func(engineType container.EngineType) (container.Engine, error) {
			var opts []container.BaseCLIEngineOption
			if execCommand != nil {
				opts = append(opts, container.WithExecCommand(container.ExecCommandFunc(execCommand)))
			}
			return container.NewEngine(engineType, opts...)
		}
	}

	return &App{
		Config:      deps.Config,
		ExecCommand: deps.ExecCommand,
		Environ:     deps.Environ,
		FS:          deps.FS,
		NewEngine:   deps.NewEngine,
		Resolver:    deps.Resolver,
		Now:         deps.Now,
		stdout:      deps.Stdout,
		stderr:      deps.Stderr,
		sandbox:     platform.DetectSandbox(),
	}
}

// loadedConfig returns the configuration loaded by the root command, or the
// defaults when a command runs without it (tests invoking handlers directly).
func (a *App) loadedConfig() *config.Config {
	if a.cfg == nil {
		return config.DefaultConfig()
	}
	return a.cfg
}

// toolOptions returns the options shared by every tool client. environ is
// the provisioning state's environment, so search-path changes reach every
// later command.
func (a *App) toolOptions(environ func() []string) []tooling.Option {
	opts := []tooling.Option{
		tooling.WithEnviron(environ),
		tooling.WithOutput(a.stdout, a.stderr),
		tooling.WithTTY(a.loadedConfig().Provision.StreamTTY),
		tooling.WithSandbox(a.sandbox),
	}
	if a.ExecCommand != nil {
		opts = append(opts, tooling.WithExecCommand(a.ExecCommand))
	}
	return opts
}
