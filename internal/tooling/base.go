// SPDX-License-Identifier: MPL-2.0

package tooling

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"

	"github.com/invowk/envprov/pkg/platform"
	"github.com/invowk/envprov/pkg/types"
)

// stderrTailSize bounds the stderr kept on a CommandError. The full stream
// still reaches the configured writer.
const stderrTailSize = 4096

// ErrToolNotFound is returned when a tool binary cannot be resolved.
var ErrToolNotFound = errors.New("tool not found")

type (
	// ExecCommandFunc is the function signature for creating exec.Cmd.
	// Tests inject a recorder instead of exec.CommandContext.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// EnvironFunc returns the environment for the next command. The
	// provisioner passes its State so that search-path changes made by one
	// step are seen by every later tool invocation.
	EnvironFunc func() []string

	// Option configures a BaseCLITool.
	Option func(*BaseCLITool)

	// BaseCLITool holds what every tool client shares.
	BaseCLITool struct {
		name         string
		binary       string
		execCommand  ExecCommandFunc
		environ      EnvironFunc
		envOverrides map[string]string
		stdout       io.Writer
		stderr       io.Writer
		tty          bool
		sandbox      platform.SandboxType
	}

	// CommandError is returned when a tool exits non-zero or cannot start.
	CommandError struct {
		Tool     string
		Args     []string
		ExitCode types.ExitCode
		// Stderr holds the tail of the tool's diagnostic output.
		Stderr string
		Err    error
	}

	// tailBuffer keeps the last stderrTailSize bytes written to it.
	tailBuffer struct {
		buf []byte
	}
)

// WithExecCommand sets a custom exec command function for testing.
func WithExecCommand(fn ExecCommandFunc) Option {
	return func(t *BaseCLITool) {
		t.execCommand = fn
	}
}

// WithEnviron sets the environment source for every command.
func WithEnviron(fn EnvironFunc) Option {
	return func(t *BaseCLITool) {
		t.environ = fn
	}
}

// WithEnvOverride adds an environment variable applied to every command,
// after the EnvironFunc values.
func WithEnvOverride(key, value string) Option {
	return func(t *BaseCLITool) {
		if t.envOverrides == nil {
			t.envOverrides = make(map[string]string)
		}
		t.envOverrides[key] = value
	}
}

// WithOutput sets where streamed tool output goes. Nil writers discard.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(t *BaseCLITool) {
		t.stdout = orDiscard(stdout)
		t.stderr = orDiscard(stderr)
	}
}

func orDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}

// WithTTY runs streamed commands attached to a pseudo-terminal so tools keep
// their progress bars. Stdout and stderr are merged into the stdout writer.
func WithTTY(enabled bool) Option {
	return func(t *BaseCLITool) {
		t.tty = enabled
	}
}

// WithBinary overrides the executable name or path.
func WithBinary(binary string) Option {
	return func(t *BaseCLITool) {
		t.binary = binary
	}
}

// WithSandbox runs commands on the host through the sandbox's spawner
// (flatpak-spawn --host inside Flatpak). The host resolves the binary.
func WithSandbox(st platform.SandboxType) Option {
	return func(t *BaseCLITool) {
		t.sandbox = st
	}
}

// NewBaseCLITool creates a tool named name whose binary defaults to name.
func NewBaseCLITool(name string, opts ...Option) *BaseCLITool {
	t := &BaseCLITool{
		name:        name,
		binary:      name,
		execCommand: exec.CommandContext,
		environ:     os.Environ,
		stdout:      io.Discard,
		stderr:      io.Discard,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name returns the tool name used in errors and logs.
func (t *BaseCLITool) Name() string { return t.name }

// Binary returns the configured executable name or path.
func (t *BaseCLITool) Binary() string { return t.binary }

// Environ returns the environment the next command will receive.
func (t *BaseCLITool) Environ() []string {
	env := t.environ()
	for k, v := range t.envOverrides {
		env = append(env, k+"="+v)
	}
	return env
}

// ResolveBinary finds the executable on the search path carried by Environ,
// not the process PATH, so a step that prepends an environment's bin
// directory changes which pip is used.
func (t *BaseCLITool) ResolveBinary() (string, error) {
	if strings.ContainsRune(t.binary, filepath.Separator) {
		return t.binary, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "/"
	}
	path, err := interp.LookPathDir(cwd, expand.ListEnviron(t.Environ()...), t.binary)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrToolNotFound, t.binary, err)
	}
	return path, nil
}

// Available reports whether the binary resolves on the search path.
// Inside a sandbox the host search path is not visible, so it reports true.
func (t *BaseCLITool) Available() bool {
	if t.sandbox != platform.SandboxNone {
		return true
	}
	_, err := t.ResolveBinary()
	return err == nil
}

// CreateCommand creates an exec.Cmd for args with the tool environment
// applied. When the binary does not resolve the bare name is used and the
// failure surfaces when the command runs.
func (t *BaseCLITool) CreateCommand(ctx context.Context, args ...string) *exec.Cmd {
	if spawn := platform.SpawnCommandFor(t.sandbox); spawn != "" {
		cmd := t.execCommand(ctx, spawn, t.spawnArgs(args)...)
		t.customizeCmd(cmd)
		return cmd
	}
	binary, err := t.ResolveBinary()
	if err != nil {
		binary = t.binary
	}
	cmd := t.execCommand(ctx, binary, args...)
	t.customizeCmd(cmd)
	return cmd
}

// spawnArgs builds the spawner's argument list. flatpak-spawn does not
// forward the environment, so the search path is passed explicitly.
func (t *BaseCLITool) spawnArgs(args []string) []string {
	out := platform.SpawnArgsFor(t.sandbox)
	if t.sandbox == platform.SandboxFlatpak {
		for _, kv := range t.Environ() {
			if strings.HasPrefix(kv, "PATH=") {
				out = append(out, "--env="+kv)
			}
		}
	}
	out = append(out, t.binary)
	return append(out, args...)
}

func (t *BaseCLITool) customizeCmd(cmd *exec.Cmd) {
	cmd.Env = append(cmd.Env, t.Environ()...)
}

// Run executes the tool, streaming its output to the configured writers.
func (t *BaseCLITool) Run(ctx context.Context, args ...string) error {
	cmd := t.CreateCommand(ctx, args...)
	tail := &tailBuffer{}

	var err error
	if t.tty {
		err = runWithPTY(cmd, io.MultiWriter(t.stdout, tail))
	} else {
		cmd.Stdout = t.stdout
		cmd.Stderr = io.MultiWriter(t.stderr, tail)
		err = cmd.Run()
	}
	if err != nil {
		return t.commandError(args, tail.String(), err)
	}
	return nil
}

// RunWithOutput executes the tool with stdout captured. Stderr is kept for
// the error and also streamed to the configured writer.
func (t *BaseCLITool) RunWithOutput(ctx context.Context, args ...string) (string, error) {
	cmd := t.CreateCommand(ctx, args...)
	var out bytes.Buffer
	tail := &tailBuffer{}
	cmd.Stdout = &out
	cmd.Stderr = io.MultiWriter(t.stderr, tail)

	if err := cmd.Run(); err != nil {
		return "", t.commandError(args, tail.String(), err)
	}
	return out.String(), nil
}

// RunStatus executes the tool silently and returns only its status.
func (t *BaseCLITool) RunStatus(ctx context.Context, args ...string) error {
	cmd := t.CreateCommand(ctx, args...)
	tail := &tailBuffer{}
	cmd.Stderr = tail
	if err := cmd.Run(); err != nil {
		return t.commandError(args, tail.String(), err)
	}
	return nil
}

func (t *BaseCLITool) commandError(args []string, stderr string, err error) error {
	ce := &CommandError{
		Tool:     t.name,
		Args:     args,
		ExitCode: 1,
		Stderr:   strings.TrimSpace(stderr),
		Err:      err,
	}
	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		ce.ExitCode = types.ExitCode(exitErr.ExitCode())
	case errors.Is(err, exec.ErrNotFound):
		ce.Err = fmt.Errorf("%w: %s: %w", ErrToolNotFound, t.binary, err)
	}
	return ce
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Tool, strings.Join(e.Args, " "), e.Err)
	if e.Stderr != "" {
		msg += ": " + lastLine(e.Stderr)
	}
	return msg
}

// Unwrap returns the underlying exec error.
func (e *CommandError) Unwrap() error { return e.Err }

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - stderrTailSize; over > 0 {
		b.buf = b.buf[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string { return string(b.buf) }
