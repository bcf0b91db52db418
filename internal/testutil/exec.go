// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
)

const helperProcessEnv = "GO_WANT_HELPER_PROCESS"

type (
	// CommandRecorder replaces exec.CommandContext in tool clients. Every call
	// is recorded and re-executes the test binary as TestHelperProcess, which
	// prints the scripted response and exits with its code.
	//
	// Packages using it must declare:
	//
	//	func TestHelperProcess(t *testing.T) { testutil.RunHelperProcess() }
	CommandRecorder struct {
		mu          sync.Mutex
		invocations []Invocation
		responses   []*Response
		fallback    Response
	}

	// Invocation is one recorded command.
	Invocation struct {
		// Tool is the base name of the executable (e.g. "git", "conda").
		Tool string
		Args []string
		// Cmd is the helper command handed back to the caller; its Env and
		// Dir reflect any customization applied after creation.
		Cmd *exec.Cmd
	}

	// Response scripts the outcome of matching invocations.
	Response struct {
		tool     string
		contains []string
		Stdout   string
		Stderr   string
		ExitCode int
	}
)

// NewCommandRecorder returns a recorder whose unmatched commands succeed
// with no output.
func NewCommandRecorder() *CommandRecorder {
	return &CommandRecorder{}
}

// On registers a response for invocations of tool whose arguments contain
// every element of args in order. Earlier registrations win.
func (r *CommandRecorder) On(tool string, args ...string) *Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	resp := &Response{tool: tool, contains: args}
	r.responses = append(r.responses, resp)
	return resp
}

// Fail makes matching invocations exit with code and print stderr.
func (resp *Response) Fail(code int, stderr string) *Response {
	resp.ExitCode = code
	resp.Stderr = stderr
	return resp
}

// Print makes matching invocations print stdout and succeed.
func (resp *Response) Print(stdout string) *Response {
	resp.Stdout = stdout
	return resp
}

// ExecCommand has the signature of exec.CommandContext.
func (r *CommandRecorder) ExecCommand(ctx context.Context, name string, args ...string) *exec.Cmd {
	tool := filepath.Base(name)
	resp := r.match(tool, args)

	cs := append([]string{"-test.run=TestHelperProcess", "--", tool}, args...)
	//nolint:gosec // re-executes the test binary
	cmd := exec.CommandContext(ctx, os.Args[0], cs...)
	cmd.Env = []string{
		helperProcessEnv + "=1",
		"GO_HELPER_EXIT_CODE=" + strconv.Itoa(resp.ExitCode),
		"GO_HELPER_STDOUT=" + resp.Stdout,
		"GO_HELPER_STDERR=" + resp.Stderr,
	}

	r.mu.Lock()
	r.invocations = append(r.invocations, Invocation{Tool: tool, Args: slices.Clone(args), Cmd: cmd})
	r.mu.Unlock()
	return cmd
}

func (r *CommandRecorder) match(tool string, args []string) Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, resp := range r.responses {
		if resp.tool == tool && containsInOrder(args, resp.contains) {
			return *resp
		}
	}
	return r.fallback
}

func containsInOrder(args, want []string) bool {
	i := 0
	for _, a := range args {
		if i < len(want) && a == want[i] {
			i++
		}
	}
	return i == len(want)
}

// Invocations returns a copy of every recorded invocation.
func (r *CommandRecorder) Invocations() []Invocation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.invocations)
}

// Commands returns each invocation as "tool arg1 arg2 ...".
func (r *CommandRecorder) Commands() []string {
	invs := r.Invocations()
	out := make([]string, len(invs))
	for i, inv := range invs {
		out[i] = strings.Join(append([]string{inv.Tool}, inv.Args...), " ")
	}
	return out
}

// AssertCommands fails the test unless the recorded commands equal want.
func (r *CommandRecorder) AssertCommands(t testing.TB, want ...string) {
	t.Helper()
	got := r.Commands()
	if !slices.Equal(got, want) {
		t.Errorf("commands mismatch\n got: %s\nwant: %s", formatCommands(got), formatCommands(want))
	}
}

func formatCommands(cmds []string) string {
	if len(cmds) == 0 {
		return "(none)"
	}
	return "\n  " + strings.Join(cmds, "\n  ")
}

// RunHelperProcess is the body of every package's TestHelperProcess. It is a
// no-op unless the process was started by CommandRecorder.
func RunHelperProcess() {
	if os.Getenv(helperProcessEnv) != "1" {
		return
	}
	if stdout := os.Getenv("GO_HELPER_STDOUT"); stdout != "" {
		fmt.Fprint(os.Stdout, stdout)
	}
	if stderr := os.Getenv("GO_HELPER_STDERR"); stderr != "" {
		fmt.Fprint(os.Stderr, stderr)
	}
	code, _ := strconv.Atoi(os.Getenv("GO_HELPER_EXIT_CODE"))
	os.Exit(code)
}
