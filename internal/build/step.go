package build

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/conneroisu/devloop/internal/validation"
)

// Step describes one external process of the pipeline.
type Step struct {
	Stage   string
	Program string
	Args    []string
	Dir     string
	Env     []string // KEY=VALUE pairs added to the process environment
	Quiet   bool     // discard stdout and stderr
}

// String renders the step as a command line for logs.
func (s Step) String() string {
	return strings.TrimSpace(s.Program + " " + strings.Join(s.Args, " "))
}

// Runner executes a single step and reports its exit code. A non-nil error
// means the process could not be started or was cancelled; the exit code is
// -1 in that case.
type Runner interface {
	Run(ctx context.Context, step Step) (int, error)
}

// waitDelay bounds how long a killed step may hold its output pipes open.
const waitDelay = 2 * time.Second

// DefaultAllowedPrograms are the programs the pipeline is permitted to run.
var DefaultAllowedPrograms = map[string]bool{
	"npm":          true,
	"npx":          true,
	"cargo":        true,
	"wasm-bindgen": true,
}

// ExecRunner runs steps as child processes.
type ExecRunner struct {
	Stdout  io.Writer
	Stderr  io.Writer
	Allowed map[string]bool
}

// NewExecRunner creates a runner that forwards output to the terminal.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Allowed: DefaultAllowedPrograms,
	}
}

// Run starts the step, waits for it and returns its exit code.
func (r *ExecRunner) Run(ctx context.Context, step Step) (int, error) {
	if err := validation.ValidateCommand(step.Program, r.Allowed); err != nil {
		return -1, fmt.Errorf("command validation failed: %w", err)
	}

	cmd := exec.CommandContext(ctx, step.Program, step.Args...)
	cmd.Dir = step.Dir
	cmd.Env = append(os.Environ(), step.Env...)
	cmd.WaitDelay = waitDelay

	if step.Quiet {
		cmd.Stdout = io.Discard
		cmd.Stderr = io.Discard
	} else {
		cmd.Stdout = r.Stdout
		cmd.Stderr = r.Stderr
	}

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}
	if ctx.Err() != nil {
		return -1, ctx.Err()
	}

	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}
