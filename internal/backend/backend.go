// Package backend runs prompts through the generative execution CLI.
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// DefaultTimeout caps a single invocation when the caller sets none.
const DefaultTimeout = 10 * time.Minute

// Options shape a single backend invocation.
type Options struct {
	// Model selects the backend model, empty means backend default.
	Model string
	// WorkDir is the directory the backend operates in.
	WorkDir string
	// Timeout bounds the invocation, zero means DefaultTimeout.
	Timeout time.Duration
	// AllowedTools restricts which tools the backend may use.
	AllowedTools []string
	// SessionID resumes an existing backend conversation when set.
	SessionID string
}

// Result is the raw outcome of one invocation.
type Result struct {
	Text     string
	ExitCode int
	Duration time.Duration
}

// Invoker runs a prompt and returns raw text plus an exit code. The
// engine never inspects backend internals beyond this surface.
type Invoker interface {
	Invoke(ctx context.Context, prompt string, opts Options) (Result, error)
}

// CLIBackend shells out to an external command for each invocation.
type CLIBackend struct {
	// Command is the executable to run.
	Command string
	// BaseArgs are prepended before the per-call flags.
	BaseArgs []string
}

// NewCLIBackend returns a backend driving the given executable.
func NewCLIBackend(command string, baseArgs ...string) *CLIBackend {
	return &CLIBackend{Command: command, BaseArgs: baseArgs}
}

// Invoke runs the command with the prompt on stdin. A context timeout
// surfaces as a timeout error so recovery can classify it; a non-zero
// exit is NOT an error here since the interpreter owns that judgment.
func (b *CLIBackend) Invoke(ctx context.Context, prompt string, opts Options) (Result, error) {
	if b.Command == "" {
		return Result{}, errors.New("backend command not configured")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append([]string(nil), b.BaseArgs...)
	if opts.Model != "" {
		args = append(args, "--model", opts.Model)
	}
	if opts.SessionID != "" {
		args = append(args, "--resume", opts.SessionID)
	}
	if len(opts.AllowedTools) > 0 {
		args = append(args, "--allowed-tools", strings.Join(opts.AllowedTools, ","))
	}

	cmd := exec.CommandContext(ctx, b.Command, args...)
	cmd.Dir = opts.WorkDir
	cmd.Stdin = strings.NewReader(prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res := Result{
		Text:     combineOutput(stdout.String(), stderr.String()),
		Duration: time.Since(start),
	}

	if ctx.Err() == context.DeadlineExceeded {
		return res, fmt.Errorf("backend invocation timed out after %s: %w", timeout, context.DeadlineExceeded)
	}
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.ExitCode = 0
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		return res, fmt.Errorf("backend command failed: %w", err)
	}
	return res, nil
}

func combineOutput(stdout, stderr string) string {
	stdout = strings.TrimRight(stdout, "\n")
	stderr = strings.TrimRight(stderr, "\n")
	switch {
	case stdout == "":
		return stderr
	case stderr == "":
		return stdout
	default:
		return stdout + "\n" + stderr
	}
}
