package ssh

import (
	"context"
	"errors"
	"io"
	"os/exec"
)

// Command describes a child process.
type Command struct {
	Name   string
	Args   []string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Runner starts child processes and reports their exit status.
type Runner interface {
	// Run blocks until the process exits. err is non-nil only when the
	// process could not be started or waited on; a non-zero exit is
	// reported through exitCode alone.
	Run(ctx context.Context, cmd Command) (exitCode int, err error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, cmd Command) (int, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, cmd Command) (int, error) {
	return f(ctx, cmd)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, cmd Command) (int, error) {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Stdin = cmd.Stdin
	c.Stdout = cmd.Stdout
	c.Stderr = cmd.Stderr

	err := c.Run()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ctx.Err() != nil {
			return exitErr.ExitCode(), ctx.Err()
		}
		return exitErr.ExitCode(), nil
	}
	return -1, err
}
