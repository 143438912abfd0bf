// Package runner executes a command vector as a child process whose
// standard streams pass straight through to the caller's.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"
)

// ErrEmptyCommand is returned when there is no program to run.
var ErrEmptyCommand = errors.New("empty command")

// LaunchError reports that the child process could not be started,
// e.g. the executable was not found or is not executable.
type LaunchError struct {
	Argv []string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launching %s: %v", e.Argv[0], e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// Runner executes commands. The zero value inherits the current process's
// working directory, environment and standard streams.
type Runner struct {
	Dir    string   // working directory; empty means the current one
	Env    []string // extra KEY=VALUE pairs appended to the inherited environment
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Run executes argv and blocks until it exits. The first element is the
// binary name (resolved via PATH), and the rest are arguments.
//
// A non-zero exit is reported through Result.ExitCode, not as an error.
// Failure to start the process is returned as a *LaunchError.
func (r *Runner) Run(ctx context.Context, argv []string) (*Result, error) {
	if len(argv) == 0 {
		return nil, ErrEmptyCommand
	}

	runID := uuid.New().String()

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = r.Dir
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}
	cmd.Stdin = r.Stdin
	cmd.Stdout = orDefault(r.Stdout, os.Stdout)
	cmd.Stderr = orDefault(r.Stderr, os.Stderr)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{Argv: argv, Err: err}
	}
	runErr := cmd.Wait()
	elapsed := time.Since(start)

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			// Copying the child's output failed.
			return nil, fmt.Errorf("running %s: %w", argv[0], runErr)
		}
		exitCode = exitErr.ExitCode()
	}

	return &Result{
		RunID:    runID,
		ExitCode: exitCode,
		Duration: elapsed,
	}, nil
}

func orDefault(w io.Writer, def *os.File) io.Writer {
	if w == nil {
		return def
	}
	return w
}
