package workflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/deixis/shellexec/internal/runner"
)

// PanicError is a panic recovered while running a command.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// cause classifies why a run failed. Every cause ends in FAIL; the
// classification only shows up in the detail text.
func cause(err error, exitCode int) string {
	var (
		launchErr *runner.LaunchError
		panicErr  *PanicError
	)
	switch {
	case err == nil && exitCode < 0:
		return "terminated by signal"
	case err == nil:
		return "non-zero exit"
	case errors.Is(err, runner.ErrEmptyCommand):
		return "empty command"
	case errors.As(err, &launchErr):
		return "launch failure"
	case errors.As(err, &panicErr):
		return "internal error"
	default:
		return "execution error"
	}
}

// describe renders the diagnostic text written to the error detail file.
func describe(inv Invocation, runID string, err error, exitCode int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Command failed: %s\n", inv.Command())
	fmt.Fprintf(&b, "Run: %s\n", runID)
	fmt.Fprintf(&b, "Status file: %s\n", inv.StatusPath)
	fmt.Fprintf(&b, "Cause: %s\n", cause(err, exitCode))
	if err == nil {
		fmt.Fprintf(&b, "Exit code: %d\n", exitCode)
		return b.String()
	}
	fmt.Fprintf(&b, "Error: %v\n", err)

	var panicErr *PanicError
	if errors.As(err, &panicErr) && len(panicErr.Stack) > 0 {
		fmt.Fprintf(&b, "\n%s", panicErr.Stack)
	}
	return b.String()
}
