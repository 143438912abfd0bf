package runner

import "time"

// Result holds the outcome of a command execution.
type Result struct {
	RunID    string        // unique identifier for this run
	ExitCode int           // process exit code; -1 if killed by a signal
	Duration time.Duration // wall time from launch to exit
}

// Success reports whether the command exited with status 0.
func (r *Result) Success() bool {
	return r.ExitCode == 0
}
