// Package report persists a record of each run so that a calling process
// can look up what happened after the status file says a run is over.
package report

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/deixis/shellexec/internal/status"
)

// ErrNotFound is returned when no record exists for a run ID.
var ErrNotFound = errors.New("run not found")

// Store persists and retrieves run records.
type Store interface {
	Save(rec *RunRecord) error
	Load(runID string) (*RunRecord, error)
}

// RunRecord describes one completed invocation of the runner.
type RunRecord struct {
	ID         string        `json:"id"`
	Argv       []string      `json:"argv"`
	StatusPath string        `json:"status_path"`
	Outcome    status.Token  `json:"outcome"`
	ExitCode   int           `json:"exit_code"`
	Detail     string        `json:"detail,omitempty"` // diagnostic text on FAIL
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
}

// Command returns the space-joined command vector.
func (r *RunRecord) Command() string {
	return strings.Join(r.Argv, " ")
}

// Failed reports whether the run ended with FAIL.
func (r *RunRecord) Failed() bool {
	return r.Outcome == status.Fail
}

// Summary renders the record for humans.
func (r *RunRecord) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run: %s\n", r.ID)
	fmt.Fprintf(&b, "Command: %s\n", r.Command())
	fmt.Fprintf(&b, "Status: %s\n", r.Outcome)
	if r.ExitCode >= 0 {
		fmt.Fprintf(&b, "Exit code: %d\n", r.ExitCode)
	}
	fmt.Fprintf(&b, "Status file: %s\n", r.StatusPath)
	fmt.Fprintf(&b, "Started: %s\n", r.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Duration: %s\n", r.Duration.Round(time.Millisecond))
	if r.Detail != "" {
		fmt.Fprintf(&b, "\n%s", r.Detail)
	}
	return b.String()
}
