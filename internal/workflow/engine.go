// Package workflow drives one runner invocation through the status file
// protocol: print the trace line, mark START, run the child, then mark END
// or FAIL and leave diagnostics behind.
package workflow

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/deixis/shellexec/internal/logging"
	"github.com/deixis/shellexec/internal/report"
	"github.com/deixis/shellexec/internal/runner"
	"github.com/deixis/shellexec/internal/status"
)

// TracePrefix starts the line printed before the command runs.
const TracePrefix = "Executing command in shell >> "

// CommandRunner executes a command vector.
// Implemented by runner.Runner.
type CommandRunner interface {
	Run(ctx context.Context, argv []string) (*runner.Result, error)
}

// Engine holds shared dependencies for running invocations.
type Engine struct {
	Runner   CommandRunner
	Out      io.Writer          // trace line and failure diagnostics; default os.Stdout
	Recorder report.Store       // optional run history
	Log      logrus.FieldLogger // optional; default discards
}

// Outcome is the result of one invocation.
type Outcome struct {
	RunID    string
	Token    status.Token // END or FAIL
	ExitCode int          // -1 when no exit status is available
	Detail   string       // diagnostic text when Token is FAIL
	Duration time.Duration
}

// Failed reports whether the run ended with FAIL.
func (o *Outcome) Failed() bool {
	return o.Token == status.Fail
}

// Exec runs inv and records its lifecycle in the status file.
//
// Launch failures, non-zero exits and panics while running are handled:
// they end in FAIL and Exec returns a nil error. An error is returned only
// when the status file itself cannot be written.
func (e *Engine) Exec(ctx context.Context, inv Invocation) (*Outcome, error) {
	out := e.Out
	if out == nil {
		out = os.Stdout
	}
	log := e.Log
	if log == nil {
		log = logging.Discard()
	}
	log = log.WithField("status_file", inv.StatusPath)

	fmt.Fprintln(out, TracePrefix+inv.Command())

	w, err := status.Create(inv.StatusPath)
	if err != nil {
		return nil, err
	}
	defer w.Close()

	if err := w.Mark(status.Start); err != nil {
		return nil, err
	}
	log.WithField("argv", inv.Argv).Debug("started")

	started := time.Now()
	res, runErr := e.run(ctx, inv.Argv)

	outcome := &Outcome{ExitCode: -1}
	if res != nil {
		outcome.RunID = res.RunID
		outcome.ExitCode = res.ExitCode
		outcome.Duration = res.Duration
	} else {
		outcome.RunID = uuid.New().String()
		outcome.Duration = time.Since(started)
	}
	log = log.WithField("run_id", outcome.RunID)

	if runErr == nil && res != nil && res.Success() {
		outcome.Token = status.End
		if err := w.Mark(status.End); err != nil {
			return nil, err
		}
		log.Debug("completed")
	} else {
		outcome.Token = status.Fail
		outcome.Detail = describe(inv, outcome.RunID, runErr, outcome.ExitCode)
		if err := w.Mark(status.Fail); err != nil {
			return nil, err
		}
		fmt.Fprint(out, outcome.Detail)

		// Best effort: the FAIL marker is already committed.
		if err := status.WriteErrorDetail(inv.StatusPath, outcome.Detail); err != nil {
			log.WithError(err).Debug("error detail not written")
		}
		log.WithField("exit_code", outcome.ExitCode).Debug("failed")
	}

	e.record(log, inv, outcome, started)
	return outcome, nil
}

// run calls the runner, turning a panic into a *PanicError.
func (e *Engine) run(ctx context.Context, argv []string) (res *runner.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return e.Runner.Run(ctx, argv)
}

func (e *Engine) record(log logrus.FieldLogger, inv Invocation, o *Outcome, started time.Time) {
	if e.Recorder == nil {
		return
	}
	rec := &report.RunRecord{
		ID:         o.RunID,
		Argv:       inv.Argv,
		StatusPath: inv.StatusPath,
		Outcome:    o.Token,
		ExitCode:   o.ExitCode,
		Detail:     o.Detail,
		StartedAt:  started.UTC(),
		Duration:   o.Duration,
	}
	if err := e.Recorder.Save(rec); err != nil {
		log.WithError(err).Warn("run record not saved")
	}
}
