package workflow

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/deixis/shellexec/internal/report"
	"github.com/deixis/shellexec/internal/runner"
	"github.com/deixis/shellexec/internal/status"
)

// newTestEngine returns an engine whose trace output and child output
// both land in the returned buffer.
func newTestEngine(t *testing.T) (*Engine, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	return &Engine{
		Runner: &runner.Runner{Stdout: &out, Stderr: &out},
		Out:    &out,
	}, &out
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}

func TestExec_Success(t *testing.T) {
	e, out := newTestEngine(t)
	lock := filepath.Join(t.TempDir(), "lock")

	inv, err := ParseArgs([]string{"echo", "hi", lock})
	if err != nil {
		t.Fatal(err)
	}
	o, err := e.Exec(context.Background(), inv)
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if o.Token != status.End || o.Failed() {
		t.Errorf("Token = %q, want END", o.Token)
	}
	if got := readFile(t, lock); got != "START\nEND\n" {
		t.Errorf("status file = %q, want %q", got, "START\nEND\n")
	}
	if _, err := os.Stat(status.ErrorPath(lock)); !os.IsNotExist(err) {
		t.Errorf("error file exists after success (stat err = %v)", err)
	}
	if want := "Executing command in shell >> echo hi\nhi\n"; out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

func TestExec_NonZeroExit(t *testing.T) {
	e, _ := newTestEngine(t)
	lock := filepath.Join(t.TempDir(), "lock2")

	o, err := e.Exec(context.Background(), Invocation{Argv: []string{"false"}, StatusPath: lock})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if o.Token != status.Fail {
		t.Errorf("Token = %q, want FAIL", o.Token)
	}
	if o.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", o.ExitCode)
	}
	if got := readFile(t, lock); got != "START\nFAIL\n" {
		t.Errorf("status file = %q, want %q", got, "START\nFAIL\n")
	}
	detail := readFile(t, status.ErrorPath(lock))
	if !strings.Contains(detail, "Cause: non-zero exit") || !strings.Contains(detail, "Exit code: 1") {
		t.Errorf("error detail = %q", detail)
	}
}

func TestExec_LaunchFailure(t *testing.T) {
	e, out := newTestEngine(t)
	lock := filepath.Join(t.TempDir(), "lock")

	o, err := e.Exec(context.Background(), Invocation{Argv: []string{"nonexistent-binary-xyz-123", "-x"}, StatusPath: lock})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if o.Token != status.Fail || o.ExitCode != -1 {
		t.Errorf("outcome = %+v, want FAIL with ExitCode -1", o)
	}
	if o.RunID == "" {
		t.Error("RunID is empty")
	}
	if got := readFile(t, lock); got != "START\nFAIL\n" {
		t.Errorf("status file = %q, want %q", got, "START\nFAIL\n")
	}
	detail := readFile(t, status.ErrorPath(lock))
	if !strings.Contains(detail, "Cause: launch failure") || !strings.Contains(detail, "nonexistent-binary-xyz-123") {
		t.Errorf("error detail = %q", detail)
	}
	// The diagnostic is echoed after the trace line.
	if !strings.Contains(out.String(), "Cause: launch failure") {
		t.Errorf("output = %q, want diagnostic", out.String())
	}
}

func TestExec_EmptyCommand(t *testing.T) {
	e, out := newTestEngine(t)
	lock := filepath.Join(t.TempDir(), "lock")

	inv, err := ParseArgs([]string{lock})
	if err != nil {
		t.Fatal(err)
	}
	o, err := e.Exec(context.Background(), inv)
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if o.Token != status.Fail {
		t.Errorf("Token = %q, want FAIL", o.Token)
	}
	if !strings.HasPrefix(out.String(), TracePrefix+"\n") {
		t.Errorf("output = %q, want empty trace line first", out.String())
	}
	if !strings.Contains(readFile(t, status.ErrorPath(lock)), "Cause: empty command") {
		t.Error("error detail does not mention the empty command")
	}
}

func TestExec_RerunTruncates(t *testing.T) {
	e, _ := newTestEngine(t)
	lock := filepath.Join(t.TempDir(), "lock")

	if _, err := e.Exec(context.Background(), Invocation{Argv: []string{"false"}, StatusPath: lock}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.Exec(context.Background(), Invocation{Argv: []string{"true"}, StatusPath: lock}); err != nil {
		t.Fatal(err)
	}
	if got := readFile(t, lock); got != "START\nEND\n" {
		t.Errorf("status file = %q, want %q", got, "START\nEND\n")
	}
}

func TestExec_SuccessLeavesStaleErrorFile(t *testing.T) {
	e, _ := newTestEngine(t)
	lock := filepath.Join(t.TempDir(), "lock")

	if _, err := e.Exec(context.Background(), Invocation{Argv: []string{"false"}, StatusPath: lock}); err != nil {
		t.Fatal(err)
	}
	stale := readFile(t, status.ErrorPath(lock))

	if _, err := e.Exec(context.Background(), Invocation{Argv: []string{"true"}, StatusPath: lock}); err != nil {
		t.Fatal(err)
	}
	if got := readFile(t, lock); got != "START\nEND\n" {
		t.Errorf("status file = %q, want %q", got, "START\nEND\n")
	}
	// The runner never deletes files; cleaning up the old detail is the caller's job.
	if got := readFile(t, status.ErrorPath(lock)); got != stale {
		t.Errorf("error file = %q, want previous detail %q left untouched", got, stale)
	}
}

func TestExec_StatusFileUnwritable(t *testing.T) {
	e, out := newTestEngine(t)
	lock := filepath.Join(t.TempDir(), "missing", "lock")

	_, err := e.Exec(context.Background(), Invocation{Argv: []string{"true"}, StatusPath: lock})
	if err == nil {
		t.Fatal("expected error when the status file cannot be created")
	}
	// The trace line is printed before the status file is opened.
	if !strings.HasPrefix(out.String(), TracePrefix+"true") {
		t.Errorf("output = %q", out.String())
	}
}

func TestExec_ErrorDetailUnwritable(t *testing.T) {
	e, _ := newTestEngine(t)
	lock := filepath.Join(t.TempDir(), "lock")
	// A directory where the detail file belongs makes the write fail.
	if err := os.Mkdir(status.ErrorPath(lock), 0o755); err != nil {
		t.Fatal(err)
	}

	o, err := e.Exec(context.Background(), Invocation{Argv: []string{"false"}, StatusPath: lock})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if o.Token != status.Fail {
		t.Errorf("Token = %q, want FAIL", o.Token)
	}
	if got := readFile(t, lock); got != "START\nFAIL\n" {
		t.Errorf("status file = %q, want %q", got, "START\nFAIL\n")
	}
}

type panicRunner struct{}

func (panicRunner) Run(context.Context, []string) (*runner.Result, error) {
	panic("runner exploded")
}

func TestExec_PanicBecomesFail(t *testing.T) {
	var out bytes.Buffer
	e := &Engine{Runner: panicRunner{}, Out: &out}
	lock := filepath.Join(t.TempDir(), "lock")

	o, err := e.Exec(context.Background(), Invocation{Argv: []string{"true"}, StatusPath: lock})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if o.Token != status.Fail {
		t.Errorf("Token = %q, want FAIL", o.Token)
	}
	detail := readFile(t, status.ErrorPath(lock))
	if !strings.Contains(detail, "panic: runner exploded") {
		t.Errorf("detail = %q, want panic value", detail)
	}
	if !strings.Contains(detail, "goroutine") {
		t.Errorf("detail = %q, want stack trace", detail)
	}
}

type failingStore struct{ saved int }

func (s *failingStore) Save(*report.RunRecord) error {
	s.saved++
	return errors.New("disk full")
}

func (s *failingStore) Load(string) (*report.RunRecord, error) {
	return nil, report.ErrNotFound
}

func TestExec_Records(t *testing.T) {
	e, _ := newTestEngine(t)
	store := report.NewDiskStore(t.TempDir())
	e.Recorder = store
	lock := filepath.Join(t.TempDir(), "lock")

	o, err := e.Exec(context.Background(), Invocation{Argv: []string{"sh", "-c", "exit 4"}, StatusPath: lock})
	if err != nil {
		t.Fatal(err)
	}
	rec, err := store.Load(o.RunID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rec.Outcome != status.Fail || rec.ExitCode != 4 || rec.StatusPath != lock {
		t.Errorf("record = %+v", rec)
	}
	if rec.Command() != "sh -c exit 4" {
		t.Errorf("Command() = %q", rec.Command())
	}
}

func TestExec_RecorderFailureIgnored(t *testing.T) {
	e, _ := newTestEngine(t)
	store := &failingStore{}
	e.Recorder = store
	lock := filepath.Join(t.TempDir(), "lock")

	o, err := e.Exec(context.Background(), Invocation{Argv: []string{"true"}, StatusPath: lock})
	if err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if o.Token != status.End || store.saved != 1 {
		t.Errorf("Token = %q, saved = %d", o.Token, store.saved)
	}
}

func TestParseArgs(t *testing.T) {
	inv, err := ParseArgs([]string{"ls", "-la", "/tmp/lock"})
	if err != nil {
		t.Fatal(err)
	}
	if inv.StatusPath != "/tmp/lock" || inv.Command() != "ls -la" {
		t.Errorf("inv = %+v", inv)
	}

	if _, err := ParseArgs(nil); !errors.Is(err, ErrUsage) {
		t.Errorf("ParseArgs(nil) err = %v, want ErrUsage", err)
	}
	if _, err := ParseArgs([]string{"echo", ""}); !errors.Is(err, ErrUsage) {
		t.Errorf("empty status path err = %v, want ErrUsage", err)
	}
}
