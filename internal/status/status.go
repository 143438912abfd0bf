// Package status implements the status file protocol shared between the
// runner (sole writer) and a polling observer (sole reader).
//
// A status file holds newline-terminated tokens in chronological order:
// START, followed by exactly one terminal token, END or FAIL. Each token is
// synced to disk before the write returns, so an observer never waits on
// buffered data. On failure a sibling file with the ".error" suffix holds
// diagnostic text.
package status

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

// Token is a lifecycle marker written to a status file.
type Token string

const (
	// Start marks that the command is about to run.
	Start Token = "START"
	// End marks that the command exited successfully.
	End Token = "END"
	// Fail marks that the command could not be launched or exited non-zero.
	Fail Token = "FAIL"
)

// ErrorSuffix is appended to the status file path to form the error detail path.
const ErrorSuffix = ".error"

// ErrOutOfOrder is returned when a token would break the START-then-terminal sequence.
var ErrOutOfOrder = errors.New("status token out of order")

// Terminal reports whether t ends a run.
func (t Token) Terminal() bool {
	return t == End || t == Fail
}

// Valid reports whether t is one of the protocol tokens.
func (t Token) Valid() bool {
	switch t {
	case Start, End, Fail:
		return true
	}
	return false
}

// ErrorPath returns the error detail file path for statusPath.
func ErrorPath(statusPath string) string {
	return statusPath + ErrorSuffix
}

// Writer appends tokens to a single status file.
type Writer struct {
	mu   sync.Mutex
	f    *os.File
	path string
	last Token
}

// Create opens path for writing, truncating any previous content.
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("opening status file: %w", err)
	}
	return &Writer{f: f, path: path}, nil
}

// Path returns the status file path.
func (w *Writer) Path() string {
	return w.path
}

// Mark appends tok and syncs it to disk before returning.
func (w *Writer) Mark(tok Token) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.accept(tok); err != nil {
		return err
	}
	if _, err := w.f.WriteString(string(tok) + "\n"); err != nil {
		return fmt.Errorf("writing %s to %s: %w", tok, w.path, err)
	}
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", w.path, err)
	}
	w.last = tok
	return nil
}

// accept enforces START once, then one terminal token.
func (w *Writer) accept(tok Token) error {
	switch {
	case tok == Start && w.last == "":
		return nil
	case tok.Terminal() && w.last == Start:
		return nil
	}
	return fmt.Errorf("%w: %q after %q", ErrOutOfOrder, tok, w.last)
}

// Close closes the underlying file. Written tokens remain on disk.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}

// WriteErrorDetail writes detail to the error file next to statusPath,
// replacing any previous content.
func WriteErrorDetail(statusPath, detail string) error {
	path := ErrorPath(statusPath)
	if err := os.WriteFile(path, []byte(detail), 0o644); err != nil {
		return fmt.Errorf("writing error detail %s: %w", path, err)
	}
	return nil
}
