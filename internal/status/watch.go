package status

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// DefaultPollInterval is used by Wait when no interval is given.
const DefaultPollInterval = 100 * time.Millisecond

// ErrMalformed is returned when a status file holds something other than protocol tokens.
var ErrMalformed = errors.New("malformed status file")

// State is a snapshot of a status file as seen by an observer.
type State struct {
	Tokens []Token `json:"tokens"`
}

// Started reports whether START has been written.
func (s State) Started() bool {
	return len(s.Tokens) > 0 && s.Tokens[0] == Start
}

// Done reports whether a terminal token has been written.
func (s State) Done() bool {
	return s.Outcome() != ""
}

// Outcome returns the terminal token, or "" while the run is in progress.
func (s State) Outcome() Token {
	if len(s.Tokens) == 0 {
		return ""
	}
	if last := s.Tokens[len(s.Tokens)-1]; last.Terminal() {
		return last
	}
	return ""
}

// Phase names the lifecycle position for display: END, FAIL, RUNNING or
// NOT STARTED.
func (s State) Phase() string {
	switch {
	case s.Done():
		return string(s.Outcome())
	case s.Started():
		return "RUNNING"
	default:
		return "NOT STARTED"
	}
}

// String renders the state the way it sits on disk.
func (s State) String() string {
	var b bytes.Buffer
	for _, t := range s.Tokens {
		b.WriteString(string(t))
		b.WriteByte('\n')
	}
	return b.String()
}

// Read parses the status file at path. A trailing line without a newline is
// still being written and is ignored.
func Read(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return State{}, fmt.Errorf("reading status file: %w", err)
	}
	return Parse(data)
}

// Parse parses status file content.
func Parse(data []byte) (State, error) {
	var st State
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimSuffix(data[:i], []byte("\r"))
		data = data[i+1:]

		tok := Token(line)
		if !tok.Valid() {
			return st, fmt.Errorf("%w: unknown token %q", ErrMalformed, line)
		}
		st.Tokens = append(st.Tokens, tok)
	}
	return st, nil
}

// ReadErrorDetail returns the error detail written next to statusPath.
// A missing detail file is not an error.
func ReadErrorDetail(statusPath string) (string, error) {
	data, err := os.ReadFile(ErrorPath(statusPath))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("reading error detail: %w", err)
	}
	return string(data), nil
}

// Wait polls path until a terminal token appears or ctx is done. A status
// file that does not exist yet counts as not started.
func Wait(ctx context.Context, path string, interval time.Duration) (State, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last State
	for {
		st, err := Read(path)
		switch {
		case err == nil:
			last = st
			if st.Done() {
				return st, nil
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return last, err
		}

		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}
