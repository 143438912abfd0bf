package workflow

import (
	"errors"
	"strings"
)

// ErrUsage is returned when no status file path was given.
var ErrUsage = errors.New("usage: run <command...> <statusFilePath>")

// Invocation is a parsed runner invocation.
type Invocation struct {
	Argv       []string // command vector; may be empty, which always fails
	StatusPath string
}

// ParseArgs splits args into the command vector and the trailing status
// file path. Arguments are taken verbatim; nothing is interpreted as a flag.
func ParseArgs(args []string) (Invocation, error) {
	if len(args) == 0 || args[len(args)-1] == "" {
		return Invocation{}, ErrUsage
	}
	n := len(args) - 1
	argv := make([]string, n)
	copy(argv, args[:n])
	return Invocation{Argv: argv, StatusPath: args[n]}, nil
}

// Command returns the space-joined command vector.
func (inv Invocation) Command() string {
	return strings.Join(inv.Argv, " ")
}
