// Package logging configures the logrus logger used for the runner's own
// diagnostics. Logs always go to stderr, never stdout, which belongs to
// the trace line and the child's output.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// EnvLogLevel overrides the configured level.
const EnvLogLevel = "SHELLEXEC_LOG_LEVEL"

// New returns a logger writing to w at the given level. EnvLogLevel, when
// set to a known level, takes precedence. Unknown levels fall back to warn.
func New(level string, w io.Writer) *logrus.Logger {
	if w == nil {
		w = os.Stderr
	}
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	lvl, ok := ParseLevel(level)
	if !ok {
		lvl = logrus.WarnLevel
	}
	if env, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
		lvl = env
	}
	log.SetLevel(lvl)
	return log
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// ParseLevel maps a level name to a logrus level.
func ParseLevel(raw string) (logrus.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return logrus.TraceLevel, true
	case "debug":
		return logrus.DebugLevel, true
	case "info":
		return logrus.InfoLevel, true
	case "warn", "warning":
		return logrus.WarnLevel, true
	case "error":
		return logrus.ErrorLevel, true
	case "off", "none", "disabled":
		return logrus.PanicLevel, true
	}
	return logrus.WarnLevel, false
}
