// Package applog threads a single charmbracelet/log logger through every
// subsystem, each getting a named sub-logger via With("component", name).
// The zero value is safe to use and writes nowhere, so the core has no hard
// logging dependency at the API boundary.
package applog

import (
	"io"

	"github.com/charmbracelet/log"
)

// Logger is the subset of *log.Logger the runtime depends on.
type Logger = *log.Logger

// New returns a logger writing to w at the given level. Pass io.Discard for
// a logger that formats nothing (still useful for the component wiring).
func New(w io.Writer, level log.Level) Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Level:           level,
	})
	return l
}

// Nop returns a logger that discards everything, for tests and for callers
// that never configured logging.
func Nop() Logger {
	return New(io.Discard, log.FatalLevel+1)
}

// Component returns a child logger tagged with the owning subsystem, e.g.
// Component(base, "mixer") or Component(base, "resolve.switch").
func Component(base Logger, name string) Logger {
	if base == nil {
		base = Nop()
	}
	return base.With("component", name)
}
