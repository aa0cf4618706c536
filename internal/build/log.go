// Package build supplies the small pieces of logging plumbing that sit
// below btclog: a writer that fans out to both stdout and the active log
// rotator, and a constructor for per-subsystem loggers sharing one
// backend.
package build

import (
	"io"
	"os"
	"sync"

	"github.com/btcsuite/btclog"
)

// LogWriter is an io.Writer that duplicates everything written to it onto
// stdout and, once set, onto RotatorPipe. It is safe to write to before a
// rotator is attached; those writes simply skip the file.
type LogWriter struct {
	mu          sync.Mutex
	RotatorPipe *io.PipeWriter
}

// Write implements io.Writer.
func (w *LogWriter) Write(p []byte) (int, error) {
	os.Stdout.Write(p)

	w.mu.Lock()
	rotator := w.RotatorPipe
	w.mu.Unlock()

	if rotator != nil {
		return rotator.Write(p)
	}
	return len(p), nil
}

// NewSubLogger creates a btclog.Logger tagged with subsystem by calling
// loggerFn, the *btclog.Backend.Logger method value.
func NewSubLogger(subsystem string, loggerFn func(string) btclog.Logger) btclog.Logger {
	return loggerFn(subsystem)
}

// LogClosure provides a closure over an expensive logging operation --
// e.g. a spew.Sdump of a row -- so it is only evaluated when the active
// log level actually causes the line to be printed.
type LogClosure func() string

// String invokes the underlying function and returns the result.
func (c LogClosure) String() string {
	return c()
}

// NewLogClosure wraps c as a LogClosure.
func NewLogClosure(c func() string) LogClosure {
	return LogClosure(c)
}
