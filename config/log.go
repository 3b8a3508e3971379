package config

import (
	"fmt"
	"io"
	"os"
)

// Logger is cvra's ambient logging facility: a thin fmt-to-writer helper rather than a
// structured logging library, gated on a single verbosity flag.
type Logger struct {
	out     io.Writer
	verbose bool
}

// NewLogger returns a Logger that writes to out when verbose is true, and discards otherwise.
func NewLogger(out io.Writer, verbose bool) *Logger {
	return &Logger{out: out, verbose: verbose}
}

// StderrLogger returns a Logger that writes to os.Stderr.
func StderrLogger(verbose bool) *Logger {
	return NewLogger(os.Stderr, verbose)
}

// Printf writes a formatted line if the logger is verbose; otherwise it is a no-op.
func (l *Logger) Printf(format string, args ...interface{}) {
	if l == nil || !l.verbose {
		return
	}
	fmt.Fprintf(l.out, format+"\n", args...)
}
