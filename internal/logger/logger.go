// Package logger provides leveled logging for weaver.
// Debug, Info and Section print only in verbose mode (the --verbose flag).
// Warn and Error always print.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
)

type level int

const (
	levelDebug level = iota
	levelInfo
	levelWarn
	levelError
)

var prefixes = [...]string{
	levelDebug: "[DEBUG] ",
	levelInfo:  "[INFO] ",
	levelWarn:  "[WARN] ",
	levelError: "[ERROR] ",
}

var (
	verbose atomic.Bool

	// mu serialises writes so lines from concurrent goroutines never
	// interleave.
	mu  sync.Mutex
	out io.Writer = os.Stderr
)

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) { verbose.Store(v) }

// IsVerbose reports whether verbose logging is on.
func IsVerbose() bool { return verbose.Load() }

// SetOutput redirects all log lines. It returns the previous writer so
// callers can restore it.
func SetOutput(w io.Writer) io.Writer {
	mu.Lock()
	defer mu.Unlock()
	prev := out
	out = w
	return prev
}

func Debug(format string, args ...any) { logf(levelDebug, format, args...) }
func Info(format string, args ...any)  { logf(levelInfo, format, args...) }
func Warn(format string, args ...any)  { logf(levelWarn, format, args...) }
func Error(format string, args ...any) { logf(levelError, format, args...) }

// Section prints a banner in verbose mode.
func Section(name string) {
	if verbose.Load() {
		write("\n=== " + name + " ===\n")
	}
}

func logf(l level, format string, args ...any) {
	if l < levelWarn && !verbose.Load() {
		return
	}
	write(prefixes[l] + fmt.Sprintf(format, args...) + "\n")
}

func write(line string) {
	mu.Lock()
	defer mu.Unlock()
	_, _ = io.WriteString(out, line)
}
