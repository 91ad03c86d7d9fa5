package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fatih/color"
)

var (
	infoTag  = color.New(color.FgGreen).Sprint("INFO ")
	warnTag  = color.New(color.FgYellow).Sprint("WARN ")
	errorTag = color.New(color.FgRed, color.Bold).Sprint("ERROR")
)

// Logger writes timestamped, color-tagged status lines to the console and,
// when a log directory is configured, plain copies to a session log file.
// A nil *Logger is valid and discards everything.
type Logger struct {
	mu      sync.Mutex
	console io.Writer
	errOut  io.Writer
	file    *os.File
}

// New creates a Logger. logDir may be empty for console-only output.
func New(logDir string) (*Logger, error) {
	l := &Logger{console: os.Stdout, errOut: os.Stderr}

	if logDir != "" {
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		path := filepath.Join(logDir, "liveclient.log")
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
		}
		l.file = file
	}

	return l, nil
}

// Info writes a formatted info-level status line.
func (l *Logger) Info(format string, v ...any) {
	if l == nil {
		return
	}
	l.write(l.console, infoTag, "INFO ", format, v...)
}

// Warning writes a formatted warning-level status line.
func (l *Logger) Warning(format string, v ...any) {
	if l == nil {
		return
	}
	l.write(l.console, warnTag, "WARN ", format, v...)
}

// Error writes a formatted error-level status line to stderr.
func (l *Logger) Error(format string, v ...any) {
	if l == nil {
		return
	}
	l.write(l.errOut, errorTag, "ERROR", format, v...)
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *Logger) write(out io.Writer, tag, plainTag, format string, v ...any) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	ts := time.Now().Format("2006/01/02 15:04:05")
	msg := fmt.Sprintf(format, v...)
	fmt.Fprintf(out, "%s %s %s\n", ts, tag, msg)
	if l.file != nil {
		fmt.Fprintf(l.file, "%s %s %s\n", ts, plainTag, msg)
	}
}
