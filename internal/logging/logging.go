// Package logging provides file logging for the autocomp server and client.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultLogDir returns the default log directory following the XDG
// Base Directory spec: $XDG_STATE_HOME/autocomp/logs, falling back to
// ~/.local/state/autocomp/logs.
func DefaultLogDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "autocomp", "logs")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "autocomp", "logs")
	}
	return filepath.Join(home, ".local", "state", "autocomp", "logs")
}

type level int

const (
	levelInfo level = iota
	levelDebug
)

// Logger wraps the standard logger with level filtering and file
// output, plus a mirrored write of every line to stderr when verbose.
type Logger struct {
	level    level
	logger   *log.Logger
	file     *os.File
	filePath string
	verbose  bool
}

// Setup creates a new logger that writes to a timestamped log file
// under logDir. namePrefix becomes part of the filename (e.g.
// "autocomp_server"). cmdArgs should be os.Args, logged at startup.
func Setup(logDir, namePrefix string, verbose bool, cmdArgs []string) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", logDir, err)
	}

	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("%s_run_%s.log", namePrefix, timestamp)
	filePath := filepath.Join(logDir, filename)

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file %s: %w", filePath, err)
	}

	lvl := levelInfo
	if verbose {
		lvl = levelDebug
	}

	l := &Logger{
		level:    lvl,
		logger:   log.New(file, "", 0),
		file:     file,
		filePath: filePath,
		verbose:  verbose,
	}

	l.Info("Command: %s", strings.Join(cmdArgs, " "))
	l.Info("Log file: %s", filePath)
	if verbose {
		l.Info("Debug level logging enabled")
	}

	return l, nil
}

// Close closes the log file.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

func (l *Logger) write(tag, format string, args ...any) {
	if l == nil {
		return
	}
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	line := fmt.Sprintf("%s ["+tag+"] "+format, append([]any{timestamp}, args...)...)
	l.logger.Print(line)
	if l.verbose {
		fmt.Fprintln(os.Stderr, line)
	}
}

// Info logs an info-level message.
func (l *Logger) Info(format string, args ...any) { l.write("INFO", format, args...) }

// Debug logs a debug-level message, only when verbose mode is enabled.
func (l *Logger) Debug(format string, args ...any) {
	if l == nil || l.level < levelDebug {
		return
	}
	l.write("DEBUG", format, args...)
}

// Warn logs a warning-level message.
func (l *Logger) Warn(format string, args ...any) { l.write("WARN", format, args...) }

// Error logs an error-level message.
func (l *Logger) Error(format string, args ...any) { l.write("ERROR", format, args...) }

// Writer returns an io.Writer over the log file; io.Discard if disabled.
func (l *Logger) Writer() io.Writer {
	if l == nil || l.file == nil {
		return io.Discard
	}
	return l.file
}
