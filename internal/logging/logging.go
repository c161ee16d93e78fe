// ABOUTME: charmbracelet/log setup for the CLI
// ABOUTME: Applies the configured level and routes output to stderr, a file, or both
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Options controls where and how much is logged
type Options struct {
	Level string
	File  string
	Debug bool

	// Quiet drops stderr output; used while the TUI owns the terminal
	Quiet bool
}

// ParseLevel maps a config string onto a log level
func ParseLevel(s string) (log.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return log.InfoLevel, nil
	case "debug", "trace":
		return log.DebugLevel, nil
	case "warn", "warning":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	case "fatal":
		return log.FatalLevel, nil
	default:
		return log.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// Setup configures the default logger. The returned closer releases the
// log file, if one was opened.
func Setup(opts Options) (func() error, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	if opts.Debug {
		level = log.DebugLevel
	}

	closer := func() error { return nil }
	var writers []io.Writer
	if !opts.Quiet {
		writers = append(writers, os.Stderr)
	}
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, f)
		closer = f.Close
	}

	var out io.Writer = io.Discard
	switch len(writers) {
	case 1:
		out = writers[0]
	case 2:
		out = io.MultiWriter(writers...)
	}

	logger := log.NewWithOptions(out, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Level:           level,
	})
	log.SetDefault(logger)

	return closer, nil
}
