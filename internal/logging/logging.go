// Package logging configures the global zerolog logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultLevel keeps the report free of request chatter.
const DefaultLevel = zerolog.WarnLevel

// Options choose where log lines go and how verbose they are.
type Options struct {
	// Level is a zerolog level name; empty means warn.
	Level string
	// File, when set, receives the log instead of stderr.
	File string
}

// Setup installs the global logger. The returned close function releases the
// log file, if any.
func Setup(opts Options, stderr io.Writer) (func() error, error) {
	level := DefaultLevel
	if name := strings.TrimSpace(opts.Level); name != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(name))
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}

	var (
		out     io.Writer = zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.Kitchen}
		closeFn           = func() error { return nil }
	)
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = f
		closeFn = f.Close
	}

	log.Logger = zerolog.New(out).Level(level).With().Timestamp().Logger()
	return closeFn, nil
}
