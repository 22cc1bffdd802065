// Package logging builds the zerolog loggers used across the node.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	FormatJSON  = "json"
	FormatPlain = "plain"
	FormatText  = "text"
)

// New creates a logger writing to stderr in the given format at the given level.
func New(level, format string) (zerolog.Logger, error) {
	return NewWith(os.Stderr, level, format)
}

// NewWith is New with an explicit writer.
func NewWith(w io.Writer, level, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("parse log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	out, err := newWriter(w, format)
	if err != nil {
		return zerolog.Nop(), err
	}

	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}

// Component returns a child logger tagged with the component name.
func Component(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("component", name).Logger()
}

func newWriter(w io.Writer, format string) (io.Writer, error) {
	switch strings.ToLower(format) {
	case FormatPlain, FormatText:
		return newConsoleWriter(w), nil

	case FormatJSON, "":
		return w, nil

	default:
		return nil, fmt.Errorf("unsupported log format: %s", format)
	}
}

// newConsoleWriter formats log messages as plain text for the console.
func newConsoleWriter(w io.Writer) *zerolog.ConsoleWriter {
	return &zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
		FormatLevel: func(i interface{}) string {
			if ll, ok := i.(string); ok {
				return strings.ToUpper(ll)
			}
			return "????"
		},
	}
}
