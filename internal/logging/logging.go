// Package logging configures structured logging with zerolog.
//
// Everything is written to stderr: stdout is reserved for the MCP stdio
// framing and must never carry log output.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide root logger.
var Logger zerolog.Logger

// Options controls logger initialization.
type Options struct {
	// Level is the minimum level, parsed with ParseLevel.
	Level string
	// Pretty enables human-readable console output instead of JSON.
	Pretty bool
	// Output overrides the destination. Defaults to os.Stderr.
	Output io.Writer
}

// Init initializes the root logger.
func Init(opts Options) {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	zerolog.TimeFieldFormat = time.RFC3339

	Logger = zerolog.New(out).
		Level(ParseLevel(opts.Level)).
		With().
		Timestamp().
		Logger()
}

// ParseLevel parses a log level string (case-insensitive).
// Unrecognized values fall back to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO":
		return zerolog.InfoLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	case "FATAL":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Component returns a child logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}

// Session returns a child logger tagged with a session id.
func Session(id string) zerolog.Logger {
	return Logger.With().Str("session_id", id).Logger()
}

func init() {
	Init(Options{Level: "INFO"})
}
