// Package logging configures the process-wide zerolog logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init sets the global level from LOG_LEVEL (debug, info, warn, error;
// default info). LOG_FORMAT=console writes human-readable lines to
// stderr; anything else keeps JSON.
func Init() {
	SetLevel(os.Getenv("LOG_LEVEL"))
	log.Logger = New(os.Stderr, os.Getenv("LOG_FORMAT"))
}

// SetLevel applies a textual level. Unknown values select info.
func SetLevel(level string) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn", "warning":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// New builds a timestamped logger writing to w in the given format.
func New(w io.Writer, format string) zerolog.Logger {
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: w}
	}
	return zerolog.New(w).With().Timestamp().Logger()
}
