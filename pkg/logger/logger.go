// Package logger builds the zerolog root logger every component derives
// its scoped logger from.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds logger configuration
type Config struct {
	Level  string // trace, debug, info, warn, error; anything else means info
	Pretty bool   // Human-readable console output instead of JSON
}

// New builds the root logger and applies its level globally. Components
// scope it with .With().Str(...) rather than constructing their own.
func New(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	return zerolog.New(output(cfg.Pretty)).With().Timestamp().Caller().Logger()
}

// output returns JSON on stdout, or the console writer in dev mode.
func output(pretty bool) io.Writer {
	if pretty {
		return zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
	}
	return os.Stdout
}

// SetGlobalLogger replaces zerolog's package-level logger so code using
// log.Logger shares the configured output.
func SetGlobalLogger(l zerolog.Logger) {
	log.Logger = l
}
