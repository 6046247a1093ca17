// Package logging builds the process logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a JSON logger on stdout. dev defaults to debug; an explicit level wins.
func New(env, level, service string) zerolog.Logger {
	return newWithWriter(os.Stdout, env, level, service)
}

func newWithWriter(w io.Writer, env, level, service string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	l := zerolog.New(w).With().Timestamp().Str("service", service).Logger()

	lvl := zerolog.InfoLevel
	if env == "dev" {
		lvl = zerolog.DebugLevel
	}
	if level != "" {
		if parsed, err := zerolog.ParseLevel(level); err == nil && parsed != zerolog.NoLevel {
			lvl = parsed
		}
	}
	return l.Level(lvl)
}
