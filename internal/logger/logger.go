// Package logger builds the zerolog.Logger every component logs through.
package logger

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// New builds a console-friendly zerolog logger at the given level name
// ("debug", "info", "warn", "error"; unrecognized values fall back to
// info).
func New(level string) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(os.Stdout).Level(lvl).With().Timestamp().Logger()
}
