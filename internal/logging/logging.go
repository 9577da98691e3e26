package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Setup initializes a zerolog.Logger based on the requested format and level.
// format can be "text" (human-friendly console) or "json" (structured). An
// unknown level falls back to info.
func Setup(format, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}).Level(lvl).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}
