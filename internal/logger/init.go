// Package logger configures the process-wide zerolog logger used by every
// pipeline stage and adapter.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// New returns a zerolog.Logger at info level.
func New() *zerolog.Logger {
	return NewWithLevel("info")
}

// NewWithLevel creates a zerolog.Logger at the given level, pretty-printing
// to the console when ENV=development and emitting structured JSON otherwise.
func NewWithLevel(level string) *zerolog.Logger {
	setLevel(level)

	var output io.Writer = os.Stdout
	if os.Getenv("ENV") == "development" {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
			NoColor:    false,
		}
	}

	l := zerolog.New(output).With().Timestamp().Caller().Logger()
	return &l
}

// SetLevel adjusts the process-wide log level at runtime.
func SetLevel(level string) {
	setLevel(level)
}

func setLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "fatal":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	case "panic":
		zerolog.SetGlobalLevel(zerolog.PanicLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
