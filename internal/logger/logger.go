package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New в development читаемый вывод в консоль, иначе JSON в stdout
func New(environment string) zerolog.Logger {
	level := zerolog.InfoLevel
	if environment == "development" {
		level = zerolog.DebugLevel
	}

	if environment == "development" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).Level(level).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stdout).Level(level).With().Timestamp().Str("service", "jobcard-service").Logger()
}
