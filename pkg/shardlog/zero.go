package shardlog

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var Zero = NewZeroLogger(os.Stdout)

// NewZeroLogger builds a console logger writing to out.
func NewZeroLogger(out io.Writer) *zerolog.Logger {
	output := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	return &logger
}

// UpdateZeroLogLevel replaces the global logger with a copy at the given level.
func UpdateZeroLogLevel(logLevel string) error {
	level := parseLevel(logLevel)
	zeroLogger := Zero.With().Logger().Level(level)
	Zero = &zeroLogger
	return nil
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warning", "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
