package telemetry

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// LoggerConfig describes the process logger.
type LoggerConfig struct {
	ServiceName string
	Version     string
	Level       string

	// Pretty writes human-readable console output instead of JSON.
	Pretty bool

	// Output defaults to os.Stdout.
	Output io.Writer
}

// NewLogger builds the structured process logger.
func NewLogger(cfg LoggerConfig) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		var err error
		level, err = zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("LOG_LEVEL: %w", err)
		}
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", cfg.ServiceName).
		Str("version", cfg.Version).
		Logger(), nil
}
