package logging

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/rs/zerolog"
)

// ZerologConfig configures the structured logger used by the storage,
// influx and dispatcher layers.
type ZerologConfig struct {
	Level string
	// Console receives human-readable output. Nil disables it.
	Console io.Writer
	// File receives JSON lines. Nil disables it.
	File io.Writer
	// Graylog receives JSON lines as GELF messages. Nil disables it.
	Graylog io.Writer
}

// OpenGraylog dials the GELF UDP endpoint at address.
func OpenGraylog(address string) (*gelf.Writer, error) {
	w, err := gelf.NewWriter(address)
	if err != nil {
		return nil, fmt.Errorf("graylog writer %s: %w", address, err)
	}
	return w, nil
}

// NewGELFHandler returns a slog handler writing JSON records to w.
func NewGELFHandler(w io.Writer, level string) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: levelFromString(level)})
}

// NewZerolog builds a zerolog.Logger fanning out to the configured writers.
func NewZerolog(cfg ZerologConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var writers []io.Writer
	if cfg.Console != nil {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        cfg.Console,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		})
	}
	if cfg.File != nil {
		writers = append(writers, cfg.File)
	}

	if cfg.Graylog != nil {
		writers = append(writers, cfg.Graylog)
	}

	if len(writers) == 0 {
		return zerolog.Nop()
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Str("service", ServiceName).
		Logger()
	return logger
}
