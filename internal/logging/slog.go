package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// ServiceName is the instrumentation scope used for the otel bridge.
const ServiceName = "ticksync"

// swapped in tests
var (
	osStdout = os.Stdout
	osPipe   = os.Pipe
)

// SlogManager owns the process-wide slog.Logger. Outputs are collected with
// the With* methods and assembled by Setup.
type SlogManager struct {
	logger   *slog.Logger
	provider *sdklog.LoggerProvider

	context ContextProvider
	extra   []slog.Handler
	console bool
}

func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// WithContext stamps every record with the attributes provider returns at
// the time of the call, typically the session id and current tick.
func (m *SlogManager) WithContext(provider ContextProvider) *SlogManager {
	m.context = provider
	return m
}

// WithConsole keeps stdout as an output even when Setup is given a file.
func (m *SlogManager) WithConsole() *SlogManager {
	m.console = true
	return m
}

// WithHandler adds an output such as the GELF handler.
func (m *SlogManager) WithHandler(h slog.Handler) *SlogManager {
	m.extra = append(m.extra, h)
	return m
}

// levelFromString accepts the names slog understands, case-insensitively.
// Anything else is info.
func levelFromString(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func utcTimestamps(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.TimeKey {
		return a
	}
	if t, ok := a.Value.Any().(time.Time); ok {
		a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
	}
	return a
}

// Setup replaces the logger. Text records go to file, to stdout when file is
// nil, or to both after WithConsole. A nil provider leaves the otel bridge
// out of the chain.
func (m *SlogManager) Setup(file io.Writer, level string, provider *sdklog.LoggerProvider) {
	m.provider = provider
	opts := &slog.HandlerOptions{Level: levelFromString(level), ReplaceAttr: utcTimestamps}

	outputs := make([]io.Writer, 0, 2)
	if file != nil {
		outputs = append(outputs, file)
	}
	if file == nil || m.console {
		outputs = append(outputs, osStdout)
	}

	chain := make([]slog.Handler, 0, len(outputs)+len(m.extra)+1)
	for _, w := range outputs {
		chain = append(chain, slog.NewTextHandler(w, opts))
	}
	chain = append(chain, m.extra...)
	if provider != nil {
		chain = append(chain, otelslog.NewHandler(ServiceName, otelslog.WithLoggerProvider(provider)))
	}

	var h slog.Handler = NewMultiHandler(chain...)
	if m.context != nil {
		h = NewContextHandler(h, m.context)
	}

	m.logger = slog.New(h)
	m.logger.Info("Logging initialized", "level", level)
}

// Logger falls back to slog.Default until Setup has run.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger != nil {
		return m.logger
	}
	return slog.Default()
}

// Flush pushes buffered otel records to the exporter.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}
	return m.provider.ForceFlush(ctx)
}
