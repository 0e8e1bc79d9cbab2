package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sessionAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("session", "abc"),
		slog.Int("tick", 7),
		slog.String("transport", ""),
	}
}

func TestContextHandler_AddsAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewContextHandler(slog.NewTextHandler(&buf, nil), sessionAttrs))

	logger.Info("applied")

	out := buf.String()
	assert.Contains(t, out, "session=abc")
	assert.Contains(t, out, "tick=7")
	assert.NotContains(t, out, "transport=", "empty values are skipped")
}

func TestContextHandler_RecordAttrWins(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewContextHandler(slog.NewTextHandler(&buf, nil), sessionAttrs))

	logger.Info("corrected", "tick", 12)

	out := buf.String()
	assert.Contains(t, out, "tick=12")
	assert.Equal(t, 1, strings.Count(out, "tick="))
}

func TestContextHandler_NilProvider(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewContextHandler(slog.NewTextHandler(&buf, nil), nil))

	logger.Info("plain")
	assert.Contains(t, buf.String(), "plain")
}

func TestContextHandler_WithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	h := NewContextHandler(slog.NewTextHandler(&buf, nil), sessionAttrs)

	logger := slog.New(h.WithAttrs([]slog.Attr{slog.String("component", "engine")}))
	logger.Info("with attrs")
	assert.Contains(t, buf.String(), "component=engine")
	assert.Contains(t, buf.String(), "session=abc")

	assert.Equal(t, h, h.WithGroup(""))
}
