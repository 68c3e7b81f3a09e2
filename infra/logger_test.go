package infra

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestLoggerClientWritesErrorAttribute(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerClient(&buf, "info")

	logger.DebugWithContextf(context.Background(), "hidden %d", 1)
	logger.ErrorWithContextf(context.Background(), errors.New("boom"), "[VM] Failed to create VM %s", "vm-1")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[VM] Failed to create VM vm-1")
	assert.Contains(t, out, "error=boom")
}

func TestFanoutHandlerWritesToEveryHandler(t *testing.T) {
	var a, b bytes.Buffer
	handler := &fanoutHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&a, nil),
		slog.NewTextHandler(&b, &slog.HandlerOptions{Level: slog.LevelError}),
	}}
	logger := slog.New(handler).With("component", "test")

	logger.Info("hello")
	assert.Contains(t, a.String(), "component=test")
	assert.Empty(t, b.String())

	logger.Error("bad")
	assert.Contains(t, b.String(), "bad")
}
