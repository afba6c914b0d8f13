package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() (*SlogLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	h := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewSlogLogger(slog.New(h)), &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	return m
}

func TestLevels(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		level string
		log   func(l Logger)
	}{
		{"DEBUG", func(l Logger) { l.Debug(ctx, "msg") }},
		{"INFO", func(l Logger) { l.Info(ctx, "msg") }},
		{"WARN", func(l Logger) { l.Warn(ctx, "msg") }},
		{"ERROR", func(l Logger) { l.Error(ctx, "msg") }},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l, buf := newTestLogger()
			tt.log(l)
			m := decodeLine(t, buf)
			assert.Equal(t, tt.level, m["level"])
			assert.Equal(t, "msg", m["msg"])
		})
	}
}

func TestWithAddsAttrs(t *testing.T) {
	l, buf := newTestLogger()
	child := l.With("module", "sync_service")
	child.Info(context.Background(), "pushed", "count", 3)

	m := decodeLine(t, buf)
	assert.Equal(t, "sync_service", m["module"])
	assert.Equal(t, float64(3), m["count"])
}
