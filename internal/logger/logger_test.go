package logger

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_LogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"INFO", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		cfg := Config{Level: tt.level}
		assert.Equal(t, tt.expected, cfg.LogLevel(), "level %q", tt.level)
	}
}

func TestConfig_IsJSON(t *testing.T) {
	assert.True(t, Config{Format: "json"}.IsJSON())
	assert.True(t, Config{Format: "JSON"}.IsJSON())
	assert.False(t, Config{Format: "text"}.IsJSON())
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := context.Background()

	_, ok := RequestIDFromContext(ctx)
	assert.False(t, ok)

	id := GenerateRequestID()
	ctx = WithRequestID(ctx, id)

	got, ok := RequestIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, id, got)
}

func TestFromContext_NoRequestID(t *testing.T) {
	log := FromContext(context.Background())
	assert.NotNil(t, log)
}
