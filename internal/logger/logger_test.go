package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/loyaltyclub/backend/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNewJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	log := New(config.LoggerConfig{Level: "info", Format: "json"}, &buf)

	log.Debug("hidden")
	log.Info("reward credited", "referrer", "42", "points", 80)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"referrer":"42"`)
	assert.Contains(t, out, `"points":80`)
}

func TestNewTextLogger(t *testing.T) {
	var buf bytes.Buffer
	log := New(config.LoggerConfig{Level: "warn"}, &buf)

	log.Info("skipped")
	log.Warn("level failed", "level", 2)

	out := buf.String()
	assert.NotContains(t, out, "skipped")
	assert.Contains(t, out, "level failed")
}
