// ABOUTME: Tests for log level parsing and the text and JSON log handlers
// ABOUTME: Color is disabled in TestMain so output can be matched as plain text

package main

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/stakeholder-chat/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestSetupLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "info", Format: "text"}, &buf)

	logger.Debug("hidden")
	logger.With("component", "engine").WithGroup("req").Info("sent", "id", "m1")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "INF sent")
	assert.Contains(t, out, " component=engine")
	assert.Contains(t, out, " req.id=m1")
}

func TestSetupLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "debug", Format: "json"}, &buf)

	logger.Debug("history loaded", "messages", 3)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "DEBUG", rec["level"])
	assert.Equal(t, "history loaded", rec["msg"])
	assert.EqualValues(t, 3, rec["messages"])
}
