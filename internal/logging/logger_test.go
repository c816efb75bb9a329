package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "debug", "json")
	require.NoError(t, err)

	logger.Debug("redirect", slog.String("match", "/login"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "redirect", line["msg"])
	assert.Equal(t, "/login", line["match"])
}

func TestNewLoggerLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "warn", "logfmt")
	require.NoError(t, err)

	logger.Info("hidden")
	assert.Zero(t, buf.Len())

	logger.Warn("shown")
	assert.Contains(t, buf.String(), "msg=shown")
}

func TestNewLoggerText(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "info", "text")
	require.NoError(t, err)

	logger.Info("listening", "addr", ":8080")
	assert.Contains(t, buf.String(), "listening")
}

func TestNewLoggerRejectsUnknown(t *testing.T) {
	_, err := NewLogger(&bytes.Buffer{}, "loud", "json")
	require.ErrorIs(t, err, ErrUnknownLogLevel)

	_, err = NewLogger(&bytes.Buffer{}, "info", "xml")
	require.ErrorIs(t, err, ErrUnknownLogFormat)
}
