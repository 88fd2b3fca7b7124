package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestInit_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := Init("warn", "json", &buf)

	l.Info("dropped")
	l.Warn("kept", "post_id", 7)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "kept", rec["msg"])
	assert.EqualValues(t, 7, rec["post_id"])
}

func TestInit_TextHasNoColorOffTerminal(t *testing.T) {
	var buf bytes.Buffer
	l := Init("info", "text", &buf)
	l.Info("tick finished", "published", 3)

	out := buf.String()
	assert.Contains(t, out, "tick finished")
	assert.Contains(t, out, "published=3")
	assert.NotContains(t, out, "\x1b[")
}
