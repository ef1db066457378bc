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
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNew_WritesJSONWithServiceAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, Options{App: "attendance-desk", Version: "test", Env: "development", Level: "info"})

	log.Debug("hidden")
	log.Info("loaded attendance", "section_id", "sec-1")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "attendance-desk", line["app"])
	assert.Equal(t, "sec-1", line["section_id"])
	assert.NotContains(t, buf.String(), "hidden")
}
