package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLoggerRenamesKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, " dscd ", "test", slog.LevelInfo)
	logger.Debug("hidden")
	logger.Info("ready", "component", "engine")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "ready", line["message"])
	require.Equal(t, "INFO", line["severity"])
	require.Equal(t, "dscd", line["service"])
	require.Equal(t, "test", line["env"])
	require.Contains(t, line, "timestamp")
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	require.Equal(t, slog.LevelError, ParseLevel("error"))
	require.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestMaskField(t *testing.T) {
	require.Equal(t, RedactedValue, MaskField("token", "secret").Value.String())
	require.Equal(t, "WETH", MaskField("asset", "WETH").Value.String())
	require.Equal(t, "", MaskField("token", "").Value.String())
	require.Contains(t, RedactionAllowlist(), "request_id")
}
