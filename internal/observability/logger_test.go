package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/couchcryptid/clima-ingest-service/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSONCarriesProfile(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.Config{Profile: config.ProfileFor("test"), LogLevel: "info", LogFormat: "json"}

	newLogger(&buf, cfg).Info("observation saved", "city", "Monterrey")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "observation saved", line["msg"])
	assert.Equal(t, "test", line["environment"])
	assert.Equal(t, "Clima-Test", line["function"])
	assert.Equal(t, "/aws/lambda/Clima-Test", line["log_group"])
	assert.Equal(t, "Monterrey", line["city"])
}

func TestNewLogger_TextAndLevel(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.Config{Profile: config.ProfileFor("dev"), LogLevel: "warn", LogFormat: "text"}
	logger := newLogger(&buf, cfg)

	logger.Info("dropped")
	assert.Empty(t, buf.String())

	logger.Warn("processing city failed")
	assert.Contains(t, buf.String(), "msg=\"processing city failed\"")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}
