package app

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/lazyflow/internal/config"
)

func TestNewLogger_LevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Default()
	cfg.LogLevel = "warn"
	cfg.LogFormat = "json"

	logger := newLogger(cfg, &buf)
	logger.Info("hidden")
	logger.Warn("shown", "slot", "/wf/op/in/0")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "shown", rec["msg"])
	assert.Equal(t, "lazyflow", rec["service"])
	assert.Equal(t, "/wf/op/in/0", rec["slot"])
}

func TestNewLogger_UnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Default()
	cfg.LogLevel = "verbose"

	logger := newLogger(cfg, &buf)
	logger.Debug("quiet")
	assert.Empty(t, buf.String())
	logger.Info("loud")
	assert.Contains(t, buf.String(), "msg=loud")
}
