package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNewDefaultsOutput(t *testing.T) {
	logger, err := New(Config{Level: "warn"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))
	assert.True(t, logger.Core().Enabled(zap.WarnLevel))
}

func TestNativeConfigWritesToStderr(t *testing.T) {
	cfg := NativeConfig("debug")
	assert.Equal(t, []string{"stderr"}, cfg.OutputPaths)

	logger, err := New(cfg)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zap.DebugLevel))
}

func TestConfigFor(t *testing.T) {
	assert.Equal(t, []string{"stderr"}, ConfigFor("info", true, true).OutputPaths)
	assert.Equal(t, "debug", ConfigFor("warn", true, false).Level)

	cfg := ConfigFor("warn", false, false)
	assert.Equal(t, "warn", cfg.Level)
	assert.False(t, cfg.Development)
	assert.Equal(t, "info", ConfigFor("", false, false).Level)
}

func TestWithCarriesFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := Wrap(zap.New(core)).Named("transport").With(Port("port_1"), Channel("pri(unsubscribe)"))

	logger.Info("dispatched")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "transport", entry.LoggerName)
	assert.Equal(t, "port_1", entry.ContextMap()["port"])
	assert.Equal(t, "pri(unsubscribe)", entry.ContextMap()["channel"])
}

func TestWrapNil(t *testing.T) {
	assert.NotPanics(t, func() {
		Wrap(nil).Info("discarded")
	})
}
