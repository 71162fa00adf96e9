package monitoring

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")
	assert.True(t, called, "custom logger was not called")

	// nil installs a no-op that must not call the previous logger
	called = false
	SetLogger(nil)
	Logf("test message")
	assert.False(t, called, "no-op logger should not have triggered callback")
}

func TestLogf_Default(t *testing.T) {
	require.NotNil(t, Logf)
	assert.NotPanics(t, func() { Logf("test message: %s", "value") })
}

func TestNewLogger(t *testing.T) {
	t.Run("writes to console", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewLogger(LoggerOptions{Level: "debug", Output: &buf, NoColor: true})
		require.NoError(t, err)

		logger.Debugf("tracker state %s", "TRACKING")
		assert.Contains(t, buf.String(), "tracker state TRACKING")
	})

	t.Run("respects level", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewLogger(LoggerOptions{Level: "warn", Output: &buf, NoColor: true})
		require.NoError(t, err)

		logger.Infof("hidden")
		assert.Empty(t, buf.String())
	})

	t.Run("rejects unknown level", func(t *testing.T) {
		_, err := NewLogger(LoggerOptions{Level: "loud"})
		assert.Error(t, err)
	})

	t.Run("rotating file", func(t *testing.T) {
		var buf bytes.Buffer
		file := filepath.Join(t.TempDir(), "autoaim.log")
		logger, err := NewLogger(LoggerOptions{Output: &buf, File: file, NoColor: true})
		require.NoError(t, err)

		logger.Infof("hello file")
		data, err := os.ReadFile(file)
		require.NoError(t, err)
		assert.Contains(t, string(data), "hello file")
	})
}
