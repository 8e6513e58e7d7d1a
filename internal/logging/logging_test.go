package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestLoggerDefaultsToNop(t *testing.T) {
	SetLogger(nil)
	l := Logger()
	require.NotNil(t, l)
	assert.False(t, l.Core().Enabled(zapcore.ErrorLevel))
}

func TestSetLogger(t *testing.T) {
	t.Cleanup(func() { SetLogger(nil) })

	dev := zap.NewExample()
	SetLogger(dev)
	assert.Same(t, dev, Logger())
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, lvl)

	_, err = ParseLevel("chatty")
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	t.Run("empty output is a no-op logger", func(t *testing.T) {
		l, err := New("debug", "")
		require.NoError(t, err)
		assert.False(t, l.Core().Enabled(zapcore.ErrorLevel))
	})

	t.Run("file output receives entries", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "loader.log")
		l, err := New("info", path)
		require.NoError(t, err)

		l.Info("vfs registered", zap.String("backend", "donutdb"))
		l.Debug("not written")
		_ = l.Sync()

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "vfs registered")
		assert.Contains(t, string(data), "donutdb")
		assert.NotContains(t, string(data), "not written")
	})

	t.Run("bad level is rejected", func(t *testing.T) {
		_, err := New("chatty", "stderr")
		assert.Error(t, err)
	})
}
