package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew_Levels(t *testing.T) {
	quiet, err := New(false)
	require.NoError(t, err)
	assert.False(t, quiet.Core().Enabled(zapcore.DebugLevel))
	assert.True(t, quiet.Core().Enabled(zapcore.InfoLevel))

	loud, err := New(true)
	require.NoError(t, err)
	assert.True(t, loud.Core().Enabled(zapcore.DebugLevel))
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "solverbench.log")
	logger, err := New(true, path)
	require.NoError(t, err)

	logger.Warn("solver run ended in error")
	_ = logger.Sync()

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "WARN")
	assert.Contains(t, string(b), "solver run ended in error")
}

func TestNew_BadPath(t *testing.T) {
	_, err := New(false, filepath.Join(t.TempDir(), "missing", "dir", "x.log"))
	assert.Error(t, err)
}
