package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Console(t *testing.T) {
	logger, err := New(Config{Mode: "production", Level: "warn"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(-1), "debug is below warn")
	assert.True(t, logger.Core().Enabled(1))
}

func TestNew_RejectsBadLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	require.Error(t, err)
}

func TestNew_FileRequiresName(t *testing.T) {
	_, err := New(Config{FileEnable: true})
	require.Error(t, err)
}

func TestNew_WritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storefront.log")
	logger, err := New(Config{Mode: "production", FileEnable: true, Filename: path})
	require.NoError(t, err)

	logger.Info("order placed")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"order placed"`)
}
