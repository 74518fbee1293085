package logging_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/freight-engine/config"
	"github.com/warp/freight-engine/logging"
)

func TestNew_WritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "freight.log")

	logger, closer := logging.New(config.LoggingConfig{File: path, MaxSizeMB: 1, MaxBackups: 1})
	logger.Printf("[Dispatch] assigned %s", "ORD-1")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[Dispatch] assigned ORD-1")
}

func TestNew_StdoutOnly(t *testing.T) {
	logger, closer := logging.New(config.LoggingConfig{})

	require.NotNil(t, logger)
	assert.NoError(t, closer.Close())
}
