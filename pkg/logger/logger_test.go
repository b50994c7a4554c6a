package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNewRejectsBadFormat(t *testing.T) {
	_, err := New(Config{Level: "info", Format: "xml"})
	assert.Error(t, err)
}

func TestNewWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "co-wx.log")

	log, err := New(Config{Level: "debug", Format: "json", FilePath: path})
	require.NoError(t, err)

	log.Named("test").Info("hello", String("station", "KJFK"), Int("bins", 9))
	_ = log.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"station":"KJFK"`)
	assert.Contains(t, string(data), `"logger":"test"`)
}
