package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8070, cfg.Server.Port)
	assert.Equal(t, time.Hour, cfg.Alerts.RetentionTTL)
	assert.Equal(t, 5, cfg.Alerts.NotifyThreshold)
	assert.Equal(t, 50, cfg.Reputation.ConfidenceThreshold)
	assert.True(t, cfg.Reputation.PreferIOC)
	assert.Equal(t, 5*time.Second, cfg.Reputation.Timeout)
	assert.Equal(t, 3, cfg.Reputation.MaxRetries)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9090
  api_key: sekrit
alerts:
  notify_threshold: 8
reputation:
  prefer_ioc: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "sekrit", cfg.Server.APIKey)
	assert.Equal(t, 8, cfg.Alerts.NotifyThreshold)
	assert.False(t, cfg.Reputation.PreferIOC)
	// Unset fields keep defaults
	assert.Equal(t, time.Hour, cfg.Alerts.RetentionTTL)
}

func TestLoadBadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
