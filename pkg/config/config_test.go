package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veltrix/chatgate/pkg/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	dir := writeConfig(t, "server:\n  admin_token: secret\n")
	require.NoError(t, config.Load(dir))

	cfg := config.GetConfig()
	assert.Equal(t, 8080, cfg.Server.ProxyPort)
	assert.Equal(t, 8081, cfg.Server.AdminPort)
	assert.Equal(t, "secret", cfg.Server.AdminToken)
	assert.Equal(t, "file", cfg.Storage.Driver)
	assert.Equal(t, 40, cfg.Conversation.MaxMessages)
	assert.Equal(t, 10*time.Minute, cfg.Sweep.Interval)
	assert.Equal(t, time.Hour, cfg.Sweep.Retention)
}

func TestGateConfig_OverridesMergeOverDefaults(t *testing.T) {
	dir := writeConfig(t, `
limits:
  user_minute_limit: 10
  burst_window: 5s
`)
	require.NoError(t, config.Load(dir))

	gateCfg, err := config.GateConfig()
	require.NoError(t, err)

	assert.Equal(t, 10, gateCfg.UserMinuteLimit)
	assert.Equal(t, 5*time.Second, gateCfg.BurstWindow)

	// Untouched knobs keep their defaults.
	assert.Equal(t, 200, gateCfg.UserHourLimit)
	assert.Equal(t, 100000, gateCfg.DailyTokenLimit)
	assert.Equal(t, 1000, gateCfg.IPHourlyLimit)
}

func TestGateConfig_RejectsMalformedDuration(t *testing.T) {
	dir := writeConfig(t, `
limits:
  burst_window: soon
`)
	require.NoError(t, config.Load(dir))

	_, err := config.GateConfig()
	assert.Error(t, err)
}
