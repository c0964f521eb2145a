package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "5000", cfg.HTTPPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 3*time.Second, cfg.ConfirmMinDelay)
	assert.Equal(t, 5*time.Second, cfg.ConfirmMaxDelay)
	assert.Equal(t, 0.0, cfg.FailureRate)
	assert.True(t, cfg.SeedParticipants)
	assert.Equal(t, 2, cfg.RequiredApprovals)
	assert.Equal(t, 15*time.Second, cfg.ShutdownTimeout)
}

func TestFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
http_port = "7000"
confirm_min_delay = "1s"
confirm_max_delay = "2s"
failure_rate = 0.25
`), 0o644))

	t.Setenv("LEDGER_HTTP_PORT", "7100")
	t.Setenv("LEDGER_LOG_LEVEL", "debug")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "7100", cfg.HTTPPort)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, time.Second, cfg.ConfirmMinDelay)
	assert.Equal(t, 2*time.Second, cfg.ConfirmMaxDelay)
	assert.Equal(t, 0.25, cfg.FailureRate)
}

func TestMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := LoadConfig("")
		require.NoError(t, err)
		return cfg
	}

	cfg := valid()
	cfg.HTTPPort = ""
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.ConfirmMaxDelay = time.Second
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.FailureRate = 1.5
	assert.Error(t, cfg.Validate())

	cfg = valid()
	cfg.RequiredApprovals = 0
	assert.Error(t, cfg.Validate())
}
