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

	assert.Equal(t, ":8084", cfg.ListenAddr)
	assert.Equal(t, 3, cfg.RateLimit.OracleLimit)
	assert.Equal(t, time.Minute, cfg.RateLimit.OracleWindow)
	assert.Equal(t, 30*time.Second, cfg.Bridge.Timeout)
	assert.Equal(t, 1<<20, cfg.Bridge.MaxOutputBytes)
	assert.Equal(t, 30*time.Minute, cfg.Lifecycle.SessionTTL)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
listen_addr: ":9090"
log_level: debug
auth:
  shared_secret: topsecret
rate_limit:
  oracle_limit: 5
tools:
  get_price:
    command: /usr/local/bin/iora
    args: ["get-price"]
    description: spot price lookup
  feed_oracle:
    command: /usr/local/bin/iora
    args: ["feed-oracle"]
    route_class: oracle
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "topsecret", cfg.Auth.SharedSecret)
	assert.Equal(t, 5, cfg.RateLimit.OracleLimit)
	// Unset keys keep their defaults.
	assert.Equal(t, 60, cfg.RateLimit.GeneralLimit)

	require.Len(t, cfg.Tools, 2)
	assert.Equal(t, "/usr/local/bin/iora", cfg.Tools["get_price"].Command)
	assert.Equal(t, "oracle", cfg.Tools["feed_oracle"].RouteClass)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`listen_addr: ":9090"`), 0o644))
	t.Setenv("ORACLEGATE_LISTEN_ADDR", ":7070")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.ListenAddr)
}

func TestValidateRejectsBadConfig(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Bridge.Timeout = 0
	assert.Error(t, cfg.Validate())

	cfg, _ = Load("")
	cfg.Tools = map[string]Tool{"broken": {}}
	assert.Error(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
