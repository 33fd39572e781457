// ABOUTME: Tests for configuration loading
// ABOUTME: Covers YAML parsing, env expansion, duration parsing, defaults, and validation

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "localhost:8080"
database:
  path: "/tmp/gateway.db"
auth:
  jwt_secret: "super-secret"
memory:
  recent_cache_size: 200
  important_cache_size: 75
  cleanup_interval: "30m"
routing:
  handler_timeout: "10s"
agents:
  roster_path: "/etc/relay/agents.toml"
  default_agent: "oncall"
channels:
  mock:
    enabled: true
notes:
  dir: "/var/lib/relay/notes"
logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "localhost:8080", cfg.Server.HTTPAddr)
	assert.Equal(t, "/tmp/gateway.db", cfg.Database.Path)
	assert.Equal(t, "super-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, 200, cfg.Memory.RecentCacheSize)
	assert.Equal(t, 75, cfg.Memory.ImportantCacheSize)
	assert.Equal(t, 30*time.Minute, cfg.Memory.CleanupInterval)
	assert.Equal(t, 10*time.Second, cfg.Routing.HandlerTimeout)
	assert.Equal(t, "/etc/relay/agents.toml", cfg.Agents.RosterPath)
	assert.Equal(t, "oncall", cfg.Agents.DefaultAgent)
	assert.True(t, cfg.Channels.Mock.Enabled)
	assert.Equal(t, "mock", cfg.Channels.Mock.ID, "mock channel id defaults when enabled")
	assert.Equal(t, "/var/lib/relay/notes", cfg.Notes.Dir)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "localhost:8080"
database:
  path: "/tmp/gateway.db"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultHandlerTimeout, cfg.Routing.HandlerTimeout)
	assert.Equal(t, DefaultCleanupInterval, cfg.Memory.CleanupInterval)
	assert.Empty(t, cfg.Auth.JWTSecret)
	assert.False(t, cfg.Channels.Mock.Enabled)
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_RELAY_SECRET", "from-env")

	path := writeConfig(t, `
server:
  http_addr: "localhost:8080"
database:
  path: "/tmp/gateway.db"
auth:
  jwt_secret: "${TEST_RELAY_SECRET}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: "localhost:8080"
database:
  path: "/tmp/gateway.db"
routing:
  handler_timeout: "soon"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler_timeout")
}

func TestLoad_MissingRequiredFields(t *testing.T) {
	path := writeConfig(t, `
database:
  path: "/tmp/gateway.db"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http_addr")

	path = writeConfig(t, `
server:
  http_addr: "localhost:8080"
`)
	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.path")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
