// ABOUTME: Tests for TOML roster loading
// ABOUTME: Covers registration, default flags, and malformed rosters

package agent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRoster(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agents.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadRoster(t *testing.T) {
	path := writeRoster(t, `
[[agents]]
id = "helper"
name = "Helper"

[[agents]]
id = "oncall"
name = "On-Call Bot"
default = true
`)

	m := NewManager(nil)
	require.NoError(t, LoadRoster(path, m))

	assert.Equal(t, []string{"helper", "oncall"}, m.List())
	assert.Equal(t, "oncall", m.DefaultID())
}

func TestLoadRoster_FirstEntryDefaultWithoutFlag(t *testing.T) {
	path := writeRoster(t, `
[[agents]]
id = "first"

[[agents]]
id = "second"
`)

	m := NewManager(nil)
	require.NoError(t, LoadRoster(path, m))
	assert.Equal(t, "first", m.DefaultID())
}

func TestLoadRoster_EmptyRosterRejected(t *testing.T) {
	path := writeRoster(t, ``)

	m := NewManager(nil)
	require.Error(t, LoadRoster(path, m))
}

func TestLoadRoster_MissingIDRejected(t *testing.T) {
	path := writeRoster(t, `
[[agents]]
name = "Nameless"
`)

	m := NewManager(nil)
	require.Error(t, LoadRoster(path, m))
}

func TestLoadRoster_MissingFile(t *testing.T) {
	m := NewManager(nil)
	require.Error(t, LoadRoster(filepath.Join(t.TempDir(), "absent.toml"), m))
}
