// ABOUTME: TOML roster loading for scripted agents
// ABOUTME: Parses an agents.toml file and registers the defined agents with a Manager

package agent

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// RosterEntry defines one agent in the roster file.
type RosterEntry struct {
	ID      string `toml:"id"`
	Name    string `toml:"name"`
	Default bool   `toml:"default"`
}

// Roster is the parsed agents.toml file.
//
//	[[agents]]
//	id = "default-agent"
//	name = "Default Agent"
//	default = true
type Roster struct {
	Agents []RosterEntry `toml:"agents"`
}

// LoadRoster parses a roster file and registers a scripted agent for each
// entry. The entry flagged default (or the first entry, absent a flag)
// becomes the manager's default agent.
func LoadRoster(path string, m *Manager) error {
	var roster Roster
	if _, err := toml.DecodeFile(path, &roster); err != nil {
		return fmt.Errorf("parsing roster file: %w", err)
	}

	if len(roster.Agents) == 0 {
		return fmt.Errorf("roster file %s defines no agents", path)
	}

	for _, entry := range roster.Agents {
		if entry.ID == "" {
			return fmt.Errorf("roster entry missing id")
		}
		if err := m.Register(NewScriptedAgent(entry.ID, entry.Name)); err != nil {
			return fmt.Errorf("registering agent %s: %w", entry.ID, err)
		}
		if entry.Default {
			m.SetDefault(entry.ID)
		}
	}

	return nil
}
