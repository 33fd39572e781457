// ABOUTME: Configuration loading and parsing for relay-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete relay-gateway configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Memory   MemoryConfig   `yaml:"memory"`
	Routing  RoutingConfig  `yaml:"routing"`
	Agents   AgentsConfig   `yaml:"agents"`
	Channels ChannelsConfig `yaml:"channels"`
	Notes    NotesConfig    `yaml:"notes"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration.
// An empty jwt_secret disables API authentication.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// MemoryConfig holds cache sizing and cleanup timing configuration
type MemoryConfig struct {
	RecentCacheSize    int `yaml:"recent_cache_size"`
	ImportantCacheSize int `yaml:"important_cache_size"`

	CleanupInterval time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	CleanupIntervalRaw string `yaml:"cleanup_interval"`
}

// RoutingConfig holds message routing configuration
type RoutingConfig struct {
	HandlerTimeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	HandlerTimeoutRaw string `yaml:"handler_timeout"`
}

// AgentsConfig holds agent roster configuration
type AgentsConfig struct {
	RosterPath   string `yaml:"roster_path"`
	DefaultAgent string `yaml:"default_agent"`
}

// ChannelsConfig holds configuration for all channel integrations
type ChannelsConfig struct {
	Mock MockChannelConfig `yaml:"mock"`
}

// MockChannelConfig holds the development mock channel configuration
type MockChannelConfig struct {
	Enabled bool   `yaml:"enabled"`
	ID      string `yaml:"id"`
}

// NotesConfig holds daily notes configuration.
// An empty dir disables the notes endpoints.
type NotesConfig struct {
	Dir string `yaml:"dir"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults applied when the corresponding fields are absent.
const (
	DefaultHandlerTimeout  = 30 * time.Second
	DefaultCleanupInterval = time.Hour
	DefaultMockChannelID   = "mock"
)

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills absent fields with their defaults.
func (c *Config) applyDefaults() {
	if c.Routing.HandlerTimeout == 0 {
		c.Routing.HandlerTimeout = DefaultHandlerTimeout
	}
	if c.Memory.CleanupInterval == 0 {
		c.Memory.CleanupInterval = DefaultCleanupInterval
	}
	if c.Channels.Mock.Enabled && c.Channels.Mock.ID == "" {
		c.Channels.Mock.ID = DefaultMockChannelID
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Memory.RecentCacheSize < 0 {
		return fmt.Errorf("memory.recent_cache_size must not be negative")
	}
	if c.Memory.ImportantCacheSize < 0 {
		return fmt.Errorf("memory.important_cache_size must not be negative")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Routing.HandlerTimeoutRaw != "" {
		cfg.Routing.HandlerTimeout, err = time.ParseDuration(cfg.Routing.HandlerTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing handler_timeout %q: %w", cfg.Routing.HandlerTimeoutRaw, err)
		}
	}

	if cfg.Memory.CleanupIntervalRaw != "" {
		cfg.Memory.CleanupInterval, err = time.ParseDuration(cfg.Memory.CleanupIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing cleanup_interval %q: %w", cfg.Memory.CleanupIntervalRaw, err)
		}
	}

	return nil
}
