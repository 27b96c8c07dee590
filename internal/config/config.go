// Package config loads spaceplan configuration from a YAML file with
// environment overrides for secrets.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all spaceplan configuration.
type Config struct {
	Oracle  OracleConfig  `yaml:"oracle"`
	Agent   AgentConfig   `yaml:"agent"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
}

// OracleConfig configures the external language-model oracle.
type OracleConfig struct {
	Provider string `yaml:"provider"` // gemini
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Timeout  string `yaml:"timeout"`
}

// AgentConfig bounds the orchestration loop.
type AgentConfig struct {
	MaxIterations int    `yaml:"max_iterations"`
	ToolTimeout   string `yaml:"tool_timeout"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Debug bool `yaml:"debug"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Oracle: OracleConfig{
			Provider: "gemini",
			Model:    "gemini-2.5-flash",
			Timeout:  "90s",
		},
		Agent: AgentConfig{
			MaxIterations: 5,
			ToolTimeout:   "2m",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; environment overrides apply either way.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides lets environment variables win over file values.
// Secrets should come from the environment, not the file.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SPACEPLAN_API_KEY"); v != "" {
		c.Oracle.APIKey = v
	} else if v := os.Getenv("GEMINI_API_KEY"); v != "" && c.Oracle.APIKey == "" {
		c.Oracle.APIKey = v
	}
	if v := os.Getenv("SPACEPLAN_MODEL"); v != "" {
		c.Oracle.Model = v
	}
	if v := os.Getenv("SPACEPLAN_ADDR"); v != "" {
		c.Server.Addr = v
	}
}

// OracleTimeout parses the oracle timeout, falling back to 90s.
func (c *Config) OracleTimeout() time.Duration {
	d, err := time.ParseDuration(c.Oracle.Timeout)
	if err != nil || d <= 0 {
		return 90 * time.Second
	}
	return d
}

// ToolTimeout parses the per-tool timeout, falling back to 2m.
func (c *Config) ToolTimeout() time.Duration {
	d, err := time.ParseDuration(c.Agent.ToolTimeout)
	if err != nil || d <= 0 {
		return 2 * time.Minute
	}
	return d
}

// Validate checks invariants that would otherwise surface deep inside a
// turn.
func (c *Config) Validate() error {
	if c.Agent.MaxIterations < 1 {
		return fmt.Errorf("agent.max_iterations must be >= 1, got %d", c.Agent.MaxIterations)
	}
	switch c.Oracle.Provider {
	case "gemini":
	default:
		return fmt.Errorf("unknown oracle provider %q", c.Oracle.Provider)
	}
	return nil
}
