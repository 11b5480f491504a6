// Package config provides configuration management for the Workflow Execution
// Core CLI.
//
// It uses Viper to load configuration from a YAML file and environment
// variables, producing a type-safe Config with default values and automatic
// file creation on first run. Loaded values are not validated.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration for the wec CLI.
// It is loaded from ~/.wec/config.yaml and can be overridden by environment
// variables prefixed WEC_ (e.g. WEC_LOGGING_LEVEL).
type Config struct {
	Logging      LoggingConfig      `mapstructure:"logging" yaml:"logging"`
	EventLog     EventLogConfig     `mapstructure:"event_log" yaml:"event_log"`
	Entitlements EntitlementsConfig `mapstructure:"entitlements" yaml:"entitlements"`
	Retry        RetryConfig        `mapstructure:"retry" yaml:"retry"`
	Planner      PlannerConfig      `mapstructure:"planner" yaml:"planner"`
}

// LoggingConfig contains configuration for application logging.
type LoggingConfig struct {
	// Level is the log level ("debug", "info", "warn", "error"). Overridable
	// by the LOG_LEVEL environment variable per spec.md §6.
	Level string `mapstructure:"level" yaml:"level"`
	// File is an optional path for persistent file logging.
	File string `mapstructure:"file" yaml:"file,omitempty"`
}

// EventLogConfig controls where and how the Event Log (C1) is persisted.
type EventLogConfig struct {
	// Dir is the log directory, default "./.paws_logs" per spec.md §6.
	Dir string `mapstructure:"dir" yaml:"dir"`
	// Backend selects the Log implementation: "json" (default, reference
	// policy) or "sqlite" (modernc.org/sqlite-backed alternate backend).
	Backend string `mapstructure:"backend" yaml:"backend"`
}

// EntitlementsConfig controls default Entitlements Checker (C4) behavior.
type EntitlementsConfig struct {
	// StrictEmptyList, when true, treats an empty entitlements list as deny
	// rather than the spec-default permissive allow. Off by default; exists
	// so operators running untrusted-planner workflows can tighten the
	// default without editing every workflow document.
	StrictEmptyList bool `mapstructure:"strict_empty_list" yaml:"strict_empty_list"`
}

// RetryConfig tunes the on_failure `retry` strategy (§4.6) when a workflow
// step does not specify its own max_retries.
type RetryConfig struct {
	DefaultMaxRetries int `mapstructure:"default_max_retries" yaml:"default_max_retries"`
}

// PlannerConfig configures the thin A2A-based Planner client (out of scope
// per spec.md §1, wired here only as an external collaborator address).
type PlannerConfig struct {
	// AgentURL is the base URL of the A2A-compliant planning agent.
	AgentURL string `mapstructure:"agent_url" yaml:"agent_url,omitempty"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level: "info",
		},
		EventLog: EventLogConfig{
			Dir:     "./.paws_logs",
			Backend: "json",
		},
		Entitlements: EntitlementsConfig{
			StrictEmptyList: false,
		},
		Retry: RetryConfig{
			DefaultMaxRetries: 3,
		},
	}
}

// Load reads configuration from the default location (~/.wec/config.yaml),
// creating it with defaults if absent, and merges with environment
// variables.
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	return LoadFromPath(filepath.Join(homeDir, ".wec", "config.yaml"))
}

// LoadFromPath reads configuration from a specific file path, creating it
// with default values if it doesn't exist yet.
func LoadFromPath(path string) (*Config, error) {
	path = expandPath(path)

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeConfigFile(path, Default()); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Example: WEC_EVENT_LOG_BACKEND=sqlite
	v.SetEnvPrefix("WEC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Logging.File = expandPath(cfg.Logging.File)
	cfg.EventLog.Dir = expandPath(cfg.EventLog.Dir)

	// LOG_LEVEL (unprefixed, per spec.md §6) takes priority over the
	// config file when set, matching the source's environment-variable
	// override of its own logging.basicConfig level.
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		cfg.Logging.Level = lvl
	}

	return cfg, nil
}

// writeConfigFile writes a Config struct to a YAML file.
func writeConfigFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
