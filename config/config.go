// Package config loads assistant configuration from a TOML file with
// DRAFTSET_* environment overrides on top. Environment always wins, so a
// deployment can override a checked-in config file without editing it.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/skosovsky/draftset/chat"
)

// Duration wraps time.Duration so TOML files can say "30s" or "2m".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// ProviderConfig selects and configures the LLM backend.
type ProviderConfig struct {
	Type    string `toml:"type"`
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
}

// ArchiveConfig points at the document archive.
type ArchiveConfig struct {
	BaseURL string `toml:"base_url"`
}

// Config is the full assistant configuration.
type Config struct {
	Provider       ProviderConfig `toml:"provider"`
	Archive        ArchiveConfig  `toml:"archive"`
	MaxToolRounds  int            `toml:"max_tool_rounds"`
	RequestTimeout Duration       `toml:"request_timeout"`
	SystemPrompt   string         `toml:"system_prompt"`
}

// Default returns the built-in configuration: a local Ollama provider and
// the orchestrator's standard round bound.
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			Type: "ollama",
		},
		MaxToolRounds:  chat.DefaultMaxToolRounds,
		RequestTimeout: Duration{30 * time.Second},
	}
}

// Load reads a TOML config file, applies environment overrides, and
// validates the result. An empty path skips the file and uses defaults plus
// environment only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DRAFTSET_PROVIDER"); v != "" {
		c.Provider.Type = v
	}
	if v := os.Getenv("DRAFTSET_BASE_URL"); v != "" {
		c.Provider.BaseURL = v
	}
	if v := os.Getenv("DRAFTSET_API_KEY"); v != "" {
		c.Provider.APIKey = v
	}
	if v := os.Getenv("DRAFTSET_MODEL"); v != "" {
		c.Provider.Model = v
	}
	if v := os.Getenv("DRAFTSET_ARCHIVE_URL"); v != "" {
		c.Archive.BaseURL = v
	}
	if v := os.Getenv("DRAFTSET_MAX_TOOL_ROUNDS"); v != "" {
		if rounds, err := strconv.Atoi(v); err == nil {
			c.MaxToolRounds = rounds
		}
	}
	if v := os.Getenv("DRAFTSET_REQUEST_TIMEOUT"); v != "" {
		if timeout, err := time.ParseDuration(v); err == nil {
			c.RequestTimeout = Duration{timeout}
		}
	}
	if v := os.Getenv("DRAFTSET_SYSTEM_PROMPT"); v != "" {
		c.SystemPrompt = v
	}
}

// Validate checks the configuration for values that would fail later in a
// less obvious way.
func (c *Config) Validate() error {
	switch c.Provider.Type {
	case "openai", "anthropic", "ollama":
	default:
		return fmt.Errorf("unknown provider type: %q (want openai, anthropic, or ollama)", c.Provider.Type)
	}
	if c.MaxToolRounds < 1 {
		return fmt.Errorf("max_tool_rounds must be at least 1, got %d", c.MaxToolRounds)
	}
	if c.RequestTimeout.Duration <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", c.RequestTimeout.Duration)
	}
	return nil
}
