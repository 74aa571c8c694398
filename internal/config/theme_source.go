package config

import (
	"fmt"
	"os"
	"time"
)

// Theme source kinds.
const (
	ThemeKindStatic = "static"
	ThemeKindFile   = "file"
	ThemeKindEntity = "entity"
	ThemeKindOpenAI = "openai"
	ThemeKindGemini = "gemini"
)

// DefaultThemeSourceTimeout bounds a single theme source when none is configured.
const DefaultThemeSourceTimeout = 15 * time.Second

// ThemeSourceConfig defines one entry in the theme fallback chain.
// Only the fields relevant to Kind are read.
type ThemeSourceConfig struct {
	Name    string        `mapstructure:"name"`    // Unique identifier, used to tag the produced theme
	Kind    string        `mapstructure:"kind"`    // static, file, entity, openai, gemini
	Timeout time.Duration `mapstructure:"timeout"` // Per-source timeout

	Items []string `mapstructure:"items"` // static
	Path  string   `mapstructure:"path"`  // file

	EntityID string `mapstructure:"entity_id"` // entity

	// openai / gemini
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	APIKeyEnv   string  `mapstructure:"api_key_env"`
	BaseURL     string  `mapstructure:"base_url"`
	BaseURLEnv  string  `mapstructure:"base_url_env"`
	Prompt      string  `mapstructure:"prompt"`
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// ResolveEnvVars resolves environment variable references in the configuration.
// Direct values (APIKey, BaseURL) take precedence if already set. Generative
// kinds fall back to the provider's conventional key variable.
func (c *ThemeSourceConfig) ResolveEnvVars() {
	keyEnv := c.APIKeyEnv
	if keyEnv == "" {
		switch c.Kind {
		case ThemeKindOpenAI:
			keyEnv = "OPENAI_API_KEY"
		case ThemeKindGemini:
			keyEnv = "GEMINI_API_KEY"
		}
	}
	if keyEnv != "" && c.APIKey == "" {
		c.APIKey = os.Getenv(keyEnv)
	}

	if c.BaseURLEnv != "" && c.BaseURL == "" {
		c.BaseURL = os.Getenv(c.BaseURLEnv)
	}
	if c.Kind == ThemeKindOpenAI && c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
}

// GetTimeout returns the configured timeout or DefaultThemeSourceTimeout.
func (c *ThemeSourceConfig) GetTimeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultThemeSourceTimeout
}

// Validate checks that the source has the fields its kind needs.
// Returns an error describing the first validation failure, or nil if valid.
func (c *ThemeSourceConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("theme source: name is required")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("theme source %q: timeout must not be negative", c.Name)
	}

	switch c.Kind {
	case ThemeKindStatic:
		if len(c.Items) == 0 {
			return fmt.Errorf("theme source %q: static source needs at least one item", c.Name)
		}
	case ThemeKindFile:
		if c.Path == "" {
			return fmt.Errorf("theme source %q: path is required", c.Name)
		}
	case ThemeKindEntity:
		if c.EntityID == "" {
			return fmt.Errorf("theme source %q: entity_id is required", c.Name)
		}
	case ThemeKindOpenAI:
		if c.Model == "" {
			return fmt.Errorf("theme source %q: model is required", c.Name)
		}
	case ThemeKindGemini:
		if c.Model == "" {
			return fmt.Errorf("theme source %q: model is required", c.Name)
		}
		if c.APIKey == "" {
			return fmt.Errorf("theme source %q: api_key is required (set directly or via api_key_env)", c.Name)
		}
	default:
		return fmt.Errorf("theme source %q: unknown kind %q", c.Name, c.Kind)
	}

	return nil
}
