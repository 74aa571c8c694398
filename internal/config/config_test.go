package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/timmy/immiframe/internal/domain"
)

const sampleYAML = `
immich:
  url: http://immich.local:2283
  api_key: secret-immich-key
schedule:
  cron: "*/30 * * * *"
theme:
  default: sunsets
  sources:
    - name: llm
      kind: openai
      model: gpt-4o-mini
      api_key: sk-test
      timeout: 5s
    - name: weekly
      kind: static
      items: [beach, mountains]
selection:
  mode: search
  filters:
    people: [Alice, Bob]
    taken_after: "2020-01-01"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFileAndDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "http://immich.local:2283", cfg.Immich.URL)
	assert.Equal(t, 30*time.Second, cfg.Immich.Timeout)
	assert.Equal(t, "*/30 * * * *", cfg.Schedule.Cron)
	assert.True(t, cfg.Schedule.RunOnStartup)
	assert.Equal(t, "sunsets", cfg.Theme.Default)
	assert.Equal(t, ModeSearch, cfg.Selection.Mode)
	assert.Equal(t, 10, cfg.Selection.Count)
	assert.Equal(t, []string{"Alice", "Bob"}, cfg.Selection.Filters.People)
	assert.Equal(t, 4, cfg.Fetch.Workers)
	assert.Equal(t, "photo_", cfg.Cache.FilePrefix)
	assert.Equal(t, GapPolicyRenumber, cfg.Cache.GapPolicy)
	assert.True(t, cfg.Notify.OnPartial)
	assert.True(t, cfg.Rotation.AdvanceOnPartial)

	require.Len(t, cfg.Theme.Sources, 2)
	assert.Equal(t, []string{"beach", "mountains"}, cfg.Theme.Sources[1].Items)
	assert.Equal(t, DefaultThemeSourceTimeout, cfg.Theme.Sources[1].GetTimeout())
	assert.Equal(t, 5*time.Second, cfg.Theme.Sources[0].GetTimeout())
	assert.Equal(t, "https://api.openai.com/v1", cfg.Theme.Sources[0].BaseURL)
	assert.Equal(t, DefaultMaxSearchResults, cfg.Selection.MaxSearchResults)
	assert.Equal(t, []FilterSet{{
		Name:             DefaultFilterSet,
		Mode:             ModeSearch,
		MaxSearchResults: DefaultMaxSearchResults,
		Filters:          cfg.Selection.Filters,
	}}, cfg.Selection.Sets())

	assert.NoError(t, cfg.Validate())
}

func TestLegacySettings(t *testing.T) {
	t.Setenv("NUM_PHOTOS", "5")
	t.Setenv("UPDATE_INTERVAL_MINUTES", "15")
	t.Setenv("HASS_IMG_PATH", "/tmp/frame")

	cfg, err := Load(writeConfig(t, "immich:\n  url: http://x\n"))
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Selection.Count)
	assert.Equal(t, "@every 15m", cfg.Schedule.Cron)
	assert.Equal(t, "/tmp/frame", cfg.Cache.Path)
}

func TestLegacySelectorType(t *testing.T) {
	tests := []struct {
		selector string
		want     string
	}{
		{"smart", ModeSearch},
		{"smart-rng", ModeSampledSearch},
		{"random", ModeRandom},
	}

	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			t.Setenv("IMMICH_URL", "http://immich.local:2283")
			t.Setenv("IMMICH_API_KEY", "legacy-key")
			t.Setenv("SELECTOR_TYPE", tt.selector)
			t.Setenv("SEARCH_QUERY", "beach")

			cfg, err := Load(writeConfig(t, "cache:\n  path: /tmp/frame\n"))
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Selection.Mode)
			assert.Equal(t, "beach", cfg.Theme.Default)
			assert.NoError(t, cfg.Validate())
		})
	}
}

func TestFilterSets(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
immich:
  url: http://immich.local:2283
  api_key: k
selection:
  mode: search
  max_search_results: 300
  filter_sets:
    - name: kids
      mode: smart-rng
      max_search_results: 50
      filters:
        people: [Alice]
    - name: trips
      filters:
        city: Porto
`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	sets := cfg.Selection.Sets()
	require.Len(t, sets, 2)
	assert.Equal(t, "kids", sets[0].Name)
	assert.Equal(t, ModeSampledSearch, sets[0].Mode)
	assert.Equal(t, 50, sets[0].MaxSearchResults)
	assert.Equal(t, []string{"Alice"}, sets[0].Filters.People)
	assert.Equal(t, ModeSearch, sets[1].Mode, "mode is inherited")
	assert.Equal(t, 300, sets[1].MaxSearchResults)
	assert.Equal(t, "Porto", sets[1].Filters.City)
}

func TestLegacySettingsDoNotMaskExplicitKeys(t *testing.T) {
	t.Setenv("NUM_PHOTOS", "5")

	cfg, err := Load(writeConfig(t, "selection:\n  count: 7\n"))
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Selection.Count)
}

func TestOverridesWin(t *testing.T) {
	t.Setenv("IMMICH_URL", "http://from-env")

	cfg, err := Load(writeConfig(t, sampleYAML),
		WithOverride("immich.url", "http://from-flag"),
		WithOverride("immich.api_key", ""),
	)
	require.NoError(t, err)
	assert.Equal(t, "http://from-flag", cfg.Immich.URL)
	assert.Equal(t, "secret-immich-key", cfg.Immich.APIKey)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"missing immich url", func(c *Config) { c.Immich.URL = "" }},
		{"bad immich scheme", func(c *Config) { c.Immich.URL = "ftp://immich" }},
		{"bad cron", func(c *Config) { c.Schedule.Cron = "every hour" }},
		{"unknown mode", func(c *Config) { c.Selection.Mode = "latest" }},
		{"zero count", func(c *Config) { c.Selection.Count = 0 }},
		{"bad gap policy", func(c *Config) { c.Cache.GapPolicy = "shift" }},
		{"dotted extension", func(c *Config) { c.Cache.FileExt = ".jpg" }},
		{"empty static source", func(c *Config) { c.Theme.Sources[1].Items = nil }},
		{"source after static", func(c *Config) {
			c.Theme.Sources = append(c.Theme.Sources, ThemeSourceConfig{Name: "words", Kind: ThemeKindFile, Path: "/tmp/words.txt"})
		}},
		{"second static source", func(c *Config) {
			c.Theme.Sources = append(c.Theme.Sources, ThemeSourceConfig{Name: "seasons", Kind: ThemeKindStatic, Items: []string{"spring"}})
		}},
		{"reserved filter set key", func(c *Config) { c.Theme.Sources[0].Name = domain.FilterSetRotationKey }},
		{"search pool too large", func(c *Config) { c.Selection.MaxSearchResults = MaxSearchResults + 1 }},
		{"unnamed filter set", func(c *Config) { c.Selection.FilterSets = []FilterSet{{Mode: ModeRandom}} }},
		{"duplicate filter set", func(c *Config) { c.Selection.FilterSets = []FilterSet{{Name: "a"}, {Name: "a"}} }},
		{"filter set mode", func(c *Config) { c.Selection.FilterSets = []FilterSet{{Name: "a", Mode: "latest"}} }},
		{"filter set range", func(c *Config) {
			c.Selection.FilterSets = []FilterSet{{Name: "a", Filters: SelectionFilter{TakenAfter: "yesterday"}}}
		}},
		{"unknown kind", func(c *Config) { c.Theme.Sources[0].Kind = "oracle" }},
		{"reserved name", func(c *Config) { c.Theme.Sources[0].Name = domain.DefaultThemeSource }},
		{"entity without token", func(c *Config) {
			c.Theme.Sources = append(c.Theme.Sources, ThemeSourceConfig{Name: "ha", Kind: ThemeKindEntity, EntityID: "input_text.theme"})
		}},
		{"gemini without key", func(c *Config) {
			c.Theme.Sources = append(c.Theme.Sources, ThemeSourceConfig{Name: "g", Kind: ThemeKindGemini, Model: "gemini-2.0-flash"})
		}},
		{"inverted taken range", func(c *Config) {
			c.Selection.Filters.TakenAfter = "2024-01-01"
			c.Selection.Filters.TakenBefore = "2023-01-01"
		}},
		{"mqtt without broker", func(c *Config) { c.Notify.MQTT.Enabled = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, sampleYAML))
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrInvalidConfig), "want ErrInvalidConfig, got %v", err)
		})
	}
}

func TestTakenRange(t *testing.T) {
	after, before, err := SelectionFilter{TakenAfter: "2021-06-01", TakenBefore: "2022-06-01T10:00:00Z"}.TakenRange()
	require.NoError(t, err)
	require.NotNil(t, after)
	require.NotNil(t, before)
	assert.Equal(t, 2021, after.Year())
	assert.Equal(t, time.June, before.Month())

	after, before, err = SelectionFilter{}.TakenRange()
	require.NoError(t, err)
	assert.Nil(t, after)
	assert.Nil(t, before)
}

func TestDumpRedactsSecrets(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, cfg.Dump(&buf))

	out := buf.String()
	assert.NotContains(t, out, "secret-immich-key")
	assert.NotContains(t, out, "sk-test")
	assert.Contains(t, out, redacted)
	assert.Contains(t, out, "sunsets")
}
