package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/timmy/immiframe/internal/domain"
)

// Selection modes.
const (
	ModeSearch        = "search"
	ModeSampledSearch = "sampled_search"
	ModeRandom        = "random"
	ModeOnThisDay     = "on_this_day"
)

// DefaultFilterSet names the implicit filter set built from selection.mode
// and selection.filters.
const DefaultFilterSet = "default"

// DefaultMaxSearchResults is the sampled_search pool size. Immich caps a
// smart search page at MaxSearchResults.
const (
	DefaultMaxSearchResults = 250
	MaxSearchResults        = 1000
)

// legacyModes maps the add-on's SELECTOR_TYPE values.
var legacyModes = map[string]string{
	"smart":     ModeSearch,
	"smart-rng": ModeSampledSearch,
}

// NormalizeMode translates legacy selector names; other values pass through.
func NormalizeMode(mode string) string {
	if m, ok := legacyModes[strings.ToLower(strings.TrimSpace(mode))]; ok {
		return m
	}
	return mode
}

// Gap policies for cache slots left empty by failed fetches.
const (
	GapPolicyRenumber = "renumber"
	GapPolicyOmit     = "omit"
)

// Validate checks the whole configuration and reports every problem found.
// The returned error wraps domain.ErrInvalidConfig.
func (c *Config) Validate() error {
	var problems []error
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Errorf(format, args...))
	}

	if c.Immich.URL == "" {
		add("immich.url is required")
	} else if err := validateHTTPURL(c.Immich.URL); err != nil {
		add("immich.url: %v", err)
	}
	if c.Immich.APIKey == "" {
		add("immich.api_key is required")
	}
	if c.Immich.Timeout <= 0 {
		add("immich.timeout must be positive")
	}

	if _, err := cron.ParseStandard(c.Schedule.Cron); err != nil {
		add("schedule.cron %q: %v", c.Schedule.Cron, err)
	}
	if c.Schedule.ShutdownGrace < 0 {
		add("schedule.shutdown_grace must not be negative")
	}

	if strings.TrimSpace(c.Theme.Default) == "" {
		add("theme.default must not be empty")
	}
	if c.Theme.ResolveTimeout <= 0 {
		add("theme.resolve_timeout must be positive")
	}
	seen := make(map[string]bool)
	needsHass := false
	terminal := ""
	for i := range c.Theme.Sources {
		src := &c.Theme.Sources[i]
		if err := src.Validate(); err != nil {
			problems = append(problems, err)
			continue
		}
		if seen[src.Name] || src.Name == domain.DefaultThemeSource || src.Name == domain.FilterSetRotationKey {
			add("theme source %q: duplicate or reserved name", src.Name)
		}
		seen[src.Name] = true
		// a static source with items always yields a theme
		if terminal != "" {
			add("theme source %q is unreachable: static source %q before it always succeeds", src.Name, terminal)
		} else if src.Kind == ThemeKindStatic {
			terminal = src.Name
		}
		if src.Kind == ThemeKindEntity {
			needsHass = true
		}
	}

	if err := validateMode("selection.mode", c.Selection.Mode); err != nil {
		problems = append(problems, err)
	}
	if c.Selection.Count <= 0 {
		add("selection.count must be positive")
	}
	if n := c.Selection.MaxSearchResults; n <= 0 || n > MaxSearchResults {
		add("selection.max_search_results %d: must be between 1 and %d", n, MaxSearchResults)
	}
	if _, _, err := c.Selection.Filters.TakenRange(); err != nil {
		add("selection.filters: %v", err)
	}
	setNames := make(map[string]bool)
	for i, fs := range c.Selection.FilterSets {
		key := fmt.Sprintf("selection.filter_sets[%d]", i)
		if strings.TrimSpace(fs.Name) == "" {
			add("%s: name is required", key)
		} else if setNames[fs.Name] {
			add("%s: duplicate name %q", key, fs.Name)
		}
		setNames[fs.Name] = true
		if fs.Mode != "" {
			if err := validateMode(key+".mode", fs.Mode); err != nil {
				problems = append(problems, err)
			}
		}
		if n := fs.MaxSearchResults; n < 0 || n > MaxSearchResults {
			add("%s.max_search_results %d: must be between 1 and %d", key, n, MaxSearchResults)
		}
		if _, _, err := fs.Filters.TakenRange(); err != nil {
			add("%s.filters: %v", key, err)
		}
	}

	if c.Fetch.Workers <= 0 {
		add("fetch.workers must be positive")
	}
	if c.Fetch.Timeout <= 0 {
		add("fetch.timeout must be positive")
	}

	if c.Cache.Path == "" {
		add("cache.path is required")
	}
	if c.Cache.FileExt == "" || strings.ContainsAny(c.Cache.FileExt, `/\.`) {
		add("cache.file_ext %q: must be a bare extension such as jpg", c.Cache.FileExt)
	}
	if strings.ContainsAny(c.Cache.FilePrefix, `/\`) || strings.HasPrefix(c.Cache.FilePrefix, ".") {
		add("cache.file_prefix %q: must be a plain file name prefix", c.Cache.FilePrefix)
	}
	switch c.Cache.GapPolicy {
	case GapPolicyRenumber, GapPolicyOmit:
	default:
		add("cache.gap_policy %q: must be renumber or omit", c.Cache.GapPolicy)
	}

	if c.Mirror.Enabled {
		// an empty endpoint means AWS S3 itself
		if c.Mirror.Bucket == "" {
			add("mirror: bucket is required when enabled")
		}
	}

	if c.Notify.HomeAssistant.Enabled {
		needsHass = true
		if c.Notify.HomeAssistant.EntityID == "" {
			add("notify.home_assistant.entity_id is required when enabled")
		}
	}
	if needsHass {
		if err := validateHTTPURL(c.HomeAssistant.URL); err != nil {
			add("home_assistant.url: %v", err)
		}
		if c.HomeAssistant.Token == "" {
			add("home_assistant.token is required by the entity theme source or notify sink")
		}
	}
	if c.Notify.MQTT.Enabled {
		if c.Notify.MQTT.Broker == "" {
			add("notify.mqtt.broker is required when enabled")
		}
		if c.Notify.MQTT.QoS > 2 {
			add("notify.mqtt.qos must be 0, 1 or 2")
		}
	}

	switch c.State.Driver {
	case "sqlite", "postgres":
	default:
		add("state.driver %q: must be sqlite or postgres", c.State.Driver)
	}
	if c.State.DSN == "" {
		add("state.dsn is required")
	}

	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		add("server.port %d out of range", c.Server.Port)
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", domain.ErrInvalidConfig, errors.Join(problems...))
}

// TakenRange parses taken_after / taken_before. Both accept a date
// (2006-01-02) or an RFC 3339 timestamp; nil means unbounded.
func (f SelectionFilter) TakenRange() (after, before *time.Time, err error) {
	if after, err = parseFilterTime(f.TakenAfter); err != nil {
		return nil, nil, fmt.Errorf("taken_after: %w", err)
	}
	if before, err = parseFilterTime(f.TakenBefore); err != nil {
		return nil, nil, fmt.Errorf("taken_before: %w", err)
	}
	if after != nil && before != nil && !after.Before(*before) {
		return nil, nil, fmt.Errorf("taken_after must be earlier than taken_before")
	}
	return after, before, nil
}

func parseFilterTime(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid time %q, expected YYYY-MM-DD or RFC 3339", s)
}

func validateMode(key, mode string) error {
	switch mode {
	case ModeSearch, ModeSampledSearch, ModeRandom, ModeOnThisDay:
		return nil
	}
	return fmt.Errorf("%s %q: must be one of search, sampled_search, random, on_this_day", key, mode)
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}
