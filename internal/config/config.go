package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Immich        ImmichConfig        `mapstructure:"immich"`
	Schedule      ScheduleConfig      `mapstructure:"schedule"`
	Theme         ThemeConfig         `mapstructure:"theme"`
	Selection     SelectionConfig     `mapstructure:"selection"`
	Fetch         FetchConfig         `mapstructure:"fetch"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Mirror        MirrorConfig        `mapstructure:"mirror"`
	Notify        NotifyConfig        `mapstructure:"notify"`
	HomeAssistant HomeAssistantConfig `mapstructure:"home_assistant"`
	State         StateConfig         `mapstructure:"state"`
	Rotation      RotationConfig      `mapstructure:"rotation"`
	Server        ServerConfig        `mapstructure:"server"`

	// effective settings as viper resolved them, used by Dump
	settings map[string]interface{}
}

type ImmichConfig struct {
	URL            string        `mapstructure:"url"`
	APIKey         string        `mapstructure:"api_key"`
	Timeout        time.Duration `mapstructure:"timeout"`
	PeopleCacheTTL time.Duration `mapstructure:"people_cache_ttl"`
}

type ScheduleConfig struct {
	Cron          string        `mapstructure:"cron"`
	RunOnStartup  bool          `mapstructure:"run_on_startup"`
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace"`
}

type ThemeConfig struct {
	Default        string              `mapstructure:"default"`
	ResolveTimeout time.Duration       `mapstructure:"resolve_timeout"`
	Sources        []ThemeSourceConfig `mapstructure:"sources"`
}

type SelectionConfig struct {
	Mode             string          `mapstructure:"mode"`
	Count            int             `mapstructure:"count"`
	Backfill         bool            `mapstructure:"backfill"`
	MaxSearchResults int             `mapstructure:"max_search_results"` // sampled_search pool size
	Filters          SelectionFilter `mapstructure:"filters"`
	FilterSets       []FilterSet     `mapstructure:"filter_sets"`
}

// FilterSet is a named selection mode with its own filters. When several are
// configured each run uses the next one.
type FilterSet struct {
	Name             string          `mapstructure:"name"`
	Mode             string          `mapstructure:"mode"`
	MaxSearchResults int             `mapstructure:"max_search_results"`
	Filters          SelectionFilter `mapstructure:"filters"`
}

// Sets returns the filter sets in rotation order. Without filter_sets there is
// a single set named DefaultFilterSet built from mode and filters. Empty mode
// and max_search_results fall back to the selection-level values.
func (c SelectionConfig) Sets() []FilterSet {
	if len(c.FilterSets) == 0 {
		return []FilterSet{{
			Name:             DefaultFilterSet,
			Mode:             c.Mode,
			MaxSearchResults: c.MaxSearchResults,
			Filters:          c.Filters,
		}}
	}
	sets := make([]FilterSet, len(c.FilterSets))
	for i, fs := range c.FilterSets {
		if fs.Mode == "" {
			fs.Mode = c.Mode
		}
		if fs.MaxSearchResults == 0 {
			fs.MaxSearchResults = c.MaxSearchResults
		}
		sets[i] = fs
	}
	return sets
}

// SelectionFilter narrows random selection. People are names, resolved to IDs at run time.
type SelectionFilter struct {
	FavoritesOnly bool     `mapstructure:"favorites_only"`
	AlbumIDs      []string `mapstructure:"album_ids"`
	People        []string `mapstructure:"people"`
	City          string   `mapstructure:"city"`
	TakenAfter    string   `mapstructure:"taken_after"`
	TakenBefore   string   `mapstructure:"taken_before"`
}

type FetchConfig struct {
	Workers int           `mapstructure:"workers"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type CacheConfig struct {
	Path       string `mapstructure:"path"`
	FilePrefix string `mapstructure:"file_prefix"`
	FileExt    string `mapstructure:"file_ext"`
	GapPolicy  string `mapstructure:"gap_policy"`
}

type MirrorConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	Prefix    string `mapstructure:"prefix"`
	PublicURL string `mapstructure:"public_url"`
}

type NotifyConfig struct {
	OnPartial     bool                `mapstructure:"on_partial"`
	HomeAssistant HomeAssistantNotify `mapstructure:"home_assistant"`
	MQTT          MQTTConfig          `mapstructure:"mqtt"`
	Shoutrrr      ShoutrrrConfig      `mapstructure:"shoutrrr"`
}

// HomeAssistantNotify writes the theme into an input_text helper.
type HomeAssistantNotify struct {
	Enabled  bool   `mapstructure:"enabled"`
	EntityID string `mapstructure:"entity_id"`
}

type MQTTConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Broker   string        `mapstructure:"broker"`
	ClientID string        `mapstructure:"client_id"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	Topic    string        `mapstructure:"topic"`
	QoS      byte          `mapstructure:"qos"`
	Retain   bool          `mapstructure:"retain"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type ShoutrrrConfig struct {
	URLs []string `mapstructure:"urls"`
}

// HomeAssistantConfig is the shared connection used by the entity theme source
// and the Home Assistant notify sink.
type HomeAssistantConfig struct {
	URL     string        `mapstructure:"url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type StateConfig struct {
	Driver       string `mapstructure:"driver"` // sqlite, postgres
	DSN          string `mapstructure:"dsn"`
	HistoryLimit int    `mapstructure:"history_limit"`
}

type RotationConfig struct {
	AdvanceOnPartial bool `mapstructure:"advance_on_partial"`
}

type ServerConfig struct {
	Enabled bool       `mapstructure:"enabled"`
	Port    int        `mapstructure:"port"`
	Mode    string     `mapstructure:"mode"`
	CORS    CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

// Option adjusts the viper instance after file and env sources are bound.
// Values set through an Option win over everything else.
type Option func(v *viper.Viper)

// WithOverride forces key to value. Empty strings are ignored so unset CLI flags
// do not mask the file or environment.
func WithOverride(key string, value interface{}) Option {
	return func(v *viper.Viper) {
		if s, ok := value.(string); ok && s == "" {
			return
		}
		v.Set(key, value)
	}
}

func Load(configPath string, opts ...Option) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	bindEnv(v)
	applyLegacy(v)

	for _, opt := range opts {
		opt(v)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for i := range cfg.Theme.Sources {
		cfg.Theme.Sources[i].ResolveEnvVars()
	}
	for i := range cfg.Selection.FilterSets {
		cfg.Selection.FilterSets[i].Mode = NormalizeMode(cfg.Selection.FilterSets[i].Mode)
	}
	cfg.settings = v.AllSettings()

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("immich.timeout", 30*time.Second)
	v.SetDefault("immich.people_cache_ttl", time.Hour)

	v.SetDefault("schedule.cron", "0 * * * *")
	v.SetDefault("schedule.run_on_startup", true)
	v.SetDefault("schedule.shutdown_grace", 30*time.Second)

	v.SetDefault("theme.default", "family")
	v.SetDefault("theme.resolve_timeout", 60*time.Second)

	v.SetDefault("selection.mode", "random")
	v.SetDefault("selection.count", 10)
	v.SetDefault("selection.backfill", true)
	v.SetDefault("selection.max_search_results", DefaultMaxSearchResults)
	v.SetDefault("selection.filters.favorites_only", false)

	v.SetDefault("fetch.workers", 4)
	v.SetDefault("fetch.timeout", 20*time.Second)

	v.SetDefault("cache.path", "/config/www/immich")
	v.SetDefault("cache.file_prefix", "photo_")
	v.SetDefault("cache.file_ext", "jpg")
	v.SetDefault("cache.gap_policy", GapPolicyRenumber)

	v.SetDefault("mirror.enabled", false)
	v.SetDefault("mirror.use_ssl", true)
	v.SetDefault("mirror.bucket", "immiframe")
	v.SetDefault("mirror.prefix", "frame/")

	v.SetDefault("notify.on_partial", true)
	v.SetDefault("notify.home_assistant.enabled", false)
	v.SetDefault("notify.home_assistant.entity_id", "input_text.immich_theme")
	v.SetDefault("notify.mqtt.enabled", false)
	v.SetDefault("notify.mqtt.client_id", "immiframe")
	v.SetDefault("notify.mqtt.topic", "immiframe/theme")
	v.SetDefault("notify.mqtt.qos", 1)
	v.SetDefault("notify.mqtt.retain", true)
	v.SetDefault("notify.mqtt.timeout", 10*time.Second)

	v.SetDefault("home_assistant.url", "http://supervisor/core")
	v.SetDefault("home_assistant.timeout", 10*time.Second)

	v.SetDefault("state.driver", "sqlite")
	v.SetDefault("state.dsn", "./data/immiframe.db")
	v.SetDefault("state.history_limit", 200)

	v.SetDefault("rotation.advance_on_partial", true)

	v.SetDefault("server.enabled", true)
	v.SetDefault("server.port", 8099)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
}

// bindEnv binds secrets and the environment names the Home Assistant add-on used.
func bindEnv(v *viper.Viper) {
	v.BindEnv("immich.url", "IMMICH_URL")
	v.BindEnv("immich.api_key", "IMMICH_API_KEY")
	v.BindEnv("home_assistant.url", "HASS_URL")
	v.BindEnv("home_assistant.token", "HASS_TOKEN", "SUPERVISOR_TOKEN")
	v.BindEnv("notify.mqtt.broker", "MQTT_BROKER")
	v.BindEnv("notify.mqtt.username", "MQTT_USERNAME")
	v.BindEnv("notify.mqtt.password", "MQTT_PASSWORD")
	v.BindEnv("notify.mqtt.topic", "MQTT_TOPIC")
	v.BindEnv("mirror.endpoint", "S3_ENDPOINT")
	v.BindEnv("mirror.access_key", "S3_ACCESS_KEY")
	v.BindEnv("mirror.secret_key", "S3_SECRET_KEY")
	v.BindEnv("mirror.bucket", "S3_BUCKET")
	v.BindEnv("mirror.region", "S3_REGION")
	v.BindEnv("mirror.public_url", "S3_PUBLIC_URL")
	v.BindEnv("selection.mode", "SELECTOR_TYPE")
	v.BindEnv("selection.filters.city", "CITY_FILTER")
	v.BindEnv("selection.filters.people", "PEOPLE_FILTER")
	v.BindEnv("selection.filters.taken_after", "TAKEN_AFTER")
	v.BindEnv("selection.filters.taken_before", "TAKEN_BEFORE")
	v.BindEnv("theme.default", "SEARCH_QUERY")
	v.BindEnv("num_photos", "NUM_PHOTOS")
	v.BindEnv("update_interval_minutes", "UPDATE_INTERVAL_MINUTES")
	v.BindEnv("hass_img_path", "HASS_IMG_PATH")
}

// applyLegacy maps the flat add-on settings onto their structured keys unless
// the structured key was given explicitly.
func applyLegacy(v *viper.Viper) {
	if v.IsSet("num_photos") && !explicit(v, "selection.count") {
		v.Set("selection.count", v.GetInt("num_photos"))
	}
	if v.IsSet("update_interval_minutes") && !explicit(v, "schedule.cron") {
		if minutes := v.GetInt("update_interval_minutes"); minutes > 0 {
			v.Set("schedule.cron", fmt.Sprintf("@every %dm", minutes))
		}
	}
	if v.IsSet("hass_img_path") && !explicit(v, "cache.path") {
		v.Set("cache.path", v.GetString("hass_img_path"))
	}
	if mode := v.GetString("selection.mode"); NormalizeMode(mode) != mode {
		v.Set("selection.mode", NormalizeMode(mode))
	}
}

func explicit(v *viper.Viper, key string) bool {
	if v.InConfig(key) {
		return true
	}
	_, ok := os.LookupEnv(strings.ToUpper(strings.ReplaceAll(key, ".", "_")))
	return ok
}
