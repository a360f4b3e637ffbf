// Package config loads and validates monitor configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/ini.v1"
)

// EnvPrefix namespaces environment overrides, e.g. WEBMONITOR_SILICON_FLOW_API_KEY.
const EnvPrefix = "WEBMONITOR"

// DefaultName is the config file looked up when no explicit path is given.
const DefaultName = "secret"

// Storage backends.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendLocal  = "local"
	BackendGCS    = "gcs"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	SiliconFlow SiliconFlowConfig `mapstructure:"silicon-flow"`
	Monitor     MonitorConfig     `mapstructure:"monitor"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	Headless    HeadlessConfig    `mapstructure:"headless"`
	Storage     StorageConfig     `mapstructure:"storage"`
	DB          DBConfig          `mapstructure:"db"`
	PubSub      PubSubConfig      `mapstructure:"pubsub"`
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

// SiliconFlowConfig points the analyzer at an OpenAI-compatible endpoint.
type SiliconFlowConfig struct {
	APIKey             string  `mapstructure:"api_key"`
	BaseURL            string  `mapstructure:"base_url"`
	ReasoningModel     string  `mapstructure:"reasoning_model"`
	VisualModel        string  `mapstructure:"visual_model"`
	Temperature        float64 `mapstructure:"temperature"`
	TimeoutSeconds     int     `mapstructure:"timeout_seconds"`
	InsecureSkipVerify bool    `mapstructure:"insecure_skip_verify"`
	RequestsPerMinute  float64 `mapstructure:"requests_per_minute"`
}

// MonitorConfig lists what to watch and how often.
type MonitorConfig struct {
	URLs            []string `mapstructure:"urls"`
	IntervalSeconds int      `mapstructure:"interval_seconds"`
}

// HTTPConfig configures page fetching.
type HTTPConfig struct {
	TimeoutSeconds     int    `mapstructure:"timeout_seconds"`
	UserAgent          string `mapstructure:"user_agent"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
}

// HeadlessConfig configures the screenshot browser.
type HeadlessConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	ExecPath      string `mapstructure:"exec_path"`
	WindowWidth   int    `mapstructure:"window_width"`
	WindowHeight  int    `mapstructure:"window_height"`
	NavTimeoutSec int    `mapstructure:"nav_timeout_seconds"`
	SettleMillis  int    `mapstructure:"settle_millis"`
}

// StorageConfig selects where screenshot artifacts are kept.
type StorageConfig struct {
	Backend   string `mapstructure:"backend"`
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig controls the optional Postgres report history.
type DBConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int    `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for report fan-out.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ServerConfig controls the status server. Port 0 disables it.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from defaults, an optional file and the environment.
// With an empty path it looks for secret.toml in the working directory,
// $HOME/.webmonitor and /etc/webmonitor, and carries on without one.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if isINI(path) {
			settings, err := readINI(path)
			if err != nil {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
			if err := v.MergeConfigMap(settings); err != nil {
				return Config{}, fmt.Errorf("merge config %s: %w", path, err)
			}
		} else if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName(DefaultName)
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.webmonitor")
		v.AddConfigPath("/etc/webmonitor")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// isINI reports whether path is a classic secret file (secret.cfg and
// friends) rather than something viper decodes itself.
func isINI(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case "", ".cfg", ".ini", ".conf":
		return true
	default:
		return false
	}
}

// readINI turns an INI file into the nested map viper merges. Section and key
// names are lowercased; keys outside any section land at the top level.
// Values stay strings and are converted when the config is unmarshalled.
func readINI(path string) (map[string]any, error) {
	file, err := ini.LoadSources(ini.LoadOptions{
		Insensitive:         true,
		IgnoreInlineComment: true,
	}, path)
	if err != nil {
		return nil, fmt.Errorf("parse ini: %w", err)
	}
	settings := make(map[string]any)
	for _, section := range file.Sections() {
		if strings.EqualFold(section.Name(), ini.DefaultSection) {
			for _, key := range section.Keys() {
				settings[key.Name()] = key.Value()
			}
			continue
		}
		values := make(map[string]any, len(section.Keys()))
		for _, key := range section.Keys() {
			values[key.Name()] = key.Value()
		}
		settings[section.Name()] = values
	}
	return settings, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("silicon-flow.api_key", "")
	v.SetDefault("silicon-flow.base_url", "")
	v.SetDefault("silicon-flow.reasoning_model", "")
	v.SetDefault("silicon-flow.visual_model", "")
	v.SetDefault("silicon-flow.temperature", 0.7)
	v.SetDefault("silicon-flow.timeout_seconds", 30)
	v.SetDefault("silicon-flow.insecure_skip_verify", false)
	v.SetDefault("silicon-flow.requests_per_minute", 0)
	v.SetDefault("monitor.urls", []string{"http://example.com"})
	v.SetDefault("monitor.interval_seconds", 60)
	v.SetDefault("http.timeout_seconds", 10)
	v.SetDefault("http.user_agent", "webmonitor/0.1")
	v.SetDefault("http.insecure_skip_verify", false)
	v.SetDefault("headless.enabled", true)
	v.SetDefault("headless.exec_path", "")
	v.SetDefault("headless.window_width", 1920)
	v.SetDefault("headless.window_height", 1080)
	v.SetDefault("headless.nav_timeout_seconds", 30)
	v.SetDefault("headless.settle_millis", 3000)
	v.SetDefault("storage.backend", BackendNone)
	v.SetDefault("storage.local_dir", "screenshots")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "screenshots")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "reports")
	v.SetDefault("db.max_conns", 0)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("server.port", 0)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// normalize strips the surrounding quotes the classic secret file carries
// around credentials and model names.
func (c *Config) normalize() {
	sf := &c.SiliconFlow
	for _, s := range []*string{&sf.APIKey, &sf.BaseURL, &sf.ReasoningModel, &sf.VisualModel} {
		*s = trimQuotes(*s)
	}
	urls := c.Monitor.URLs[:0]
	for _, u := range c.Monitor.URLs {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	c.Monitor.URLs = urls
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
}

func trimQuotes(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '"' && s[len(s)-1] == '"' || s[0] == '\'' && s[len(s)-1] == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}

// Validate enforces required values and reasonable limits. Missing model
// credentials are allowed; the analyzer then answers with a placeholder.
func (c Config) Validate() error {
	if c.Monitor.IntervalSeconds <= 0 {
		return fmt.Errorf("monitor.interval_seconds must be > 0")
	}
	if len(c.Monitor.URLs) == 0 {
		return fmt.Errorf("monitor.urls must list at least one url")
	}
	for _, raw := range c.Monitor.URLs {
		if err := validateURL(raw); err != nil {
			return fmt.Errorf("monitor.urls: %w", err)
		}
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.SiliconFlow.Temperature < 0 || c.SiliconFlow.Temperature > 2 {
		return fmt.Errorf("silicon-flow.temperature must be within [0, 2]")
	}
	if c.SiliconFlow.TimeoutSeconds <= 0 {
		return fmt.Errorf("silicon-flow.timeout_seconds must be > 0")
	}
	if c.SiliconFlow.RequestsPerMinute < 0 {
		return fmt.Errorf("silicon-flow.requests_per_minute must be >= 0")
	}
	if c.Headless.Enabled && (c.Headless.WindowWidth <= 0 || c.Headless.WindowHeight <= 0) {
		return fmt.Errorf("headless.window_width and headless.window_height must be > 0")
	}
	switch c.Storage.Backend {
	case BackendNone, BackendMemory:
	case BackendLocal:
		if strings.TrimSpace(c.Storage.LocalDir) == "" {
			return fmt.Errorf("storage.local_dir is required for the local backend")
		}
	case BackendGCS:
		if strings.TrimSpace(c.Storage.GCSBucket) == "" {
			return fmt.Errorf("storage.gcs_bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not one of none, memory, local, gcs", c.Storage.Backend)
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be within [0, 65535]")
	}
	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%q must be an absolute http(s) url", raw)
	}
	return nil
}

// Interval is the time between check cycles.
func (c Config) Interval() time.Duration {
	return time.Duration(c.Monitor.IntervalSeconds) * time.Second
}

// HTTPTimeout bounds a single page fetch.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// ModelTimeout bounds a single model call.
func (c Config) ModelTimeout() time.Duration {
	return time.Duration(c.SiliconFlow.TimeoutSeconds) * time.Second
}

// NavTimeout bounds browser navigation.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Headless.NavTimeoutSec) * time.Second
}

// SettleDelay is how long the page may keep rendering before the screenshot.
func (c Config) SettleDelay() time.Duration {
	return time.Duration(c.Headless.SettleMillis) * time.Millisecond
}
