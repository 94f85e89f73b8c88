package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AlertsConfig holds alerting rules and webhook delivery targets.
type AlertsConfig struct {
	Rules    []AlertRule     `yaml:"rules"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// AlertRule defines one threshold-based alert condition.
type AlertRule struct {
	// Name is the human-readable alert identifier, used as the deduplication key.
	Name string `yaml:"name"`

	// Condition is a simple expression: "critical_count > 5", "at_risk_pct >= 20",
	// "min_rul_days < 7", "rejected_count > 0".
	Condition string `yaml:"condition"`

	// Severity is one of: critical | warning | info.
	Severity string `yaml:"severity"`

	// Cooldown suppresses re-fires for this duration after an alert fires.
	// Defaults to 15 minutes if zero.
	Cooldown time.Duration `yaml:"cooldown"`
}

// WebhookConfig defines one webhook delivery target.
type WebhookConfig struct {
	// Type is one of: teams | slack | http.
	Type string `yaml:"type"`

	// URLEnv is the name of the environment variable that holds the webhook URL.
	URLEnv string `yaml:"url_env"`
}

// URL returns the webhook URL resolved from the environment.
func (w WebhookConfig) URL() string {
	if w.URLEnv == "" {
		return ""
	}
	return os.Getenv(w.URLEnv)
}

// Default values for the server configuration.
const (
	DefaultHTTPPort    = 8080
	DefaultSnapshotTTL = 24 * time.Hour
	DefaultPageSize    = 50
	MaxPageSize        = 500
	DefaultCacheTTL    = 10 * time.Minute
	DefaultWSInterval  = 5 * time.Second
	DefaultMQTTPrefix  = "rulboard"
	DefaultMQTTClient  = "rulboard-server"
)

// Config holds the server-side configuration parsed from the `server:` section
// of config.yaml. The `agent:` key in the same file is ignored.
type Config struct {
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds all server-side settings.
type ServerConfig struct {
	// HTTPPort is the port the REST API, ingest endpoint and WebSocket hub
	// listen on (default 8080).
	HTTPPort int `yaml:"http_port"`

	// LogLevel is one of: debug | info | warn | error (default info).
	LogLevel string `yaml:"log_level"`

	// Auth configures how the server authenticates incoming REST clients.
	Auth AuthConfig `yaml:"auth"`

	// Snapshot controls in-memory batch retention.
	Snapshot SnapshotConfig `yaml:"snapshot"`

	// Table controls the predictions table view.
	Table TableConfig `yaml:"table"`

	// Cache controls the derived-view cache.
	Cache CacheConfig `yaml:"cache"`

	// WS controls the WebSocket broadcast hub.
	WS WSConfig `yaml:"ws"`

	// MQTT enables batch ingestion from an MQTT broker when Broker is set.
	MQTT MQTTConfig `yaml:"mqtt"`

	// Alerts holds rule definitions and webhook delivery targets.
	Alerts AlertsConfig `yaml:"alerts"`
}

// AuthConfig controls client authentication on the server side.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	// Used when Mode == "apikey".
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header name to read the key from.
	// Defaults to "x-api-key" if empty.
	Header string `yaml:"header"`

	// ProtectReads extends API key checks to the read-only endpoints.
	// Ingest endpoints are always protected when Mode == "apikey".
	ProtectReads bool `yaml:"protect_reads"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default "x-api-key".
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return "x-api-key"
}

// SnapshotConfig controls in-memory batch retention.
type SnapshotConfig struct {
	// TTL is how long a source's batch remains in the store after its last update.
	// When TTL elapses without a new batch from a source, the entry is evicted.
	// Default: 24h.
	TTL time.Duration `yaml:"ttl"`
}

// TableConfig controls the predictions table view.
type TableConfig struct {
	// PageSize is the default number of rows per page (default 50, max 500).
	PageSize int `yaml:"page_size"`
}

// CacheConfig controls how long sorted views are kept.
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// WSConfig controls the WebSocket hub.
type WSConfig struct {
	// Interval is how often the snapshot is broadcast (default 5s).
	Interval time.Duration `yaml:"interval"`
}

// MQTTConfig configures the optional MQTT ingest subscription.
type MQTTConfig struct {
	// Broker is the broker URL, e.g. tcp://localhost:1883. Empty disables MQTT.
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`

	// PasswordEnv names the environment variable that holds the password.
	PasswordEnv string `yaml:"password_env"`

	// TopicPrefix is prepended to "/+/predictions" (default "rulboard").
	TopicPrefix string `yaml:"topic_prefix"`
}

// Password returns the broker password resolved from the environment.
func (m MQTTConfig) Password() string {
	if m.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(m.PasswordEnv)
}

// Enabled reports whether MQTT ingestion is configured.
func (m MQTTConfig) Enabled() bool { return m.Broker != "" }

// Topic returns the subscription filter for prediction batches.
func (m MQTTConfig) Topic() string {
	return strings.TrimSuffix(m.TopicPrefix, "/") + "/+/predictions"
}

// SlogLevel maps LogLevel to a slog.Level, defaulting to Info.
func (s ServerConfig) SlogLevel() slog.Level {
	switch strings.ToLower(s.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads and parses the config file at path, returning the server configuration.
// A .env file next to the config (if present) is loaded into the environment
// first so that *_env references resolve. Missing fields are filled with
// sensible defaults before validation.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("server config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("server config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("server config: %w", err)
	}

	return cfg, nil
}

// loadDotEnv loads path into the process environment without overriding
// variables that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %q: %w", path, err)
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort: DefaultHTTPPort,
			LogLevel: "info",
			Snapshot: SnapshotConfig{
				TTL: DefaultSnapshotTTL,
			},
			Table: TableConfig{PageSize: DefaultPageSize},
			Cache: CacheConfig{TTL: DefaultCacheTTL},
			WS:    WSConfig{Interval: DefaultWSInterval},
			MQTT: MQTTConfig{
				ClientID:    DefaultMQTTClient,
				TopicPrefix: DefaultMQTTPrefix,
			},
		},
	}
}

// validate checks structural constraints on the parsed configuration.
func validate(cfg *Config) error {
	s := cfg.Server
	if s.HTTPPort <= 0 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port %d is out of range [1, 65535]", s.HTTPPort)
	}
	switch s.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("server.auth.mode %q unknown: want apikey|none", s.Auth.Mode)
	}
	if s.Snapshot.TTL <= 0 {
		return fmt.Errorf("server.snapshot.ttl must be positive")
	}
	if s.Table.PageSize <= 0 || s.Table.PageSize > MaxPageSize {
		return fmt.Errorf("server.table.page_size %d is out of range [1, %d]", s.Table.PageSize, MaxPageSize)
	}
	if s.Cache.TTL < 0 {
		return fmt.Errorf("server.cache.ttl must not be negative")
	}
	if s.WS.Interval <= 0 {
		return fmt.Errorf("server.ws.interval must be positive")
	}
	if s.MQTT.Enabled() && s.MQTT.TopicPrefix == "" {
		return fmt.Errorf("server.mqtt.topic_prefix must not be empty")
	}
	for i, r := range s.Alerts.Rules {
		if r.Name == "" {
			return fmt.Errorf("server.alerts.rules[%d]: name is required", i)
		}
		if len(strings.Fields(r.Condition)) != 3 {
			return fmt.Errorf("server.alerts.rules[%d] %q: condition must be \"field op value\"", i, r.Name)
		}
		switch r.Severity {
		case "critical", "warning", "info", "":
		default:
			return fmt.Errorf("server.alerts.rules[%d] %q: severity %q unknown", i, r.Name, r.Severity)
		}
	}
	for i, w := range s.Alerts.Webhooks {
		switch w.Type {
		case "slack", "teams", "http":
		default:
			return fmt.Errorf("server.alerts.webhooks[%d]: type %q unknown: want slack|teams|http", i, w.Type)
		}
	}
	return nil
}
