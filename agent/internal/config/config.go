package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultPollInterval  = 5 * time.Minute
	DefaultShipInterval  = 15 * time.Second
	DefaultBufferSize    = 100
	DefaultSourceTimeout = 60 * time.Second
	DefaultServerHeader  = "x-api-key"
)

// Config is the agent configuration parsed from the `agent:` section of
// config.yaml. The `server:` key in the same file is ignored.
type Config struct {
	Agent AgentConfig `yaml:"agent"`
}

// AgentConfig holds all agent-side settings.
type AgentConfig struct {
	// ServerEndpoint is the base URL of rulboard-server, e.g. http://rulboard:8080.
	ServerEndpoint string `yaml:"server_endpoint"`

	// LogLevel is one of: debug | info | warn | error.
	LogLevel string `yaml:"log_level"`

	// PollInterval controls how often each prediction source is fetched.
	PollInterval time.Duration `yaml:"poll_interval"`

	// ShipInterval controls how often buffered batches are sent to the server.
	ShipInterval time.Duration `yaml:"ship_interval"`

	// BufferSize is the maximum number of batches held in memory when
	// the server is unreachable. The oldest batch is dropped first.
	BufferSize int `yaml:"buffer_size"`

	// Sources is the list of prediction endpoints to poll.
	Sources []Source `yaml:"sources"`

	// ServerAuth configures how the agent authenticates to rulboard-server.
	// Supports: apikey | none.
	ServerAuth AuthConfig `yaml:"server_auth"`
}

// Source describes one prediction service endpoint.
type Source struct {
	// ID is a unique, human-readable identifier for this source. It becomes
	// the source ID on the server.
	ID string `yaml:"id"`

	// Endpoint is the full URL that returns {"predictions": [...]}.
	Endpoint string `yaml:"endpoint"`

	// Method is GET or POST. Defaults to POST, which is what prediction
	// services expose for /predict.
	Method string `yaml:"method"`

	// Timeout bounds one fetch. Model inference can be slow.
	Timeout time.Duration `yaml:"timeout"`

	// Auth configures how the agent authenticates to this source.
	Auth AuthConfig `yaml:"auth"`

	// TLS holds optional TLS dial options.
	TLS TLSConfig `yaml:"tls"`
}

// AuthConfig specifies the authentication mode for a source or the server.
type AuthConfig struct {
	// Mode is one of: mtls | apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// mTLS fields, used when Mode == "mtls".
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`

	// API key fields, used when Mode == "apikey".
	// Header is the HTTP header name to send the key in.
	Header string `yaml:"header"`
	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`

	// Bearer token fields, used when Mode == "bearer".
	// TokenEnv is the name of the environment variable that holds the token.
	TokenEnv string `yaml:"token_env"`

	// Basic auth fields, used when Mode == "basic".
	// Username is the literal username (safe to store in config).
	Username string `yaml:"username"`
	// PasswordEnv is the name of the environment variable that holds the password.
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// Token returns the bearer token value resolved from the environment.
func (a AuthConfig) Token() string {
	if a.TokenEnv == "" {
		return ""
	}
	return os.Getenv(a.TokenEnv)
}

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string {
	if a.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(a.PasswordEnv)
}

// TLSConfig holds per-source TLS dial options.
type TLSConfig struct {
	// InsecureSkipVerify disables TLS certificate verification.
	// Only use this for internal CAs in development environments.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// SlogLevel maps LogLevel to a slog.Level, defaulting to Info.
func (a AgentConfig) SlogLevel() slog.Level {
	switch strings.ToLower(a.LogLevel) {
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

// Load reads and parses the YAML config file at path.
// A .env file next to the config (if present) is loaded first so that *_env
// references resolve. Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	envPath := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load %q: %w", envPath, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	applySourceDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			LogLevel:     "info",
			PollInterval: DefaultPollInterval,
			ShipInterval: DefaultShipInterval,
			BufferSize:   DefaultBufferSize,
		},
	}
}

// applySourceDefaults fills per-source fields that yaml cannot default.
func applySourceDefaults(cfg *Config) {
	for i := range cfg.Agent.Sources {
		src := &cfg.Agent.Sources[i]
		if src.Method == "" {
			src.Method = http.MethodPost
		}
		src.Method = strings.ToUpper(src.Method)
		if src.Timeout <= 0 {
			src.Timeout = DefaultSourceTimeout
		}
	}
	if cfg.Agent.ServerAuth.Header == "" {
		cfg.Agent.ServerAuth.Header = DefaultServerHeader
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	a := cfg.Agent
	if a.ServerEndpoint == "" {
		return fmt.Errorf("agent.server_endpoint is required")
	}
	if err := checkURL(a.ServerEndpoint); err != nil {
		return fmt.Errorf("agent.server_endpoint: %w", err)
	}
	if a.PollInterval <= 0 {
		return fmt.Errorf("agent.poll_interval must be positive")
	}
	if a.ShipInterval <= 0 {
		return fmt.Errorf("agent.ship_interval must be positive")
	}
	if a.BufferSize <= 0 {
		return fmt.Errorf("agent.buffer_size must be positive")
	}
	switch a.ServerAuth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("agent.server_auth.mode %q unknown: want apikey|none", a.ServerAuth.Mode)
	}

	seen := make(map[string]bool, len(a.Sources))
	for i, src := range a.Sources {
		if src.ID == "" {
			return fmt.Errorf("sources[%d]: id is required", i)
		}
		if seen[src.ID] {
			return fmt.Errorf("sources[%d]: duplicate id %q", i, src.ID)
		}
		seen[src.ID] = true
		if src.Endpoint == "" {
			return fmt.Errorf("sources[%d] %q: endpoint is required", i, src.ID)
		}
		if err := checkURL(src.Endpoint); err != nil {
			return fmt.Errorf("sources[%d] %q: endpoint: %w", i, src.ID, err)
		}
		switch src.Method {
		case http.MethodGet, http.MethodPost:
		default:
			return fmt.Errorf("sources[%d] %q: method %q unsupported: want GET|POST", i, src.ID, src.Method)
		}
		switch src.Auth.Mode {
		case "mtls", "apikey", "bearer", "basic", "none", "":
		default:
			return fmt.Errorf("sources[%d] %q: unknown auth mode %q", i, src.ID, src.Auth.Mode)
		}
		if src.Auth.Mode == "mtls" && (src.Auth.CertFile == "" || src.Auth.KeyFile == "") {
			return fmt.Errorf("sources[%d] %q: mtls requires cert_file and key_file", i, src.ID)
		}
	}
	return nil
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme %q unsupported: want http|https", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}
