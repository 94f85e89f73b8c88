package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Valid(t *testing.T) {
	yaml := `
agent:
  server_endpoint: "http://localhost:8080"
  poll_interval: 10m
  ship_interval: 5s
  buffer_size: 50
  log_level: debug
  sources:
    - id: plant-a
      endpoint: "http://predictor:5002/predict"
      method: get
      timeout: 2m
      auth:
        mode: none
  server_auth:
    mode: apikey
    key_env: RULBOARD_KEY
`
	cfg := loadFromString(t, yaml)

	assert.Equal(t, "http://localhost:8080", cfg.Agent.ServerEndpoint)
	assert.Equal(t, 10*time.Minute, cfg.Agent.PollInterval)
	assert.Equal(t, 50, cfg.Agent.BufferSize)
	assert.Equal(t, "DEBUG", cfg.Agent.SlogLevel().String())
	require.Len(t, cfg.Agent.Sources, 1)
	src := cfg.Agent.Sources[0]
	assert.Equal(t, "plant-a", src.ID)
	assert.Equal(t, "GET", src.Method, "method should be upper-cased")
	assert.Equal(t, 2*time.Minute, src.Timeout)
	assert.Equal(t, DefaultServerHeader, cfg.Agent.ServerAuth.Header)
}

func TestLoad_Defaults(t *testing.T) {
	yaml := `
agent:
  server_endpoint: "http://localhost:8080"
  sources:
    - id: plant-a
      endpoint: "http://predictor:5002/predict"
`
	cfg := loadFromString(t, yaml)

	assert.Equal(t, DefaultPollInterval, cfg.Agent.PollInterval)
	assert.Equal(t, DefaultShipInterval, cfg.Agent.ShipInterval)
	assert.Equal(t, DefaultBufferSize, cfg.Agent.BufferSize)
	src := cfg.Agent.Sources[0]
	assert.Equal(t, "POST", src.Method)
	assert.Equal(t, DefaultSourceTimeout, src.Timeout)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing server_endpoint", `
agent:
  sources: []
`},
		{"server_endpoint without scheme", `
agent:
  server_endpoint: "localhost:8080"
`},
		{"negative poll_interval", `
agent:
  server_endpoint: "http://localhost:8080"
  poll_interval: -1s
`},
		{"zero buffer", `
agent:
  server_endpoint: "http://localhost:8080"
  buffer_size: 0
`},
		{"unknown server auth mode", `
agent:
  server_endpoint: "http://localhost:8080"
  server_auth:
    mode: bearer
`},
		{"missing source id", `
agent:
  server_endpoint: "http://localhost:8080"
  sources:
    - endpoint: "http://predictor/predict"
`},
		{"duplicate source id", `
agent:
  server_endpoint: "http://localhost:8080"
  sources:
    - id: a
      endpoint: "http://predictor/predict"
    - id: a
      endpoint: "http://predictor2/predict"
`},
		{"unsupported method", `
agent:
  server_endpoint: "http://localhost:8080"
  sources:
    - id: a
      endpoint: "http://predictor/predict"
      method: DELETE
`},
		{"unknown auth mode", `
agent:
  server_endpoint: "http://localhost:8080"
  sources:
    - id: a
      endpoint: "http://predictor/predict"
      auth:
        mode: magictoken
`},
		{"mtls without cert", `
agent:
  server_endpoint: "http://localhost:8080"
  sources:
    - id: a
      endpoint: "https://predictor/predict"
      auth:
        mode: mtls
`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := loadStringErr(t, tc.yaml)
			assert.Error(t, err)
		})
	}
}

func TestLoad_DotEnvResolvesSecrets(t *testing.T) {
	dir := t.TempDir()
	// t.Setenv registers cleanup so the variable godotenv sets is removed.
	t.Setenv("RULBOARD_AGENT_TEST_TOKEN", "")
	os.Unsetenv("RULBOARD_AGENT_TEST_TOKEN")
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("RULBOARD_AGENT_TEST_TOKEN=from-dotenv\n"), 0o600))
	path := filepath.Join(dir, "config.yaml")
	yaml := `
agent:
  server_endpoint: "http://localhost:8080"
  sources:
    - id: a
      endpoint: "http://predictor/predict"
      auth:
        mode: bearer
        token_env: RULBOARD_AGENT_TEST_TOKEN
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Agent.Sources[0].Auth.Token())
}

func TestAuthConfig_Key(t *testing.T) {
	t.Setenv("TEST_API_KEY", "supersecret")
	a := AuthConfig{Mode: "apikey", KeyEnv: "TEST_API_KEY"}
	assert.Equal(t, "supersecret", a.Key())
}

func TestAuthConfig_Key_Empty(t *testing.T) {
	a := AuthConfig{Mode: "apikey"}
	assert.Empty(t, a.Key(), "Key() with no KeyEnv")
}

func TestAuthConfig_Token(t *testing.T) {
	t.Setenv("TEST_BEARER_TOKEN", "mytoken")
	a := AuthConfig{Mode: "bearer", TokenEnv: "TEST_BEARER_TOKEN"}
	assert.Equal(t, "mytoken", a.Token())
}

func TestAuthConfig_Password(t *testing.T) {
	t.Setenv("TEST_BASIC_PASS", "hunter2")
	a := AuthConfig{Mode: "basic", Username: "ops", PasswordEnv: "TEST_BASIC_PASS"}
	assert.Equal(t, "hunter2", a.Password())
}

func TestLoad_MultipleAuthModes(t *testing.T) {
	tests := []struct {
		name string
		mode string
	}{
		{"apikey", "apikey"},
		{"bearer", "bearer"},
		{"basic", "basic"},
		{"none", "none"},
		{"empty", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			yaml := `
agent:
  server_endpoint: "http://localhost:8080"
  sources:
    - id: src
      endpoint: "http://predictor:5002/predict"
      auth:
        mode: ` + tc.mode + `
`
			cfg := loadFromString(t, yaml)
			assert.Equal(t, tc.mode, cfg.Agent.Sources[0].Auth.Mode)
		})
	}
}

func TestWatch_ReloadsSources(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	base := "agent:\n  server_endpoint: \"http://localhost:8080\"\n"
	require.NoError(t, os.WriteFile(path, []byte(base), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	got := make(chan *Config, 4)
	go Watch(ctx, path, func(c *Config) { got <- c }) //nolint:errcheck
	time.Sleep(100 * time.Millisecond)

	next := base + "  sources:\n    - id: a\n      endpoint: \"http://predictor/predict\"\n"
	require.NoError(t, os.WriteFile(path, []byte(next), 0o600))

	deadline := time.After(3 * time.Second)
	for {
		select {
		case c := <-got:
			if len(c.Agent.Sources) == 1 {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for reload with one source")
		}
	}
}

// loadFromString writes yaml to a temp file and calls Load, failing on error.
func loadFromString(t *testing.T, content string) *Config {
	t.Helper()
	cfg, err := loadStringErr(t, content)
	require.NoError(t, err)
	return cfg
}

// loadStringErr writes yaml to a temp file and calls Load, returning any error.
func loadStringErr(t *testing.T, content string) (*Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600), "write temp config")
	return Load(path)
}
