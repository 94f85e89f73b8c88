// Package config loads and watches the agent configuration file (config.yaml).
//
// Top-level types:
//   - Config{Agent}: the `agent:` section parsed from YAML
//   - AgentConfig: server_endpoint, log_level, poll_interval, ship_interval,
//     buffer_size, sources [], server_auth
//   - Source: id, endpoint, method (GET|POST), timeout, auth, tls
//   - AuthConfig: mode (mtls|apikey|bearer|basic|none), cert/key/ca files,
//     header, key_env, token_env, username, password_env; Key(), Token() and
//     Password() resolve secrets from environment variables
//
// Load(path) loads a sibling .env file when present, reads the YAML file,
// applies defaults (5m poll, 15s ship, 100 buffer, POST, 60s timeout), then
// validates required fields and enums.
//
// Watch(ctx, path, onChange) reloads the file after each save and calls
// onChange with the newly parsed Config. Invalid edits are logged and ignored.
package config
