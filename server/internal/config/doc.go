// Package config loads the server-side configuration from the `server:` section
// of config.yaml (the `agent:` key is ignored by the server binary).
//
// Config fields:
//   - HTTPPort        : port for the REST API, ingest and WebSocket hub (default 8080)
//   - LogLevel        : debug | info | warn | error (default info)
//   - Auth.Mode       : "apikey" or "none"
//   - Auth.KeyEnv     : environment variable holding the expected API key
//   - Auth.Header     : HTTP header name (default "x-api-key")
//   - Snapshot.TTL    : how long a source's batch remains live (default 24h)
//   - Table.PageSize  : default table page size (default 50, max 500)
//   - Cache.TTL       : lifetime of cached sorted views (default 10m)
//   - WS.Interval     : WebSocket broadcast interval (default 5s)
//   - MQTT.*          : optional MQTT ingest; disabled when Broker is empty
//   - Alerts          : rules and webhooks
//
// Load(path) loads a sibling .env file if present, applies defaults before
// unmarshalling, then validates. Watch(ctx, path, onChange) reloads on write.
package config
