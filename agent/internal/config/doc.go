// Package config loads and watches the station agent configuration file.
//
// Top-level types:
//   - Config{Agent}: full config tree parsed from YAML
//   - AgentConfig: server_endpoint, stream_url, scope, station_id,
//     buffer_size, send_timeout, reconnect_max, tls
//   - TLSConfig: client cert/key/ca files for the gRPC transport
//
// Load(path) reads the YAML file, applies defaults (localhost endpoints,
// scope "global", 256 buffer, 10s send timeout, 30s reconnect cap), overlays
// EIGHTYSIX_AGENT_* environment variables, then validates.
//
// Watch(ctx, path, onChange) follows the file through pkg/filewatch and calls
// onChange with each newly parsed Config.
package config
