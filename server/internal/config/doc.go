// Package config loads the server-side configuration from the `server:` section
// of config.yaml (the `agent:` key is ignored by the server binary).
//
// Config fields:
//   - GRPCPort:                     port for the gRPC gateway (default 50051)
//   - HTTPPort:                     port for the REST API and WebSocket gateway (default 8080)
//   - LogLevel:                     debug | info | warn | error (default info)
//   - DefaultScope:                 scope behind the legacy /api/86-list routes (default "global")
//   - Availability.PersistTimeout:  bound on each durable write (default 5s)
//   - Storage.Driver:               memory | sqlite | mysql | redis (default sqlite)
//   - Cache.TTL:                    search response lifetime (default 5m)
//   - Search.Catalog:               YAML menu catalog path
//   - Notify.Webhooks:              slack | teams | http targets, URL read from env
//   - Telemetry.Endpoint:           OTLP/HTTP collector URL; empty disables tracing
//
// Load(path) applies defaults before unmarshalling, overlays EIGHTYSIX_*
// environment variables (EIGHTYSIX_HTTP_PORT, EIGHTYSIX_STORAGE_DRIVER,
// EIGHTYSIX_STORAGE_REDIS_ADDR, ...), then validates.
package config
