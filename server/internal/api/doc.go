// Package api implements the HTTP REST API of the availability service.
//
// New(manager, engine, cache, defaultScope) returns an http.Handler that serves:
//
//	POST /api/v1/scopes/{scope}/update  apply an Update; 200 with the durable Record
//	GET  /api/v1/scopes/{scope}/state   {"scope", "items": [Record], "generated_at"}
//	GET  /api/v1/scopes                 scopes opened since startup
//	GET  /api/v1/search?q=&limit=       ranked catalog matches through the read-cache
//	GET  /api/v1/health                 {"status", "scopes", "sessions"}
//
//	POST /api/86-list/update            legacy: update on the default scope
//	GET  /api/86-list/state             legacy: bare record array of the default scope
//
// All endpoints:
//   - Respond with Content-Type: application/json
//   - Return 405 for the wrong method
//   - Return 400 for invalid updates or scope names, 500 for persistence failures
//
// Search responses carry X-Cache: HIT|MISS and Cache-Control: public, max-age=<ttl>.
// JSON types are defined in types.go. No external HTTP framework is used.
package api
