// Package metrics keeps the service counters and renders them in the
// Prometheus text exposition format.
//
// The Registry implements availability.Observer so it can be attached to a
// Manager directly. Values owned by other components (open sessions, cache
// statistics) are sampled at scrape time through registered funcs.
package metrics
