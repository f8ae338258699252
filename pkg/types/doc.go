// Package types defines shared Go types used by both the agent and server.
// These are the canonical in-memory and JSON wire representations of menu
// item availability: the update a staff member submits, the record the
// server applies, and the envelope pushed to realtime clients.
package types
