// Package kv defines the durable key-value contract the availability actors
// persist through, plus an in-memory backend for tests and local runs.
//
// A Backend hands out one Store per scope. Each Store exposes exactly two
// operations:
//
//	Put(ctx, key, value): atomic per key; the last write wins.
//	List(ctx): every current (key, value) pair, in no particular order.
//
// There is no event log: each key holds only its current value, so recovery
// is "load everything". SQL (SQLite, MySQL) and Redis backends live in the
// sqlkv and rediskv subpackages.
package kv
