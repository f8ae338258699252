// Package cache is the edge read-cache in front of the search ranking.
//
// GetOrCompute hashes the normalised query (NFKC, case-folded, whitespace
// collapsed) with xxhash64 and serves the stored bytes while they are
// younger than the TTL (default 300s). A miss or expired entry runs the
// compute function once, even when identical queries arrive concurrently,
// and stores its result. Errors are never cached.
//
// Entries are a pure performance artifact: losing them only costs a
// recompute.
package cache
