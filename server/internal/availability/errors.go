package availability

import "errors"

var (
	// ErrInvalidUpdate marks a malformed update. No state was changed.
	ErrInvalidUpdate = errors.New("invalid update")

	// ErrPersistence marks a failed or timed-out durable write. No state was
	// changed and nothing was broadcast; the caller may retry.
	ErrPersistence = errors.New("persistence failure")

	// ErrRegistryInconsistency marks an internal invariant violation inside
	// one scope's actor. The actor is discarded and rebuilt on next use.
	ErrRegistryInconsistency = errors.New("registry inconsistency")

	// ErrInvalidScope marks a scope name that fails validation.
	ErrInvalidScope = errors.New("invalid scope")
)
