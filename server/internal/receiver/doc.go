// Package receiver implements the eightysix.v1.Availability gRPC service.
//
// Update and Snapshot delegate to the availability.Manager. Errors map to
// gRPC status codes:
//
//	ErrInvalidUpdate, ErrInvalidScope -> InvalidArgument
//	ErrPersistence                    -> Unavailable (safe to retry)
//	ErrRegistryInconsistency, other   -> Internal
package receiver
