// Package availability owns the authoritative 86-list state of each scope.
//
// An Actor is the single writer for one scope. Apply validates an update,
// stamps applied_at, writes it through to the durable kv.Store, mutates the
// in-memory map and then broadcasts it to the scope's sessions, all under
// one mutex:
//
//	validate -> stamp -> persist -> mutate -> broadcast
//
// A persistence failure (or timeout) returns ErrPersistence before anything
// is mutated or broadcast, so visible state never runs ahead of durable
// state. Broadcast failures never reach the caller.
//
// Attach pushes the current snapshot to a new session and registers it under
// the same mutex, so a session can never miss an update that is not already
// in its snapshot.
//
// Manager routes scope names to Actors, opening (and recovering) each Actor
// on first use. A panic inside one Actor evicts that Actor only; the next
// call re-opens it from the durable store.
package availability
