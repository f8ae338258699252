// Package session tracks the live realtime connections of one availability
// scope and fans messages out to them.
//
// Registry is safe for concurrent Register, Unregister and Sessions calls;
// Sessions returns a point-in-time copy so iterating it never blocks
// connects or disconnects.
//
// Broadcast delivers one message to every registered session. A failed
// delivery evicts that session only; the remaining sessions still receive
// the message and no error reaches the caller.
package session
