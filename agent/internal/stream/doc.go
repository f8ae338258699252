// Package stream keeps a local mirror of one scope's 86 list by following
// the server's realtime WebSocket feed.
//
// Mirror applies the snapshot message received on connect and every
// item-added / item-removed event after it. Client dials
// /ws/scopes/{scope}, feeds each message to the Mirror and reconnects with
// backoff, reusing its session ID so the server replaces the old session
// instead of counting a second one.
package stream
