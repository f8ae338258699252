// Package ws serves the realtime side of the availability gateway.
//
// Each WebSocket connection on /ws/scopes/{scope} (or the legacy /ws/86-list,
// which maps to the default scope) becomes one session of that scope. The
// scope's actor sends the snapshot first and then every item-added /
// item-removed event in apply order:
//
//	{"event":"snapshot","scope":"bar","data":[{"item_key":"Negroni",...}]}
//	{"event":"item-added","scope":"bar","data":{"item_key":"Paloma",...}}
//
// Each client has a 16-message outgoing buffer. A client whose buffer is full
// is evicted and its connection closed, so a slow display never delays
// updates to the others. Ping frames every 54s detect dead peers.
//
// A client may pass ?session_id= to take over its previous session after a
// reconnect; otherwise a UUID is assigned.
package ws
