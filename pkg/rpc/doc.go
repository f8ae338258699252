// Package rpc defines the eightysix.v1.Availability gRPC service shared by
// the server and the agent.
//
// Requests and responses are google.protobuf.Struct values carrying the same
// JSON field names as the REST API, so no generated code is needed:
//
//	Update   {"scope", "item_key", "status", "actor_id", "reason"} -> Record
//	Snapshot {"scope"} -> {"scope", "items": [Record]}
//
// An empty scope selects the server's default scope.
package rpc
