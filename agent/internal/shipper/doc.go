// Package shipper sends availability updates from a station to the server
// via gRPC (eightysix.v1.Availability/Update).
//
// Shipper.Ship() is non-blocking: updates are placed in an in-memory channel
// (capacity agent.buffer_size). When the buffer is full the oldest entry is
// evicted.
//
// Shipper.Run() drains the buffer in a loop, reconnecting with truncated
// exponential backoff on connection or send errors. An update that failed
// transiently is retried before newer ones. Permanent gRPC errors
// (InvalidArgument, Unauthenticated, PermissionDenied) discard the update
// immediately rather than retrying.
//
// Transport: mTLS via credentials.NewTLS() when agent.tls.cert_file is set,
// plaintext otherwise.
package shipper
