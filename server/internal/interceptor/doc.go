// Package interceptor holds the request middleware shared by the gRPC and
// HTTP gateways: panic recovery and per-request logging with a request id.
//
// A panic in one call is converted into codes.Internal (gRPC) or a 500 JSON
// body (HTTP) and logged; the server keeps serving other requests.
package interceptor
