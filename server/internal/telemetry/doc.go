// Package telemetry installs the OpenTelemetry tracer provider used by the
// availability actors. Tracing is opt-in and off when no collector endpoint
// is configured.
package telemetry
