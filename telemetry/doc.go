// Package telemetry wires Prometheus metrics and OpenTelemetry tracing.
//
// Metrics live on a private registry so tests and multiple servers in one
// process do not collide on the global default registry.
package telemetry
