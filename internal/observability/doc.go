// Package observability holds the Prometheus metrics and OpenTelemetry
// tracer shared by the services.
//
// Metrics live on a private registry so tests and multiple service graphs
// never collide on the global default. Tracing uses the global otel
// provider, which is a no-op until a process installs one.
package observability
