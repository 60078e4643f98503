// Package observability provides structured logging, Prometheus metrics, and
// context propagation helpers for the generation service.
//
// Logging is built on zerolog with a configurable level, format, and output.
// Component code receives a zerolog.Logger value and derives child loggers
// with the With*Context helpers rather than using a package-level logger, so
// tests can capture output and jobs stay isolated.
//
// Metrics are registered with the default Prometheus registry via promauto
// and exposed by the HTTP server on the configured metrics path.
package observability
