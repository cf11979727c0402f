// Package telemetry wraps OpenTelemetry SDK initialization, providing the
// evaluator with centralized TracerProvider and MeterProvider setup. When
// telemetry is disabled it installs noop implementations and connects to no
// external service.
package telemetry
