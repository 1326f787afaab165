// Package otel binds verikit counters and histograms to OpenTelemetry
// instruments.
//
// [NewOTelExporter] registers an Int64ObservableCounter per engine counter
// and Int64ObservableGauge instruments per histogram bucket. One callback
// reads [verikit.Engine.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
