// Package prometheus renders verikit metrics in Prometheus text exposition
// format.
//
// [NewPrometheusExporter] accepts a [verikit.Engine] and exposes an
// [net/http.Handler] that serves all counters and the verify latency
// histogram. Counter names are prefixed verikit_*_total; the histogram is
// verikit_verify_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the
//     Handler themselves.
//   - Mutate engine state.
package prometheus
