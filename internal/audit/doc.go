// Package audit is the append-only verification attempt log. Every verify
// call writes exactly one immutable record with a risk score computed at
// write time; records expire after thirty days. The package also answers
// the aggregate questions operators ask of the log: failure rates,
// suspicious-activity rollups, and hourly result histograms.
package audit
