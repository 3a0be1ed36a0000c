// Package metrics provides the Prometheus collectors for optix-bridge components.
//
// Every collector method is safe to call on a nil receiver, so components can run
// without a registry (tests, the replay command) without nil checks at call sites.
package metrics

// Label values shared across collectors.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"

	OutcomeMatch   = "match"
	OutcomeUnknown = "unknown"
	OutcomeEmpty   = "empty"

	ReasonSizeMismatch = "size_mismatch"
	ReasonInjectError  = "inject_error"
)

// durationBuckets covers 100µs to ~3s.
var durationBuckets = []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 3}
