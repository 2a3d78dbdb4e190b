// Package metrics provides the Prometheus collectors for the metadata catalog.
package metrics

// Recorder is the narrow surface components record against; both
// collector bundles implement it. Callers that only need counts,
// durations, and errors take a Recorder instead of a concrete bundle.
type Recorder interface {
	// RecordOperation counts one completed operation with its outcome.
	// Database bundles accept "operation:table" compound keys.
	RecordOperation(operation, status string)

	// RecordDuration observes one operation's elapsed time in seconds.
	RecordDuration(operation string, seconds float64)

	// RecordError counts one failure, bucketed by error type.
	RecordError(operation, errorType string)
}
