// Package metrics counts what the aggregation pipeline does. Prometheus
// backs production, InMemory backs tests, Noop backs everything else.
package metrics

import "time"

// Recorder receives pipeline events. Implementations must be safe for
// concurrent use.
type Recorder interface {
	// state is the terminal SubmissionState: rejected, partial, complete or failed.
	IncSubmission(state string)
	ObserveSubmissionDuration(d time.Duration)
	IncStaleSubmission()

	ObserveSourceDuration(source string, d time.Duration)
	// kind is transport, domain or parse.
	IncSourceFailure(source, kind string)
	IncSourceRetry(source string)

	IncRateLimited()
}
