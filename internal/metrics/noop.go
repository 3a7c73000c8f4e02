package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

// IncSubmission is a no-op.
func (n *NoopRecorder) IncSubmission(state string) {}

// ObserveSubmissionDuration is a no-op.
func (n *NoopRecorder) ObserveSubmissionDuration(duration time.Duration) {}

// IncStaleSubmission is a no-op.
func (n *NoopRecorder) IncStaleSubmission() {}

// ObserveSourceDuration is a no-op.
func (n *NoopRecorder) ObserveSourceDuration(source string, duration time.Duration) {}

// IncSourceFailure is a no-op.
func (n *NoopRecorder) IncSourceFailure(source, kind string) {}

// IncSourceRetry is a no-op.
func (n *NoopRecorder) IncSourceRetry(source string) {}

// IncRateLimited is a no-op.
func (n *NoopRecorder) IncRateLimited() {}
