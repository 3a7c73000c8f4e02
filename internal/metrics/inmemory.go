package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	Submissions          map[string]uint64
	SubmissionCount      uint64
	SubmissionDurationNs int64
	StaleSubmissions     uint64
	SourceCalls          map[string]uint64
	SourceFailures       map[string]uint64 // keyed "source/kind"
	SourceRetries        map[string]uint64
	RateLimited          uint64
}

// InMemoryRecorder stores metrics in memory for tests.
type InMemoryRecorder struct {
	submissionCount      uint64
	submissionDurationNs int64
	staleSubmissions     uint64
	rateLimited          uint64

	mu             sync.Mutex
	submissions    map[string]uint64
	sourceCalls    map[string]uint64
	sourceFailures map[string]uint64
	sourceRetries  map[string]uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		submissions:    make(map[string]uint64),
		sourceCalls:    make(map[string]uint64),
		sourceFailures: make(map[string]uint64),
		sourceRetries:  make(map[string]uint64),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return Snapshot{
		Submissions:          copyCounts(m.submissions),
		SubmissionCount:      atomic.LoadUint64(&m.submissionCount),
		SubmissionDurationNs: atomic.LoadInt64(&m.submissionDurationNs),
		StaleSubmissions:     atomic.LoadUint64(&m.staleSubmissions),
		SourceCalls:          copyCounts(m.sourceCalls),
		SourceFailures:       copyCounts(m.sourceFailures),
		SourceRetries:        copyCounts(m.sourceRetries),
		RateLimited:          atomic.LoadUint64(&m.rateLimited),
	}
}

// IncSubmission counts a submission by terminal state.
func (m *InMemoryRecorder) IncSubmission(state string) {
	m.mu.Lock()
	m.submissions[state]++
	m.mu.Unlock()
}

// ObserveSubmissionDuration records a submission's duration.
func (m *InMemoryRecorder) ObserveSubmissionDuration(duration time.Duration) {
	atomic.AddUint64(&m.submissionCount, 1)
	atomic.AddInt64(&m.submissionDurationNs, duration.Nanoseconds())
}

// IncStaleSubmission counts a submission superseded before it resolved.
func (m *InMemoryRecorder) IncStaleSubmission() {
	atomic.AddUint64(&m.staleSubmissions, 1)
}

// ObserveSourceDuration counts a completed source call.
func (m *InMemoryRecorder) ObserveSourceDuration(source string, duration time.Duration) {
	m.mu.Lock()
	m.sourceCalls[source]++
	m.mu.Unlock()
}

// IncSourceFailure counts a failed source call.
func (m *InMemoryRecorder) IncSourceFailure(source, kind string) {
	m.mu.Lock()
	m.sourceFailures[source+"/"+kind]++
	m.mu.Unlock()
}

// IncSourceRetry counts a retried source call.
func (m *InMemoryRecorder) IncSourceRetry(source string) {
	m.mu.Lock()
	m.sourceRetries[source]++
	m.mu.Unlock()
}

// IncRateLimited counts a rejected request.
func (m *InMemoryRecorder) IncRateLimited() {
	atomic.AddUint64(&m.rateLimited, 1)
}

func copyCounts(in map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
