// Package history keeps the per-session list of analysis reports.
package history

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/webpulse/webpulse/internal/model"
)

// ErrNotFound is returned when a session has no report with the given ID.
var ErrNotFound = errors.New("report not found")

// Store is an append-only, per-session report history.
// Implementations must be safe for concurrent use.
type Store interface {
	// Append adds report to the end of the session's history.
	Append(ctx context.Context, sessionID string, report *model.AnalysisReport) error
	// List returns the session's reports, oldest first.
	List(ctx context.Context, sessionID string) ([]*model.AnalysisReport, error)
	// Get returns one report of the session, or ErrNotFound.
	Get(ctx context.Context, sessionID, reportID string) (*model.AnalysisReport, error)
}

// DefaultTTL is how long an idle session's history is kept in memory.
const DefaultTTL = 24 * time.Hour

type memorySession struct {
	reports   []*model.AnalysisReport
	lastWrite time.Time
}

// MemoryStore keeps histories in process memory. A session's history is
// dropped once it has seen no Append for longer than the TTL.
type MemoryStore struct {
	mu        sync.RWMutex
	sessions  map[string]*memorySession
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewMemoryStore creates an empty MemoryStore. A non-positive ttl selects
// DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		sessions: make(map[string]*memorySession),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Append stores a copy of report and refreshes the session's TTL.
func (s *MemoryStore) Append(ctx context.Context, sessionID string, report *model.AnalysisReport) error {
	if report == nil {
		return errors.New("nil report")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now)

	sess, ok := s.sessions[sessionID]
	if !ok || s.expired(sess, now) {
		sess = &memorySession{}
		s.sessions[sessionID] = sess
	}
	sess.reports = append(sess.reports, report.Clone())
	sess.lastWrite = now
	return nil
}

// live returns the session's reports, or nil once it has expired.
// Callers hold s.mu.
func (s *MemoryStore) live(sessionID string) []*model.AnalysisReport {
	sess, ok := s.sessions[sessionID]
	if !ok || s.expired(sess, s.now()) {
		return nil
	}
	return sess.reports
}

func (s *MemoryStore) expired(sess *memorySession, now time.Time) bool {
	return now.Sub(sess.lastWrite) > s.ttl
}

// sweep drops expired sessions, at most once per minute or TTL,
// whichever is shorter. Callers hold s.mu for writing.
func (s *MemoryStore) sweep(now time.Time) {
	if now.Sub(s.lastSweep) < min(s.ttl, time.Minute) {
		return
	}
	s.lastSweep = now
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, id)
		}
	}
}

// List returns copies of the session's reports.
func (s *MemoryStore) List(ctx context.Context, sessionID string) ([]*model.AnalysisReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reports := s.live(sessionID)
	out := make([]*model.AnalysisReport, 0, len(reports))
	for _, r := range reports {
		out = append(out, r.Clone())
	}
	return out, nil
}

// Get returns a copy of one report.
func (s *MemoryStore) Get(ctx context.Context, sessionID, reportID string) (*model.AnalysisReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.live(sessionID) {
		if r.ID == reportID {
			return r.Clone(), nil
		}
	}
	return nil, ErrNotFound
}
