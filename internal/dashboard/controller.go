// Package dashboard tracks per-session submissions, history and the
// state shown by the dashboard.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/webpulse/webpulse/internal/history"
	"github.com/webpulse/webpulse/internal/metrics"
	"github.com/webpulse/webpulse/internal/model"
	"github.com/webpulse/webpulse/internal/service"
)

// DefaultSessionIdleTTL is how long an idle session's display state is kept.
const DefaultSessionIdleTTL = 24 * time.Hour

// Submitter runs one analysis.
type Submitter interface {
	Submit(ctx context.Context, rawURL string) (*model.AnalysisReport, error)
}

// DisplayError is the error shown in place of a report.
type DisplayError struct {
	Kind     string                `json:"kind"` // "validation", "aggregation" or "internal"
	Message  string                `json:"message"`
	Failures []model.SourceFailure `json:"failures,omitempty"`
}

// DisplayState is what the dashboard currently shows for a session.
type DisplayState struct {
	Sequence uint64                `json:"sequence"`
	URL      string                `json:"url,omitempty"`
	Report   *model.AnalysisReport `json:"report,omitempty"`
	Error    *DisplayError         `json:"error,omitempty"`
	InFlight bool                  `json:"in_flight"`
}

// Outcome is the result of one submission.
type Outcome struct {
	Sequence uint64
	Report   *model.AnalysisReport
	// Stale is set when a newer submission of the same session started
	// before this one resolved. Stale outcomes are recorded in history but
	// never change the display state.
	Stale bool
}

type session struct {
	started    uint64
	display    DisplayState
	lastActive time.Time
}

// Controller coordinates submissions per session.
type Controller struct {
	submitter Submitter
	store     history.Store
	metrics   metrics.Recorder
	logger    *slog.Logger
	idleTTL   time.Duration
	now       func() time.Time

	mu        sync.Mutex
	sessions  map[string]*session
	lastSweep time.Time
}

// NewController creates a new Controller.
func NewController(submitter Submitter, store history.Store, recorder metrics.Recorder, logger *slog.Logger) *Controller {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		submitter: submitter,
		store:     store,
		metrics:   recorder,
		logger:    logger.With("component", "dashboard"),
		idleTTL:   DefaultSessionIdleTTL,
		now:       time.Now,
		sessions:  make(map[string]*session),
	}
}

// Submit analyses rawURL on behalf of a session.
//
// The analysis runs detached from ctx cancellation so a resolved report
// always reaches the history. Validation and aggregation errors are
// returned unchanged alongside the outcome.
func (c *Controller) Submit(ctx context.Context, sessionID, rawURL string) (*Outcome, error) {
	seq := c.begin(sessionID, rawURL)

	report, err := c.submitter.Submit(context.WithoutCancel(ctx), rawURL)

	if report != nil {
		if appendErr := c.store.Append(context.WithoutCancel(ctx), sessionID, report); appendErr != nil {
			c.logger.Error("failed to append history",
				"session_id", sessionID,
				"report_id", report.ID,
				"error", appendErr,
			)
			err = fmt.Errorf("append history: %w", appendErr)
		}
	}

	stale := c.resolve(sessionID, seq, rawURL, report, err)
	if stale {
		c.metrics.IncStaleSubmission()
		c.logger.Info("stale submission resolved",
			"session_id", sessionID,
			"sequence", seq,
		)
	}

	return &Outcome{Sequence: seq, Report: report, Stale: stale}, err
}

// begin assigns the next sequence number and marks the session in flight.
func (c *Controller) begin(sessionID, rawURL string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.sweep(now)

	s, ok := c.sessions[sessionID]
	if !ok {
		s = &session{}
		c.sessions[sessionID] = s
	}
	s.started++
	s.lastActive = now
	s.display.InFlight = true
	s.display.URL = rawURL

	return s.started
}

// resolve publishes a result to the display state unless a newer
// submission has started since. It reports whether the result was stale.
func (c *Controller) resolve(sessionID string, seq uint64, rawURL string, report *model.AnalysisReport, err error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[sessionID]
	if !ok || s.started != seq {
		return true
	}

	s.lastActive = c.now()
	s.display = DisplayState{
		Sequence: seq,
		URL:      rawURL,
		Report:   report.Clone(),
		Error:    displayError(err),
	}
	return false
}

// Display returns the session's current display state.
func (c *Controller) Display(sessionID string) DisplayState {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[sessionID]
	if !ok {
		return DisplayState{}
	}

	out := s.display
	out.Report = s.display.Report.Clone()
	if s.display.Error != nil {
		e := *s.display.Error
		e.Failures = append([]model.SourceFailure(nil), s.display.Error.Failures...)
		out.Error = &e
	}
	return out
}

// History returns every report of the session, oldest first.
func (c *Controller) History(ctx context.Context, sessionID string) ([]*model.AnalysisReport, error) {
	return c.store.List(ctx, sessionID)
}

// Report returns one report of the session.
func (c *Controller) Report(ctx context.Context, sessionID, reportID string) (*model.AnalysisReport, error) {
	return c.store.Get(ctx, sessionID, reportID)
}

// sweep forgets sessions idle for longer than idleTTL. Callers hold c.mu.
func (c *Controller) sweep(now time.Time) {
	if now.Sub(c.lastSweep) < time.Minute {
		return
	}
	c.lastSweep = now
	for id, s := range c.sessions {
		if !s.display.InFlight && now.Sub(s.lastActive) > c.idleTTL {
			delete(c.sessions, id)
		}
	}
}

func displayError(err error) *DisplayError {
	if err == nil {
		return nil
	}

	var aggErr *service.AggregationError
	switch {
	case errors.Is(err, model.ErrInvalidURL):
		return &DisplayError{Kind: "validation", Message: err.Error()}
	case errors.As(err, &aggErr):
		msg := aggErr.PrimaryError()
		if msg == "" {
			msg = aggErr.Error()
		}
		return &DisplayError{
			Kind:     "aggregation",
			Message:  "Error: " + msg,
			Failures: append([]model.SourceFailure(nil), aggErr.Failures...),
		}
	default:
		return &DisplayError{Kind: "internal", Message: "analysis could not be completed"}
	}
}
