package model

import (
	"errors"
	"fmt"
)

// SubmissionState is a step of a submission's lifecycle.
type SubmissionState string

const (
	StateIdle       SubmissionState = "idle"
	StateValidating SubmissionState = "validating"
	StateRejected   SubmissionState = "rejected"
	StateFetching   SubmissionState = "fetching"
	StatePartial    SubmissionState = "partial"
	StateComplete   SubmissionState = "complete"
	StateFailed     SubmissionState = "failed"
)

// ErrIllegalTransition is returned when a state change is not allowed.
var ErrIllegalTransition = errors.New("illegal state transition")

var transitions = map[SubmissionState][]SubmissionState{
	StateIdle:       {StateValidating},
	StateValidating: {StateRejected, StateFetching},
	StateFetching:   {StatePartial, StateComplete, StateFailed},
}

// IsTerminal reports whether no further transition is possible.
func (s SubmissionState) IsTerminal() bool {
	switch s {
	case StateRejected, StatePartial, StateComplete, StateFailed:
		return true
	}
	return false
}

// HasReport reports whether the state yields a usable report.
func (s SubmissionState) HasReport() bool {
	return s == StatePartial || s == StateComplete
}

// StateMachine tracks one submission's lifecycle.
// It is owned by a single submission and not safe for concurrent use.
type StateMachine struct {
	current SubmissionState
	history []SubmissionState
}

// NewStateMachine returns a machine in the idle state.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		current: StateIdle,
		history: []SubmissionState{StateIdle},
	}
}

// Current returns the current state.
func (m *StateMachine) Current() SubmissionState {
	return m.current
}

// Path returns every state visited, in order.
func (m *StateMachine) Path() []SubmissionState {
	return append([]SubmissionState{}, m.history...)
}

// Advance moves to next, or fails with ErrIllegalTransition.
func (m *StateMachine) Advance(next SubmissionState) error {
	for _, allowed := range transitions[m.current] {
		if allowed == next {
			m.current = next
			m.history = append(m.history, next)
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, m.current, next)
}

// Settle picks the terminal fetch state from the number of sources that
// succeeded out of total.
func Settle(succeeded, total int) SubmissionState {
	switch {
	case succeeded <= 0:
		return StateFailed
	case succeeded >= total:
		return StateComplete
	default:
		return StatePartial
	}
}
