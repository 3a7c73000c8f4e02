package model

import (
	"errors"
	"testing"
)

func TestStateMachine_HappyPath(t *testing.T) {
	t.Parallel()

	m := NewStateMachine()
	for _, next := range []SubmissionState{StateValidating, StateFetching, StatePartial} {
		if err := m.Advance(next); err != nil {
			t.Fatalf("Advance(%s): %v", next, err)
		}
	}

	if m.Current() != StatePartial {
		t.Errorf("Current() = %s, want partial", m.Current())
	}

	want := []SubmissionState{StateIdle, StateValidating, StateFetching, StatePartial}
	got := m.Path()
	if len(got) != len(want) {
		t.Fatalf("Path() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Path()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestStateMachine_IllegalTransitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		setup []SubmissionState
		next  SubmissionState
	}{
		{"idle to fetching", nil, StateFetching},
		{"validating to complete", []SubmissionState{StateValidating}, StateComplete},
		{"rejected to fetching", []SubmissionState{StateValidating, StateRejected}, StateFetching},
		{"complete to failed", []SubmissionState{StateValidating, StateFetching, StateComplete}, StateFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := NewStateMachine()
			for _, s := range tt.setup {
				if err := m.Advance(s); err != nil {
					t.Fatalf("setup Advance(%s): %v", s, err)
				}
			}

			before := m.Current()
			err := m.Advance(tt.next)
			if !errors.Is(err, ErrIllegalTransition) {
				t.Fatalf("expected ErrIllegalTransition, got %v", err)
			}
			if m.Current() != before {
				t.Errorf("state changed on illegal transition: %s", m.Current())
			}
		})
	}
}

func TestSettle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		succeeded int
		want      SubmissionState
	}{
		{0, StateFailed},
		{1, StatePartial},
		{2, StatePartial},
		{3, StateComplete},
	}

	for _, tt := range tests {
		if got := Settle(tt.succeeded, 3); got != tt.want {
			t.Errorf("Settle(%d, 3) = %s, want %s", tt.succeeded, got, tt.want)
		}
	}
}

func TestSubmissionState_Predicates(t *testing.T) {
	t.Parallel()

	for _, s := range []SubmissionState{StateRejected, StatePartial, StateComplete, StateFailed} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []SubmissionState{StateIdle, StateValidating, StateFetching} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
	if !StatePartial.HasReport() || !StateComplete.HasReport() {
		t.Error("partial and complete yield reports")
	}
	if StateFailed.HasReport() || StateRejected.HasReport() {
		t.Error("failed and rejected yield no report")
	}
}
