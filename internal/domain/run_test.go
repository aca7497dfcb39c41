package domain

import (
	"testing"
	"time"
)

func TestRunIDDeterministic(t *testing.T) {
	t.Parallel()

	a := RunID("consent-123")
	b := RunID("consent-123")
	if a != b {
		t.Fatal("same consent produced different run IDs")
	}
	if a == RunID("consent-456") {
		t.Fatal("different consents produced the same run ID")
	}
}

func TestRunContextLifecycle(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	run := NewRunContext(StartRequest{ConsentID: "consent-1"}, now, time.Hour)

	if run.RunID != RunID("consent-1") {
		t.Fatal("run ID not derived from consent")
	}
	if run.State != StateValidating {
		t.Fatalf("fresh run in state %s", run.State)
	}
	if run.Aborted() {
		t.Fatal("fresh run already aborted")
	}

	if run.DeadlineExceeded(now.Add(30 * time.Minute)) {
		t.Fatal("deadline reported exceeded within budget")
	}
	if !run.DeadlineExceeded(now.Add(2 * time.Hour)) {
		t.Fatal("deadline not reported exceeded past budget")
	}

	run.Abort()
	if !run.Aborted() {
		t.Fatal("abort flag lost")
	}
}

func TestTerminalStates(t *testing.T) {
	t.Parallel()

	terminal := []RunState{StateComplete, StateAborted, StateFailed}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	active := []RunState{StateIdle, StateValidating, StateScanning, StateSummarizing, StateReporting, StateUploading}
	for _, s := range active {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
