package domain

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// RunState is the orchestrator's pipeline state for the active run.
type RunState string

const (
	StateIdle        RunState = "IDLE"
	StateValidating  RunState = "VALIDATING"
	StateScanning    RunState = "SCANNING"
	StateSummarizing RunState = "SUMMARIZING"
	StateReporting   RunState = "REPORTING"
	StateUploading   RunState = "UPLOADING"
	StateComplete    RunState = "COMPLETE"
	StateAborted     RunState = "ABORTED"
	StateFailed      RunState = "FAILED"
)

// Terminal reports whether the state ends a run.
func (s RunState) Terminal() bool {
	return s == StateComplete || s == StateAborted || s == StateFailed
}

// Namespace for deriving run IDs from consent IDs. Fixed so the same consent
// always maps to the same run ID.
var runIDNamespace = uuid.MustParse("7f1b9e3c-54d2-4a8f-9b6e-2c0d8a41f5e7")

// RunID derives the run identifier for a consent ID.
func RunID(consentID string) string {
	return uuid.NewSHA1(runIDNamespace, []byte(consentID)).String()
}

// RunContext carries everything owned by one run. The orchestrator is the
// sole writer of State; workers only read the abort flag and append to
// Findings through its merge point.
type RunContext struct {
	RunID    string
	Request  StartRequest
	State    RunState
	Started  time.Time
	Deadline time.Time
	Scope    ScopeSpec
	Findings *FindingSet

	abort atomic.Bool
}

// NewRunContext creates the context for an accepted start request.
func NewRunContext(req StartRequest, now time.Time, maxDuration time.Duration) *RunContext {
	return &RunContext{
		RunID:    RunID(req.ConsentID),
		Request:  req,
		State:    StateValidating,
		Started:  now,
		Deadline: now.Add(maxDuration),
		Findings: NewFindingSet(),
	}
}

// Abort raises the cooperative abort flag. Workers observe it at safe points;
// only external tool processes are killed outright.
func (r *RunContext) Abort() {
	r.abort.Store(true)
}

// Aborted reports whether an abort was requested.
func (r *RunContext) Aborted() bool {
	return r.abort.Load()
}

// DeadlineExceeded reports whether the run's overall time budget is spent.
func (r *RunContext) DeadlineExceeded(now time.Time) bool {
	return now.After(r.Deadline)
}
