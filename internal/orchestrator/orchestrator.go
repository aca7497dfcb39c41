// Package orchestrator drives the scan/report/upload pipeline as a
// cancellable state machine. It owns the RunContext, is the sole writer of
// the run state, and guarantees partial work is never silently lost.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"yfitg/scout/internal/domain"
	"yfitg/scout/internal/scan"
	"yfitg/scout/internal/scope"
	"yfitg/scout/internal/summarize"

	log "github.com/sirupsen/logrus"
)

// Pipeline bundles the stage collaborators. All of them are stateless
// workers; they receive snapshots and return results.
type Pipeline struct {
	Validator  *scope.Validator
	Planner    scan.Planner
	Executor   *scan.Executor
	Summarizer domain.Summarizer
	Builder    domain.ReportBuilder
	Uploader   domain.Uploader
	Display    domain.Display
}

type Config struct {
	MaxDuration time.Duration
	OnFinish    func(*Result) // optional completion hook
}

// Result is the terminal record of one run.
type Result struct {
	RunID      string
	ConsentID  string
	State      domain.RunState
	StatusNote string
	Findings   []domain.Finding
	Artifact   *domain.ReportArtifact
	Receipt    *domain.UploadReceipt
	Started    time.Time
	Finished   time.Time
}

// Status is the snapshot shown on a short button press.
type Status struct {
	State    domain.RunState
	RunID    string
	Elapsed  time.Duration
	Findings int
}

type Orchestrator struct {
	Log  *log.Entry
	cfg  Config
	pipe Pipeline

	mu    sync.Mutex
	state domain.RunState
	run   *domain.RunContext
	last  *Result
}

func New(logEntry *log.Entry, cfg Config, pipe Pipeline) *Orchestrator {
	if cfg.MaxDuration == 0 {
		cfg.MaxDuration = 2 * time.Hour
	}
	return &Orchestrator{
		Log:   logEntry,
		cfg:   cfg,
		pipe:  pipe,
		state: domain.StateIdle,
	}
}

// Submit accepts a start request if the device is idle. It returns
// immediately; the pipeline executes on its own run lifecycle. A second
// request while a run is active is rejected with ErrBusy and changes
// nothing.
func (o *Orchestrator) Submit(req domain.StartRequest) error {
	o.mu.Lock()
	if o.state != domain.StateIdle {
		o.mu.Unlock()
		return domain.ErrBusy
	}
	run := domain.NewRunContext(req, time.Now().UTC(), o.cfg.MaxDuration)
	o.run = run
	o.state = domain.StateValidating
	o.mu.Unlock()

	o.Log.WithFields(log.Fields{
		"run_id":     run.RunID,
		"consent_id": req.ConsentID,
	}).Info("Start request accepted")
	o.render(domain.StateValidating, 5, "")

	go o.execute(run)
	return nil
}

// Abort raises the cooperative abort flag on the active run. Stages observe
// it at their checkpoints; report and upload still run on whatever was
// collected.
func (o *Orchestrator) Abort() {
	o.mu.Lock()
	run := o.run
	o.mu.Unlock()

	if run == nil {
		o.Log.Info("Abort requested with no active run")
		return
	}
	o.Log.WithField("run_id", run.RunID).Warn("Abort requested")
	run.Abort()
}

// State returns the current pipeline state.
func (o *Orchestrator) State() domain.RunState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Status returns a snapshot for the status display.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := Status{State: o.state}
	if o.run != nil {
		s.RunID = o.run.RunID
		s.Elapsed = time.Since(o.run.Started)
		s.Findings = o.run.Findings.Len()
	}
	return s
}

// LastResult returns the record of the most recently finished run, or nil.
func (o *Orchestrator) LastResult() *Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last
}

func (o *Orchestrator) execute(run *domain.RunContext) {
	ctx := context.Background()
	l := o.Log.WithField("run_id", run.RunID)

	res := &Result{
		RunID:     run.RunID,
		ConsentID: run.Request.ConsentID,
		Started:   run.Started,
	}
	var fatal error

	// Validation. The portal's claims are ignored; scope is re-checked
	// against the device allow-list.
	spec, err := o.pipe.Validator.Validate(run.Request.Scope)
	run.Scope = spec
	if err != nil {
		fatal = err
		l.WithError(err).Error("Scope validation failed, no tool will be invoked")
	} else {
		o.setState(run, domain.StateScanning)
		o.render(domain.StateScanning, 10, "")

		items := o.pipe.Planner.Plan(spec)
		l.WithField("items", len(items)).Info("Enumeration pass planned")
		o.pipe.Executor.Execute(ctx, run, items)

		// Checkpoint before the probe pass.
		if !run.Aborted() && !run.DeadlineExceeded(time.Now()) {
			o.render(domain.StateScanning, 40, "")
			followUps := o.pipe.Planner.FollowUps(spec, run.Findings.Snapshot())
			l.WithField("items", len(followUps)).Info("Probe pass planned")
			o.pipe.Executor.Execute(ctx, run, followUps)
		}
	}

	// Summarize. Skipped in favor of the deterministic fallback when the
	// run is already aborted or failed; the fallback never stalls.
	var summary domain.Summary
	switch {
	case fatal != nil || run.Aborted():
		table := run.Findings.CountByCategory()
		summary = domain.Summary{ExecutiveText: summarize.Fallback(table), Table: table}
	default:
		o.setState(run, domain.StateSummarizing)
		o.render(domain.StateSummarizing, 70, "")
		summary = o.pipe.Summarizer.Summarize(ctx, run.Findings)
	}

	statusNote := o.statusNote(run, fatal)
	res.StatusNote = statusNote
	res.Findings = run.Findings.Snapshot()

	// Report. Always produced, even for a failed or aborted run, so every
	// terminal state leaves an auditable artifact.
	o.setState(run, domain.StateReporting)
	o.render(domain.StateReporting, 80, "")
	artifact, err := o.pipe.Builder.Build(res.Findings, summary, domain.ReportMeta{
		DeviceID:   run.Request.DeviceID,
		ConsentID:  run.Request.ConsentID,
		RunID:      run.RunID,
		StatusNote: statusNote,
		Contact:    run.Request.Contact,
	})
	if err != nil {
		fatal = fmt.Errorf("report build: %w", err)
		l.WithError(err).Error("No report artifact could be produced")
	}
	res.Artifact = artifact

	// Upload. Best effort for every terminal path; the uploader persists
	// the artifact locally when no receipt can be obtained.
	uploadFailed := false
	if artifact != nil {
		o.setState(run, domain.StateUploading)
		o.render(domain.StateUploading, 90, "")
		receipt, err := o.pipe.Uploader.Upload(ctx, artifact, statusNote)
		if err != nil {
			uploadFailed = true
			l.WithError(err).Error("Upload failed, artifact retained locally")
		}
		res.Receipt = receipt
	}

	var terminal domain.RunState
	switch {
	case run.Aborted():
		terminal = domain.StateAborted
	case fatal != nil || uploadFailed:
		terminal = domain.StateFailed
	default:
		terminal = domain.StateComplete
	}

	o.finish(run, res, terminal)
}

// finish records the terminal state and only then releases the run, so no
// new start request is accepted while an artifact is still pending
// persistence.
func (o *Orchestrator) finish(run *domain.RunContext, res *Result, terminal domain.RunState) {
	res.State = terminal
	res.Finished = time.Now().UTC()

	o.setState(run, terminal)
	o.render(terminal, 100, res.StatusNote)

	o.Log.WithFields(log.Fields{
		"run_id":   run.RunID,
		"state":    terminal,
		"findings": len(res.Findings),
		"uploaded": res.Receipt != nil,
		"duration": res.Finished.Sub(res.Started).Round(time.Second),
	}).Info("Run finished")

	o.mu.Lock()
	o.last = res
	o.run = nil
	o.state = domain.StateIdle
	o.mu.Unlock()

	if o.cfg.OnFinish != nil {
		o.cfg.OnFinish(res)
	}
}

func (o *Orchestrator) setState(run *domain.RunContext, state domain.RunState) {
	o.mu.Lock()
	run.State = state
	o.state = state
	o.mu.Unlock()
}

func (o *Orchestrator) render(state domain.RunState, percent float64, message string) {
	if o.pipe.Display != nil {
		o.pipe.Display.Render(state, percent, message)
	}
}

func (o *Orchestrator) statusNote(run *domain.RunContext, fatal error) string {
	switch {
	case fatal != nil:
		return "run failed: " + fatal.Error()
	case run.Aborted():
		return "aborted by operator; report covers partial results"
	case run.DeadlineExceeded(time.Now()):
		return "time budget exhausted; report covers partial results"
	default:
		return ""
	}
}
