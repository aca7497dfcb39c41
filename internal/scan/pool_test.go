package scan

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"yfitg/scout/internal/domain"

	log "github.com/sirupsen/logrus"
)

func testLog() *log.Entry {
	l := log.New()
	l.SetLevel(log.PanicLevel)
	return log.NewEntry(l)
}

func testRun(maxDuration time.Duration) *domain.RunContext {
	return domain.NewRunContext(domain.StartRequest{
		DeviceID:  "dev-test",
		ConsentID: "consent-1",
	}, time.Now().UTC(), maxDuration)
}

// fakeRunner lets tests script tool behaviour.
type fakeRunner struct {
	kind     ToolKind
	calls    atomic.Int32
	delay    time.Duration
	err      error
	findings []domain.Finding
}

func (f *fakeRunner) Kind() ToolKind { return f.kind }

func (f *fakeRunner) Run(ctx context.Context, item WorkItem) ([]domain.Finding, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.findings != nil {
		return f.findings, nil
	}
	return []domain.Finding{{
		Target:   item.Target,
		Tool:     string(f.kind),
		Category: domain.CategoryHost,
	}}, nil
}

func TestExecuteCollectsAllFindings(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{kind: ToolNmap}
	e := &Executor{
		Log:         testLog(),
		Workers:     2,
		HostTimeout: time.Minute,
		Runners:     map[ToolKind]ToolRunner{ToolNmap: runner},
	}

	run := testRun(time.Hour)
	items := []WorkItem{
		{Kind: ToolNmap, Target: "10.0.0.0/24"},
		{Kind: ToolNmap, Target: "10.0.1.0/24"},
		{Kind: ToolNmap, Target: "10.0.2.0/24"},
	}
	e.Execute(context.Background(), run, items)

	if got := runner.calls.Load(); got != 3 {
		t.Fatalf("expected 3 runner invocations, got %d", got)
	}
	if got := run.Findings.Len(); got != 3 {
		t.Fatalf("expected 3 findings, got %d", got)
	}
}

func TestExecuteAbortStopsDispatchKeepsPartials(t *testing.T) {
	t.Parallel()

	run := testRun(time.Hour)

	// The first item aborts the run mid-flight; later items must not start.
	aborting := &fakeRunner{kind: ToolNmap}
	slow := &fakeRunner{kind: ToolWebProbe, delay: 5 * time.Second}

	e := &Executor{
		Log:         testLog(),
		Workers:     1,
		HostTimeout: time.Minute,
		Runners: map[ToolKind]ToolRunner{
			ToolNmap:     aborting,
			ToolWebProbe: slow,
		},
	}

	items := []WorkItem{
		{Kind: ToolNmap, Target: "10.0.0.0/24"},
		{Kind: ToolWebProbe, Target: "10.0.0.5"},
		{Kind: ToolWebProbe, Target: "10.0.0.6"},
	}

	// Abort as soon as the first finding lands.
	go func() {
		for run.Findings.Len() == 0 {
			time.Sleep(5 * time.Millisecond)
		}
		run.Abort()
	}()

	done := make(chan struct{})
	go func() {
		e.Execute(context.Background(), run, items)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Execute did not return promptly after abort")
	}

	if run.Findings.Len() == 0 {
		t.Fatal("partial findings were discarded on abort")
	}
	if got := slow.calls.Load(); got > 1 {
		t.Fatalf("dispatch continued after abort: %d slow calls", got)
	}
}

func TestExecuteTimeoutProducesDegradedFinding(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{kind: ToolNmap, delay: time.Second}
	e := &Executor{
		Log:         testLog(),
		Workers:     1,
		HostTimeout: 20 * time.Millisecond,
		Runners:     map[ToolKind]ToolRunner{ToolNmap: runner},
	}

	run := testRun(time.Hour)
	e.Execute(context.Background(), run, []WorkItem{{Kind: ToolNmap, Target: "10.0.0.0/24"}})

	findings := run.Findings.Snapshot()
	if len(findings) != 1 {
		t.Fatalf("expected one degraded finding, got %d", len(findings))
	}
	if findings[0].Category != domain.CategoryToolTimeout {
		t.Fatalf("expected %s, got %s", domain.CategoryToolTimeout, findings[0].Category)
	}
}

func TestExecuteToolErrorProducesDegradedFinding(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{kind: ToolNmap, err: errors.New("binary not found")}
	e := &Executor{
		Log:         testLog(),
		Workers:     1,
		HostTimeout: time.Minute,
		Runners:     map[ToolKind]ToolRunner{ToolNmap: runner},
	}

	run := testRun(time.Hour)
	e.Execute(context.Background(), run, []WorkItem{{Kind: ToolNmap, Target: "10.0.0.0/24"}})

	findings := run.Findings.Snapshot()
	if len(findings) != 1 || findings[0].Category != domain.CategoryToolError {
		t.Fatalf("expected a tool_error finding, got %+v", findings)
	}
}

func TestExecuteExpiredDeadlineDispatchesNothing(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{kind: ToolNmap}
	e := &Executor{
		Log:         testLog(),
		Workers:     1,
		HostTimeout: time.Minute,
		Runners:     map[ToolKind]ToolRunner{ToolNmap: runner},
	}

	run := testRun(-time.Second) // deadline already in the past
	e.Execute(context.Background(), run, []WorkItem{{Kind: ToolNmap, Target: "10.0.0.0/24"}})

	if got := runner.calls.Load(); got != 0 {
		t.Fatalf("work dispatched past the deadline: %d calls", got)
	}
}

func TestExecuteMissingRunner(t *testing.T) {
	t.Parallel()

	e := &Executor{
		Log:         testLog(),
		Workers:     1,
		HostTimeout: time.Minute,
		Runners:     map[ToolKind]ToolRunner{},
	}

	run := testRun(time.Hour)
	e.Execute(context.Background(), run, []WorkItem{{Kind: ToolTLSCheck, Target: "10.0.0.5", Port: 443}})

	findings := run.Findings.Snapshot()
	if len(findings) != 1 || findings[0].Category != domain.CategoryToolError {
		t.Fatalf("expected a tool_error finding for the missing runner, got %+v", findings)
	}
}
