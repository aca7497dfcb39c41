package scan

import (
	"context"
	"errors"
	"time"

	"yfitg/scout/internal/domain"

	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Executor runs work items on a fixed pool of workers so the aggregate
// packet/request rate stays under the safety ceiling. It stops dispatching
// once the abort flag is set or the run deadline passes, and always waits
// for in-flight items before returning.
type Executor struct {
	Log         *log.Entry
	Workers     int
	Limiter     *rate.Limiter
	HostTimeout time.Duration
	Runners     map[ToolKind]ToolRunner
}

// Execute drains the item list. Findings and degraded results (timeouts,
// tool errors) are appended to the run's finding set; nothing is discarded
// on abort.
func (e *Executor) Execute(ctx context.Context, run *domain.RunContext, items []WorkItem) {
	workers := e.Workers
	if workers < 1 {
		workers = 1
	}

	// In-flight tools are killed on abort through context cancellation;
	// everything already collected stays in the finding set.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stopWatch := make(chan struct{})
	defer close(stopWatch)
	go watchAbort(run, cancel, stopWatch)

	sem := make(chan struct{}, workers)
	done := make(chan struct{})
	inFlight := 0

	for _, item := range items {
		if run.Aborted() {
			e.Log.WithField("remaining", len(items)-inFlight).Warn("Abort requested, no further work dispatched")
			break
		}
		if run.DeadlineExceeded(time.Now()) {
			e.Log.Warn("Run deadline exceeded, no further work dispatched")
			break
		}
		if e.Limiter != nil {
			if err := e.Limiter.Wait(ctx); err != nil {
				break
			}
		}

		sem <- struct{}{}
		// The wait for a worker slot can outlast an abort; re-check before
		// launching so nothing is dispatched after the flag is set.
		if run.Aborted() {
			<-sem
			e.Log.WithField("remaining", len(items)-inFlight).Warn("Abort requested, no further work dispatched")
			break
		}
		inFlight++
		go func(item WorkItem) {
			defer func() {
				<-sem
				done <- struct{}{}
			}()
			e.runItem(ctx, run, item)
		}(item)
	}

	for i := 0; i < inFlight; i++ {
		<-done
	}
}

func (e *Executor) runItem(ctx context.Context, run *domain.RunContext, item WorkItem) {
	l := e.Log.WithFields(log.Fields{
		"tool":   item.Kind,
		"target": item.Target,
	})

	runner, ok := e.Runners[item.Kind]
	if !ok {
		l.Error("No runner registered for tool kind")
		run.Findings.Append(degraded(item, domain.CategoryToolError, "no runner registered"))
		return
	}

	// Per-item timeout: the per-host ceiling or the time left on the run,
	// whichever is smaller.
	timeout := e.HostTimeout
	if until := time.Until(run.Deadline); until < timeout {
		timeout = until
	}
	if timeout <= 0 {
		run.Findings.Append(degraded(item, domain.CategoryToolTimeout, "run deadline already exceeded"))
		return
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	findings, err := runner.Run(cctx, item)
	run.Findings.Append(findings...)

	switch {
	case err == nil:
		l.WithFields(log.Fields{
			"findings": len(findings),
			"elapsed":  time.Since(started).Round(time.Millisecond),
		}).Info("Tool run complete")
	case errors.Is(err, context.DeadlineExceeded):
		l.WithField("timeout", timeout).Warn("Tool killed on timeout")
		run.Findings.Append(degraded(item, domain.CategoryToolTimeout, "killed after "+timeout.String()))
	case errors.Is(err, context.Canceled):
		l.Warn("Tool killed on abort")
	default:
		l.WithError(err).Error("Tool run failed")
		run.Findings.Append(degraded(item, domain.CategoryToolError, err.Error()))
	}
}

func degraded(item WorkItem, category, detail string) domain.Finding {
	return domain.Finding{
		Target:       item.Target,
		Tool:         string(item.Kind),
		Category:     category,
		SeverityHint: domain.SeverityInfo,
		Detail:       detail,
		Timestamp:    time.Now().UTC(),
	}
}

func watchAbort(run *domain.RunContext, cancel context.CancelFunc, stop <-chan struct{}) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if run.Aborted() {
				cancel()
				return
			}
		}
	}
}
