// Package pool implements the Worker Pool: a bounded-concurrency
// executor that pulls Targets from the Target Source, invokes
// the Scan Task for each under a hard per-target deadline, and serializes
// outcomes to the Progress Store and Notification Dispatcher.
package pool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/duskline/duskline/internal/config"
	"github.com/duskline/duskline/internal/notify"
	"github.com/duskline/duskline/internal/progress"
	"github.com/duskline/duskline/internal/target"
	"github.com/duskline/duskline/models"
)

// TaskRunner executes one Scan Task to completion and always yields an
// Outcome. Satisfied by *scantask.Runner.
type TaskRunner interface {
	Run(ctx context.Context, t models.Target) models.Outcome
}

// Update is a progress notification delivered to an optional observer
// (the live dashboard) as workers pick up and finish targets.
type Update struct {
	WorkerID int
	Key      string
	// Outcome is nil while the target is in flight and set once it ends.
	Outcome *models.Outcome
}

// hardDeadline is the per-target wall-clock ceiling that supersedes every
// adaptive/retry budget.
const hardDeadline = 3600 * time.Second

// Summary is the Worker Pool's run(...) return value.
type Summary struct {
	Clean        int
	WithFindings int
	Failed       int
	TimedOut     int
	Skipped      int
	Interrupted  bool
}

// Pool drives N concurrent Scan Tasks.
type Pool struct {
	Workers     int
	Runner      TaskRunner
	Store       *progress.Store
	Notifier    *notify.Dispatcher
	Cfg         *config.Config
	Ordering    config.OrderingPolicy
	DegradeHard bool

	// OnUpdate, when set, receives worker progress for the live dashboard.
	// It must not block.
	OnUpdate func(Update)
}

// Run dispatches every Target from src into the pool and returns once the
// stream is exhausted or ctx is cancelled.
func (p *Pool) Run(ctx context.Context, src target.Source) (Summary, error) {
	stream, err := src.Stream(ctx)
	if err != nil {
		return Summary{}, err
	}

	jobs := make(chan models.Target, p.Workers*2)
	results := make(chan models.Outcome, p.Workers*2)

	var wg sync.WaitGroup
	for i := 0; i < p.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.worker(ctx, id, jobs, results)
		}(i)
	}

	// Expander: turns incoming OrganizationTargets into RepositoryTargets
	// before they reach a worker, and forwards everything else untouched.
	go func() {
		defer close(jobs)
		for {
			select {
			case <-ctx.Done():
				return
			case t, ok := <-stream:
				if !ok {
					return
				}
				p.dispatch(ctx, t, jobs)
			}
		}
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(results)
		close(done)
	}()

	summary := Summary{}
	for out := range results {
		p.record(out, &summary)
	}
	<-done

	if ctx.Err() != nil {
		summary.Interrupted = true
	}
	return summary, nil
}

func (p *Pool) dispatch(ctx context.Context, t models.Target, jobs chan<- models.Target) {
	org, ok := t.(models.OrganizationTarget)
	if !ok {
		select {
		case jobs <- t:
		case <-ctx.Done():
		}
		return
	}

	expanded, err := target.Expand(ctx, org, p.Cfg, p.Ordering, p.DegradeHard)
	if err != nil {
		slog.Error("organization expansion failed", "org", org.Org, "error", err)
		return
	}
	for _, rt := range expanded {
		select {
		case jobs <- rt:
		case <-ctx.Done():
			return
		}
	}
}

func (p *Pool) worker(ctx context.Context, id int, jobs <-chan models.Target, results chan<- models.Outcome) {
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-jobs:
			if !ok {
				return
			}
			key := t.CanonicalKey()
			if p.Store != nil && p.Store.Contains(key) {
				results <- models.Outcome{Target: t, CanonicalKey: key, Status: models.StatusSkippedAlreadyDone}
				continue
			}

			p.notifyUpdate(Update{WorkerID: id, Key: key})

			taskCtx, cancel := context.WithTimeout(ctx, hardDeadline)
			out := p.Runner.Run(taskCtx, t)
			if taskCtx.Err() == context.DeadlineExceeded && out.Status != models.StatusTimedOut {
				out.Status = models.StatusTimedOut
				out.ErrorKind = models.ErrorDetectTimeout
			}
			cancel()

			slog.Info(statusLine(out), "worker", id, "target", key, "status", out.Status, "elapsed", out.Elapsed)
			p.notifyUpdate(Update{WorkerID: id, Key: key, Outcome: &out})

			results <- out
		}
	}
}

func statusLine(out models.Outcome) string {
	emoji := "✅"
	switch out.Status {
	case models.StatusCompletedWithFindings:
		emoji = "🔑"
	case models.StatusFailedTransient, models.StatusFailedPermanent:
		emoji = "❌"
	case models.StatusTimedOut:
		emoji = "⏱️"
	case models.StatusSkippedAlreadyDone:
		emoji = "⏭️"
	}
	return fmt.Sprintf("%s %s %s", emoji, out.CanonicalKey, out.Status)
}

// record applies the Progress Store / Notification Dispatcher policy for a
// completed outcome: only
// Recordable statuses are ever recorded, and recording happens strictly
// after any findings have been durably published.
func (p *Pool) record(out models.Outcome, summary *Summary) {
	switch out.Status {
	case models.StatusCompletedClean:
		summary.Clean++
	case models.StatusCompletedWithFindings:
		summary.WithFindings++
	case models.StatusFailedTransient, models.StatusFailedPermanent:
		summary.Failed++
	case models.StatusTimedOut:
		summary.TimedOut++
	case models.StatusSkippedAlreadyDone:
		summary.Skipped++
	}

	if out.Status.Recordable() && p.Store != nil {
		if err := p.Store.RecordDone(out.CanonicalKey); err != nil {
			slog.Error("failed to record progress", "target", out.CanonicalKey, "error", err)
		}
	}

	if p.Notifier != nil && out.Status == models.StatusCompletedWithFindings {
		org := models.OrganizationOf(out.Target)
		if len(out.Findings) > 0 {
			// Deduplicated per org inside the dispatcher: only the first
			// findings for an organization this run fire an Immediate.
			p.Notifier.Dispatch(notify.Event{
				Kind:         notify.EventImmediate,
				CanonicalKey: out.CanonicalKey,
				Organization: org,
				Preview:      &out.Findings[0],
			})
		}
		p.Notifier.Dispatch(notify.Event{
			Kind:         notify.EventCompletion,
			CanonicalKey: out.CanonicalKey,
			Organization: org,
			Findings:     out.Findings,
			ArtifactPath: out.ArtifactPath,
		})
	}
}

func (p *Pool) notifyUpdate(u Update) {
	if p.OnUpdate != nil {
		p.OnUpdate(u)
	}
}
