// Package schedule runs the scan loop on a recurring cron schedule, for
// unattended operation against a continuously-updated event feed. One-shot
// runs bypass this package entirely.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"
)

// Runner invokes fn per the cron expression until ctx is cancelled.
// Overlapping firings are suppressed: if a sweep is still in progress when
// the next tick arrives, the tick is skipped with a diagnostic.
type Runner struct {
	spec string
	fn   func(context.Context) error

	mu      sync.Mutex
	running bool
}

// New validates spec (standard 5-field cron, or descriptors like
// "@hourly") and returns a Runner for fn.
func New(spec string, fn func(context.Context) error) (*Runner, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return &Runner{spec: spec, fn: fn}, nil
}

// Run blocks until ctx is cancelled, firing fn on schedule. The first
// firing waits for the first cron tick; callers wanting an immediate sweep
// run fn once themselves before calling Run.
func (r *Runner) Run(ctx context.Context) error {
	c := cron.New()
	_, err := c.AddFunc(r.spec, func() { r.fire(ctx) })
	if err != nil {
		return fmt.Errorf("registering schedule %q: %w", r.spec, err)
	}
	c.Start()
	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()
	return ctx.Err()
}

func (r *Runner) fire(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		slog.Warn("previous sweep still in progress; skipping this tick", "schedule", r.spec)
		return
	}
	r.running = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	if err := r.fn(ctx); err != nil && ctx.Err() == nil {
		slog.Error("scheduled sweep failed", "error", err)
	}
}
