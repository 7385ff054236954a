// Package target implements the Target Source: the leaf component that
// produces a finite, ordered, deduplicated sequence of scan targets from
// one of four backends (event-DB, event-file, organization list, or a
// single identifier) and applies the run's ordering policy before anything
// reaches the Worker Pool.
package target

import (
	"context"
	"fmt"

	"github.com/duskline/duskline/internal/config"
	"github.com/duskline/duskline/internal/database"
	"github.com/duskline/duskline/models"
)

// Source is the contract the Worker Pool consumes: a single-pass,
// restartable-by-reconstruction stream of Targets. Each canonical-key is
// emitted at most once per Source.
type Source interface {
	Stream(ctx context.Context) (<-chan models.Target, error)
}

// Resolved is the materialized Target Source: every backend orders and
// dedups its targets up front (cheap relative to a scan, and it's the only
// way to know Total() before the pool starts), so Stream just replays a
// slice onto a channel.
type Resolved struct {
	BackendName string
	Targets     []models.Target
}

// Total is the target count observed at run start, recorded verbatim into
// the Progress Store's ScanState.
func (r *Resolved) Total() int { return len(r.Targets) }

// Stream replays the resolved target list, respecting cancellation.
func (r *Resolved) Stream(ctx context.Context) (<-chan models.Target, error) {
	out := make(chan models.Target)
	go func() {
		defer close(out)
		for _, t := range r.Targets {
			select {
			case out <- t:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// New selects and resolves the backend named by rc.Source, applies the
// configured ordering policy, and deduplicates by canonical-key. db is the
// already-open Event-DB store when one was configured or needed as the
// Organization-List backend's cross-check; it may be nil.
func New(ctx context.Context, rc *config.RunConfig, db database.Store) (*Resolved, error) {
	var (
		name    string
		targets []models.Target
		err     error
	)

	switch {
	case rc.Source.Single != "":
		name = "single"
		targets, err = singleTargets(rc.Source.Single)
	case rc.Source.EventDBPath != "":
		if db == nil {
			return nil, fmt.Errorf("%w: event database %q could not be opened", ErrSourceUnavailable, rc.Source.EventDBPath)
		}
		name = "event-db"
		targets, err = eventTargets(ctx, db)
	case rc.Source.EventFilePath != "":
		name = "event-file"
		targets, err = eventFileTargets(rc.Source.EventFilePath)
	case rc.Source.OrgsFilePath != "":
		name = "orgs-file"
		targets, err = orgsFileTargets(rc.Source.OrgsFilePath, db)
	default:
		return nil, fmt.Errorf("%w: no target source configured", ErrSourceUnavailable)
	}
	if err != nil {
		return nil, err
	}

	targets = dedup(targets)
	targets, err = order(targets, rc.Ordering, rc.StarsDegradeToHardError)
	if err != nil {
		return nil, err
	}

	return &Resolved{BackendName: name, Targets: targets}, nil
}

// dedup preserves first-seen order while dropping repeated canonical-keys,
// satisfying the Target Source's "at most once per run" contract.
func dedup(targets []models.Target) []models.Target {
	seen := make(map[string]bool, len(targets))
	out := make([]models.Target, 0, len(targets))
	for _, t := range targets {
		key := t.CanonicalKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}
