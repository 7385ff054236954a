package pool

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/duskline/duskline/internal/config"
	"github.com/duskline/duskline/internal/progress"
	"github.com/duskline/duskline/models"
)

// sliceSource streams a fixed target list.
type sliceSource struct {
	targets []models.Target
}

func (s *sliceSource) Stream(ctx context.Context) (<-chan models.Target, error) {
	out := make(chan models.Target)
	go func() {
		defer close(out)
		for _, t := range s.targets {
			select {
			case out <- t:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// fakeRunner returns a scripted outcome per canonical key and records what
// it was asked to run.
type fakeRunner struct {
	mu       sync.Mutex
	ran      []string
	outcomes map[string]models.OutcomeStatus
	block    chan struct{} // when set, Run waits on it (or ctx)
}

func (f *fakeRunner) Run(ctx context.Context, t models.Target) models.Outcome {
	key := t.CanonicalKey()
	f.mu.Lock()
	f.ran = append(f.ran, key)
	f.mu.Unlock()

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return models.Outcome{Target: t, CanonicalKey: key, Status: models.StatusFailedTransient, ErrorKind: models.ErrorPrepare}
		}
	}

	status, ok := f.outcomes[key]
	if !ok {
		status = models.StatusCompletedClean
	}
	return models.Outcome{Target: t, CanonicalKey: key, Status: status}
}

func (f *fakeRunner) ranKeys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ran...)
}

func newStore(t *testing.T) *progress.Store {
	t.Helper()
	rc := &config.RunConfig{
		Ordering: config.OrderingLatest, Workers: 2, BaseTimeout: 900, MaxTimeout: 3600,
		ResultsDir: t.TempDir(), StateFile: filepath.Join(t.TempDir(), "state.json"),
		Source: config.SourceDescriptor{Single: "acme"},
	}
	s, err := progress.New(rc.StateFile, rc, 10, false)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)
	return s
}

func targetsFor(keys ...string) []models.Target {
	out := make([]models.Target, 0, len(keys))
	for _, k := range keys {
		out = append(out, models.CommitTarget{Org: "acme", Repo: "app", Commit: k})
	}
	return out
}

func TestRunRecordsOnlySuccessfulOutcomes(t *testing.T) {
	store := newStore(t)
	runner := &fakeRunner{outcomes: map[string]models.OutcomeStatus{
		"acme/app@1": models.StatusCompletedClean,
		"acme/app@2": models.StatusCompletedWithFindings,
		"acme/app@3": models.StatusFailedPermanent,
		"acme/app@4": models.StatusTimedOut,
	}}
	p := &Pool{Workers: 2, Runner: runner, Store: store}

	summary, err := p.Run(context.Background(), &sliceSource{targets: targetsFor("1", "2", "3", "4")})
	if err != nil {
		t.Fatal(err)
	}

	if summary.Clean != 1 || summary.WithFindings != 1 || summary.Failed != 1 || summary.TimedOut != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.Interrupted {
		t.Error("uninterrupted run reported Interrupted")
	}

	// Invariant: a key is in the success set iff its outcome was terminal
	// successful.
	for key, want := range map[string]bool{
		"acme/app@1": true, "acme/app@2": true,
		"acme/app@3": false, "acme/app@4": false,
	} {
		if got := store.Contains(key); got != want {
			t.Errorf("store.Contains(%s) = %v, want %v", key, got, want)
		}
	}
}

func TestRunSkipsAlreadyDoneTargets(t *testing.T) {
	store := newStore(t)
	if err := store.RecordDone("acme/app@1"); err != nil {
		t.Fatal(err)
	}

	runner := &fakeRunner{}
	p := &Pool{Workers: 1, Runner: runner, Store: store}
	summary, err := p.Run(context.Background(), &sliceSource{targets: targetsFor("1", "2")})
	if err != nil {
		t.Fatal(err)
	}

	if summary.Skipped != 1 || summary.Clean != 1 {
		t.Errorf("summary = %+v, want 1 skipped, 1 clean", summary)
	}
	ran := runner.ranKeys()
	if len(ran) != 1 || ran[0] != "acme/app@2" {
		t.Errorf("runner invoked for %v, want only acme/app@2", ran)
	}
}

func TestRunResumePerformsZeroWorkForCompletedRun(t *testing.T) {
	store := newStore(t)
	for _, k := range []string{"acme/app@1", "acme/app@2", "acme/app@3"} {
		if err := store.RecordDone(k); err != nil {
			t.Fatal(err)
		}
	}

	runner := &fakeRunner{}
	p := &Pool{Workers: 2, Runner: runner, Store: store}
	summary, err := p.Run(context.Background(), &sliceSource{targets: targetsFor("1", "2", "3")})
	if err != nil {
		t.Fatal(err)
	}
	if summary.Skipped != 3 {
		t.Errorf("summary = %+v, want 3 skipped", summary)
	}
	if ran := runner.ranKeys(); len(ran) != 0 {
		t.Errorf("resume run invoked the task for %v, want none", ran)
	}
}

func TestRunInterruptionLeavesInFlightUnrecorded(t *testing.T) {
	store := newStore(t)
	block := make(chan struct{})
	runner := &fakeRunner{block: block}
	p := &Pool{Workers: 2, Runner: runner, Store: store}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Summary, 1)
	go func() {
		s, _ := p.Run(ctx, &sliceSource{targets: targetsFor("1", "2", "3", "4")})
		done <- s
	}()

	// Wait until both workers are mid-task, then deliver the shutdown.
	deadline := time.After(5 * time.Second)
	for len(runner.ranKeys()) < 2 {
		select {
		case <-deadline:
			t.Fatal("workers never picked up targets")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()

	summary := <-done
	if !summary.Interrupted {
		t.Error("cancelled run did not report Interrupted")
	}
	for _, k := range []string{"acme/app@1", "acme/app@2", "acme/app@3", "acme/app@4"} {
		if store.Contains(k) {
			t.Errorf("in-flight target %s recorded as done after interruption", k)
		}
	}
}

func TestRunDispatchesUpdates(t *testing.T) {
	store := newStore(t)
	runner := &fakeRunner{}

	var mu sync.Mutex
	var started, finished int
	p := &Pool{
		Workers: 1,
		Runner:  runner,
		Store:   store,
		OnUpdate: func(u Update) {
			mu.Lock()
			defer mu.Unlock()
			if u.Outcome == nil {
				started++
			} else {
				finished++
			}
		},
	}

	if _, err := p.Run(context.Background(), &sliceSource{targets: targetsFor("1", "2")}); err != nil {
		t.Fatal(err)
	}
	mu.Lock()
	defer mu.Unlock()
	if started != 2 || finished != 2 {
		t.Errorf("updates: started=%d finished=%d, want 2/2", started, finished)
	}
}
