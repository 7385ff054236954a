// Package progress implements the Progress Store: a durable, crash-safe
// record of which targets have reached a terminal successful state, plus
// the run metadata needed to resume.
package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/duskline/duskline/internal/config"
)

// ErrNotFound is returned by Load when the state file does not exist. The
// caller treats this as "fresh run", never as a failure.
var ErrNotFound = errors.New("progress store: state file not found")

// ScanState is the Progress Store's on-disk document.
type ScanState struct {
	StartTime     time.Time         `json:"start_time"`
	ResultsDir    string            `json:"results_dir"`
	TotalOrgs     int               `json:"total_orgs"`
	ScannedOrgs   []string          `json:"scanned_orgs"`
	LastUpdated   time.Time         `json:"last_updated"`
	Configuration map[string]string `json:"configuration"`
}

// CorruptError wraps a parse failure with the offending file path. A
// corrupt state file is reported and aborts the run; it is never silently
// deleted.
type CorruptError struct {
	Path string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("progress store %s is corrupt: %v", e.Path, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

// Store is the single serializing actor guarding all mutation of the
// on-disk state file. One command at a time is processed on an internal
// goroutine, so concurrent RecordDone calls from multiple workers never
// interleave their writes.
type Store struct {
	path  string
	state ScanState
	done  map[string]bool

	cmds chan func()
	stop chan struct{}
}

// Load reads the state file at path. A missing file returns ErrNotFound. A
// present-but-unparseable file returns a *CorruptError, which the caller
// must treat as fatal (never silently deleted).
func Load(path string) (*ScanState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading progress store %s: %w", path, err)
	}
	var state ScanState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, &CorruptError{Path: path, Err: err}
	}
	return &state, nil
}

// Delete removes the state file (backs the --restart flag).
func Delete(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing progress store %s: %w", path, err)
	}
	return nil
}

// New starts a Store actor. If resume is true and an existing state file is
// present and valid, it is loaded as the starting point; otherwise a fresh
// ScanState is initialized and written immediately.
func New(path string, rc *config.RunConfig, total int, resume bool) (*Store, error) {
	s := &Store{
		path: path,
		done: make(map[string]bool),
		cmds: make(chan func()),
		stop: make(chan struct{}),
	}

	// A present-but-corrupt state file is fatal even when not resuming:
	// the operator must repair it or pass --restart.
	existing, err := Load(path)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if err == nil && resume {
		s.state = *existing
		for _, k := range existing.ScannedOrgs {
			s.done[k] = true
		}
		go s.run()
		return s, nil
	}

	s.state = ScanState{
		StartTime:     time.Now().UTC(),
		ResultsDir:    rc.ResultsDir,
		TotalOrgs:     total,
		ScannedOrgs:   []string{},
		LastUpdated:   time.Now().UTC(),
		Configuration: configurationSubset(rc),
	}
	go s.run()
	if err := s.writeLocked(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func configurationSubset(rc *config.RunConfig) map[string]string {
	return map[string]string{
		"ordering":      string(rc.Ordering),
		"workers":       fmt.Sprintf("%d", rc.Workers),
		"base_timeout":  fmt.Sprintf("%d", rc.BaseTimeout),
		"max_retries":   fmt.Sprintf("%d", rc.MaxRetries),
		"source_single": rc.Source.Single,
		"source_db":     rc.Source.EventDBPath,
		"source_file":   rc.Source.EventFilePath,
		"source_orgs":   rc.Source.OrgsFilePath,
	}
}

func (s *Store) run() {
	for {
		select {
		case fn := <-s.cmds:
			fn()
		case <-s.stop:
			return
		}
	}
}

// exec runs fn on the actor goroutine and blocks until it completes.
func (s *Store) exec(fn func()) {
	done := make(chan struct{})
	s.cmds <- func() {
		fn()
		close(done)
	}
	<-done
}

// RecordDone appends key to the success set and atomically persists the
// document. It must be called only after a target's
// side-effects (findings placed, notifications queued) are durable; a
// target whose Scan Task failed or was interrupted must never reach here.
func (s *Store) RecordDone(key string) error {
	var writeErr error
	s.exec(func() {
		if s.done[key] {
			return
		}
		s.done[key] = true
		s.state.ScannedOrgs = append(s.state.ScannedOrgs, key)
		s.state.LastUpdated = time.Now().UTC()
		writeErr = s.writeLocked()
	})
	return writeErr
}

// Contains reports whether key is already in the success set — the resume
// filter.
func (s *Store) Contains(key string) bool {
	result := make(chan bool, 1)
	s.exec(func() { result <- s.done[key] })
	return <-result
}

// Snapshot returns a copy of the current document, for diagnostics/TUI.
func (s *Store) Snapshot() ScanState {
	result := make(chan ScanState, 1)
	s.exec(func() { result <- s.state })
	return <-result
}

// writeLocked serializes the state to a sibling temp file and renames it
// into place, so readers never observe a torn document.
func (s *Store) writeLocked() error {
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing progress store: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating progress store directory: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing temporary progress store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming progress store into place: %w", err)
	}
	return nil
}

// Close stops the actor goroutine. Safe to call once after all RecordDone
// calls have completed.
func (s *Store) Close() {
	close(s.stop)
}
