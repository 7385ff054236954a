// Package workspace implements the Workspace scoped resource: a mutable,
// exclusively-owned filesystem area created when a Scan Task begins and
// destroyed on every exit path, success or not.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// orphanPrefix marks directories created by New so SweepOrphans can find and
// remove anything left behind by a process that exited without cleanup.
const orphanPrefix = "duskline-ws-"

// Workspace is a scoped, single-owner temporary directory.
type Workspace struct {
	ID    string
	Root  string
	Owner string

	released bool
}

// New allocates a fresh Workspace under baseDir (the OS temp directory if
// baseDir is empty), owned by owner (typically a worker identifier).
func New(baseDir, owner string) (*Workspace, error) {
	root, err := os.MkdirTemp(baseDir, orphanPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("allocating workspace: %w", err)
	}
	return &Workspace{
		ID:    filepath.Base(root),
		Root:  root,
		Owner: owner,
	}, nil
}

// RepoDir is where the target's content is fetched. It does not exist
// until the clone creates it.
func (w *Workspace) RepoDir() string { return filepath.Join(w.Root, "repo") }

// OutDir is where detector output is streamed, kept outside RepoDir so the
// detector never scans its own output. Both live under Root, so one
// Cleanup removes everything.
func (w *Workspace) OutDir() string { return filepath.Join(w.Root, "out") }

// Cleanup destroys the workspace. It is idempotent and safe to call from a
// defer on every exit path (success, failure, timeout, cancellation); a
// failure here is logged by the caller but never changes a Scan Task's
// outcome.
func (w *Workspace) Cleanup() error {
	if w == nil || w.released {
		return nil
	}
	w.released = true
	return os.RemoveAll(w.Root)
}

// SweepOrphans removes any workspace directories left over from a prior
// process that exited without running Cleanup (crash, kill -9). It is
// called once at process startup, before any Scan Task runs.
func SweepOrphans(baseDir string) (int, error) {
	dir := baseDir
	if dir == "" {
		dir = os.TempDir()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("listing %s for orphan workspaces: %w", dir, err)
	}
	removed := 0
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), orphanPrefix) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}
