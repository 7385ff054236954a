package workspace

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewAndCleanup(t *testing.T) {
	base := t.TempDir()
	ws, err := New(base, "worker-1")
	if err != nil {
		t.Fatal(err)
	}
	if ws.Owner != "worker-1" {
		t.Errorf("Owner = %q", ws.Owner)
	}
	if _, err := os.Stat(ws.Root); err != nil {
		t.Fatalf("workspace root missing after New: %v", err)
	}

	// Content inside the workspace goes with it.
	if err := os.MkdirAll(ws.RepoDir(), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(ws.RepoDir(), "f"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := ws.Cleanup(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(ws.Root); !os.IsNotExist(err) {
		t.Error("workspace root still present after Cleanup")
	}

	// Cleanup is idempotent.
	if err := ws.Cleanup(); err != nil {
		t.Errorf("second Cleanup = %v", err)
	}
}

func TestOutDirInsideRoot(t *testing.T) {
	ws, err := New(t.TempDir(), "w")
	if err != nil {
		t.Fatal(err)
	}
	defer ws.Cleanup()

	for _, dir := range []string{ws.RepoDir(), ws.OutDir()} {
		rel, err := filepath.Rel(ws.Root, dir)
		if err != nil || rel == ".." || filepath.IsAbs(rel) {
			t.Errorf("%s escapes workspace root %s", dir, ws.Root)
		}
	}
}

func TestSweepOrphans(t *testing.T) {
	base := t.TempDir()

	ws1, err := New(base, "w1")
	if err != nil {
		t.Fatal(err)
	}
	ws2, err := New(base, "w2")
	if err != nil {
		t.Fatal(err)
	}
	// An unrelated directory must survive the sweep.
	keep := filepath.Join(base, "unrelated")
	if err := os.Mkdir(keep, 0o755); err != nil {
		t.Fatal(err)
	}

	removed, err := SweepOrphans(base)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 2 {
		t.Errorf("removed %d orphans, want 2", removed)
	}
	for _, root := range []string{ws1.Root, ws2.Root} {
		if _, err := os.Stat(root); !os.IsNotExist(err) {
			t.Errorf("orphan %s survived the sweep", root)
		}
	}
	if _, err := os.Stat(keep); err != nil {
		t.Errorf("unrelated directory removed by sweep: %v", err)
	}
}

func TestSweepOrphansMissingBase(t *testing.T) {
	removed, err := SweepOrphans(filepath.Join(t.TempDir(), "absent"))
	if err != nil || removed != 0 {
		t.Errorf("sweep of missing base = %d, %v; want 0, nil", removed, err)
	}
}
