package progress

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/duskline/duskline/internal/config"
)

func testRunConfig() *config.RunConfig {
	return &config.RunConfig{
		Ordering:    config.OrderingLatest,
		Workers:     2,
		BaseTimeout: 900,
		MaxTimeout:  3600,
		MaxRetries:  3,
		ResultsDir:  "/tmp/results",
		StateFile:   "/tmp/state.json",
		Source:      config.SourceDescriptor{Single: "acme"},
	}
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Load of missing file = %v, want ErrNotFound", err)
	}
}

func TestLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not valid json"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	var corrupt *CorruptError
	if !errors.As(err, &corrupt) {
		t.Fatalf("Load of corrupt file = %v, want CorruptError", err)
	}
	if corrupt.Path != path {
		t.Errorf("CorruptError.Path = %q, want %q", corrupt.Path, path)
	}
}

func TestCorruptStateIsFatalEvenWithoutResume(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("garbage"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := New(path, testRunConfig(), 10, false)
	var corrupt *CorruptError
	if !errors.As(err, &corrupt) {
		t.Fatalf("New over corrupt state = %v, want CorruptError", err)
	}

	// The corrupt file must still be on disk, never silently deleted.
	if _, err := os.Stat(path); err != nil {
		t.Errorf("corrupt state file was removed: %v", err)
	}
}

func TestRecordDoneAndContains(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := New(path, testRunConfig(), 3, false)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if s.Contains("acme/app@1") {
		t.Error("fresh store claims to contain a key")
	}
	if err := s.RecordDone("acme/app@1"); err != nil {
		t.Fatal(err)
	}
	if !s.Contains("acme/app@1") {
		t.Error("recorded key not reported by Contains")
	}

	// Duplicate records must not duplicate the on-disk entry.
	if err := s.RecordDone("acme/app@1"); err != nil {
		t.Fatal(err)
	}
	state, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(state.ScannedOrgs) != 1 || state.ScannedOrgs[0] != "acme/app@1" {
		t.Errorf("ScannedOrgs = %v, want exactly one entry", state.ScannedOrgs)
	}
	if state.TotalOrgs != 3 {
		t.Errorf("TotalOrgs = %d, want 3", state.TotalOrgs)
	}
}

func TestRecordDoneConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := New(path, testRunConfig(), 50, false)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := string(rune('a'+n%26)) + "/repo@" + string(rune('0'+n%10))
			_ = s.RecordDone(key)
		}(i)
	}
	wg.Wait()

	state, err := Load(path)
	if err != nil {
		t.Fatalf("state unreadable after concurrent writes: %v", err)
	}
	seen := make(map[string]bool)
	for _, k := range state.ScannedOrgs {
		if seen[k] {
			t.Errorf("duplicate key %q in success set", k)
		}
		seen[k] = true
	}
}

func TestResumeAdoptsExistingState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	s1, err := New(path, testRunConfig(), 2, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := s1.RecordDone("acme/app@1"); err != nil {
		t.Fatal(err)
	}
	s1.Close()

	s2, err := New(path, testRunConfig(), 2, true)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()
	if !s2.Contains("acme/app@1") {
		t.Error("resume did not adopt existing success set")
	}
	if s2.Contains("acme/app@2") {
		t.Error("resume invented a key")
	}
}

func TestReserializeRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := New(path, testRunConfig(), 1, false)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.RecordDone("acme/app@1"); err != nil {
		t.Fatal(err)
	}
	s.Close()

	original, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var state ScanState
	if err := json.Unmarshal(original, &state); err != nil {
		t.Fatal(err)
	}
	reserialized, err := json.MarshalIndent(&state, "", "  ")
	if err != nil {
		t.Fatal(err)
	}
	if string(reserialized) != string(original) {
		t.Errorf("re-serialized document differs from disk:\n%s\n---\n%s", reserialized, original)
	}
}

func TestDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := New(path, testRunConfig(), 1, false)
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	if err := Delete(path); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("state file still present after Delete")
	}
	// Deleting an absent file is not an error.
	if err := Delete(path); err != nil {
		t.Errorf("Delete of absent file = %v", err)
	}
}
