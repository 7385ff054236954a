package scantask

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/duskline/duskline/models"
)

func TestPublishWritesResultsAtomically(t *testing.T) {
	root := t.TempDir()
	r := &Runner{ResultsDir: root}

	findings := []models.Finding{
		{DetectorName: "AWS", Verified: true, Raw: "AKIA...", Organization: "acme"},
		{DetectorName: "Slack", Verified: true, Raw: "xoxb-...", Organization: "acme"},
	}

	path, err := r.publish("acme", findings)
	if err != nil {
		t.Fatal(err)
	}

	day := time.Now().UTC().Format("2006-01-02")
	want := filepath.Join(root, day, "acme", "verified_secrets_acme.json")
	if path != want {
		t.Errorf("artifact path = %s, want %s", path, want)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got []models.Finding
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("results file is not a JSON array: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("results contain %d records, want 2", len(got))
	}
	for _, f := range got {
		if !f.Verified {
			t.Errorf("unverified finding %s in results file", f.DetectorName)
		}
	}

	// No temp file may remain next to the artifact.
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file %s left behind", e.Name())
		}
	}
}

func TestPublishMergesSameOrgArtifact(t *testing.T) {
	root := t.TempDir()
	r := &Runner{ResultsDir: root}

	first, err := r.publish("acme", []models.Finding{
		{DetectorName: "AWS", Verified: true, Raw: "AKIA...", ScannedCommit: "aaa"},
	})
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.publish("acme", []models.Finding{
		{DetectorName: "Slack", Verified: true, Raw: "xoxb-...", ScannedCommit: "bbb"},
		{DetectorName: "GitHub", Verified: true, Raw: "ghp_...", ScannedCommit: "bbb"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("same org published to two paths: %s vs %s", first, second)
	}

	data, err := os.ReadFile(second)
	if err != nil {
		t.Fatal(err)
	}
	var got []models.Finding
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("merged artifact has %d records, want 3 (second publish must not clobber the first)", len(got))
	}
	if got[0].DetectorName != "AWS" {
		t.Errorf("earlier target's finding lost: %+v", got)
	}
}

func TestPublishConcurrentSameOrg(t *testing.T) {
	root := t.TempDir()
	r := &Runner{ResultsDir: root}

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := r.publish("acme", []models.Finding{
				{DetectorName: "AWS", Verified: true, ScannedCommit: fmt.Sprintf("commit-%d", n)},
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}

	day := time.Now().UTC().Format("2006-01-02")
	data, err := os.ReadFile(filepath.Join(root, day, "acme", "verified_secrets_acme.json"))
	if err != nil {
		t.Fatal(err)
	}
	var got []models.Finding
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("artifact is not a valid array after concurrent publishes: %v", err)
	}
	if len(got) != writers {
		t.Fatalf("artifact has %d records, want %d (concurrent publishes lost findings)", len(got), writers)
	}
	seen := make(map[string]bool)
	for _, f := range got {
		seen[f.ScannedCommit] = true
	}
	if len(seen) != writers {
		t.Errorf("duplicate or missing commits in merged artifact: %v", seen)
	}
}

func TestPublishFailsOnCorruptExistingArtifact(t *testing.T) {
	root := t.TempDir()
	r := &Runner{ResultsDir: root}

	day := time.Now().UTC().Format("2006-01-02")
	dir := filepath.Join(root, day, "acme")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "verified_secrets_acme.json")
	if err := os.WriteFile(path, []byte("{not an array"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := r.publish("acme", []models.Finding{{DetectorName: "AWS", Verified: true}}); err == nil {
		t.Fatal("publish over a corrupt artifact must fail rather than discard it")
	}
	// The corrupt file stays in place for the operator.
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "{not an array" {
		t.Errorf("corrupt artifact was modified: %q, %v", data, err)
	}
}

func TestPublishFailsWithoutPartialFile(t *testing.T) {
	root := t.TempDir()
	r := &Runner{ResultsDir: root}

	// Make the target directory unwritable by occupying its path with a
	// file, so MkdirAll fails.
	day := time.Now().UTC().Format("2006-01-02")
	if err := os.WriteFile(filepath.Join(root, day), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := r.publish("acme", []models.Finding{{DetectorName: "AWS", Verified: true}}); err == nil {
		t.Fatal("expected publish error")
	}
	// Nothing findings-shaped may be visible anywhere under the root.
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() && strings.Contains(d.Name(), "verified_secrets") {
			t.Errorf("partial results file visible at %s", path)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestLooksLikeSecretsIndication(t *testing.T) {
	dir := t.TempDir()

	plain := filepath.Join(dir, "plain.txt")
	if err := os.WriteFile(plain, []byte("nothing of interest\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if looksLikeSecretsIndication(plain) {
		t.Error("plain output misread as a secrets indication")
	}

	hinted := filepath.Join(dir, "hinted.txt")
	if err := os.WriteFile(hinted, []byte("Found verified secret in config.env\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !looksLikeSecretsIndication(hinted) {
		t.Error("textual secrets indication not recognized")
	}
}
