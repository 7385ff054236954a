package target

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/duskline/duskline/internal/config"
	"github.com/duskline/duskline/models"
)

func TestSingleTargetsForms(t *testing.T) {
	cases := []struct {
		id   string
		kind models.TargetKind
		key  string
	}{
		{"acme", models.TargetOrganization, "acme"},
		{"acme/app", models.TargetRepository, "acme/app"},
		{"acme/app@deadbeef", models.TargetCommit, "acme/app@deadbeef"},
	}
	for _, c := range cases {
		got, err := singleTargets(c.id)
		if err != nil {
			t.Fatalf("singleTargets(%q): %v", c.id, err)
		}
		if len(got) != 1 {
			t.Fatalf("singleTargets(%q) = %d targets, want 1", c.id, len(got))
		}
		if got[0].Kind() != c.kind || got[0].CanonicalKey() != c.key {
			t.Errorf("singleTargets(%q) = %v/%v, want %v/%v", c.id, got[0].Kind(), got[0].CanonicalKey(), c.kind, c.key)
		}
	}
}

func TestSingleTargetsRejectsMalformed(t *testing.T) {
	for _, id := range []string{"", "acme/", "acme/app@", "/app"} {
		if _, err := singleTargets(id); err == nil {
			t.Errorf("singleTargets(%q) succeeded, want error", id)
		}
	}
}

func TestDedupKeepsFirstSeen(t *testing.T) {
	in := []models.Target{
		models.CommitTarget{Org: "a", Repo: "x", Commit: "1"},
		models.CommitTarget{Org: "a", Repo: "x", Commit: "2"},
		models.CommitTarget{Org: "a", Repo: "x", Commit: "1"},
	}
	out := dedup(in)
	if len(out) != 2 {
		t.Fatalf("dedup produced %d targets, want 2", len(out))
	}
	if out[0].CanonicalKey() != "a/x@1" || out[1].CanonicalKey() != "a/x@2" {
		t.Errorf("dedup order = %v", out)
	}
}

func TestOrderFileOrderPreservesInput(t *testing.T) {
	in := []models.Target{
		models.CommitTarget{Org: "a", Repo: "x", Commit: "3"},
		models.CommitTarget{Org: "a", Repo: "x", Commit: "1"},
		models.CommitTarget{Org: "a", Repo: "x", Commit: "2"},
	}
	out, err := order(in, config.OrderingFileOrder, false)
	if err != nil {
		t.Fatal(err)
	}
	for i := range in {
		if out[i].CanonicalKey() != in[i].CanonicalKey() {
			t.Errorf("file-order reordered targets: %v", out)
			break
		}
	}
}

func TestOrderByLatestDescending(t *testing.T) {
	in := []models.Target{
		models.CommitTarget{Org: "a", Repo: "x", Commit: "1", PushedAt: 100},
		models.CommitTarget{Org: "a", Repo: "x", Commit: "2", PushedAt: 300},
		models.CommitTarget{Org: "a", Repo: "x", Commit: "3", PushedAt: 200},
	}
	out, err := order(in, config.OrderingLatest, false)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a/x@2", "a/x@3", "a/x@1"}
	for i, k := range want {
		if out[i].CanonicalKey() != k {
			t.Errorf("orderByLatest[%d] = %s, want %s (full: %v)", i, out[i].CanonicalKey(), k, out)
		}
	}
}

func TestOrderByStarsDescendingWithTieBreak(t *testing.T) {
	in := []models.Target{
		models.RepositoryTarget{Owner: "a", Repo: "z", HasStars: true, Stars: 5},
		models.RepositoryTarget{Owner: "a", Repo: "b", HasStars: true, Stars: 5},
		models.RepositoryTarget{Owner: "a", Repo: "x", HasStars: true, Stars: 50},
	}
	out, err := order(in, config.OrderingStars, false)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a/x", "a/b", "a/z"}
	for i, k := range want {
		if out[i].CanonicalKey() != k {
			t.Errorf("orderByStars[%d] = %s, want %s (full: %v)", i, out[i].CanonicalKey(), k, out)
		}
	}
}

func TestOrderByStarsDowngradesWithoutStarColumn(t *testing.T) {
	in := []models.Target{
		models.RepositoryTarget{Owner: "a", Repo: "x"},
		models.RepositoryTarget{Owner: "a", Repo: "y"},
	}
	out, err := order(in, config.OrderingStars, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Fatalf("downgrade lost targets: %v", out)
	}
}

func TestOrderByStarsHardErrorWhenDegradeHard(t *testing.T) {
	in := []models.Target{models.RepositoryTarget{Owner: "a", Repo: "x"}}
	if _, err := order(in, config.OrderingStars, true); err == nil {
		t.Error("expected hard error when degradeHard is set and no star column exists")
	}
}

func TestEventFileTargetsParsesAndSkipsMalformedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.csv")
	content := "organization,repository,commit,stars\n" +
		"acme,app,deadbeef,42\n" +
		"acme,app,feedface\n" + // extra column missing -> malformed, csv errors on field count mismatch
		",app,cafebabe,1\n" // missing org -> skipped
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	targets, err := eventFileTargets(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(targets) != 1 {
		t.Fatalf("eventFileTargets = %d targets, want 1 (got %v)", len(targets), targets)
	}
	ct, ok := targets[0].(models.CommitTarget)
	if !ok {
		t.Fatalf("target[0] = %T, want CommitTarget", targets[0])
	}
	if ct.CanonicalKey() != "acme/app@deadbeef" || !ct.HasStars || ct.Stars != 42 {
		t.Errorf("target[0] = %+v", ct)
	}
}

func TestEventFileTargetsMissingRequiredColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.csv")
	if err := os.WriteFile(path, []byte("organization,commit\nacme,deadbeef\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := eventFileTargets(path); err == nil {
		t.Error("expected error for event file missing the repository column")
	}
}

func TestOrgsFileTargetsSkipsCommentsBlanksAndDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orgs.txt")
	content := "# comment\n\n  acme  \nacme\nwidgets\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	targets, err := orgsFileTargets(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(targets) != 2 {
		t.Fatalf("orgsFileTargets = %d targets, want 2 (got %v)", len(targets), targets)
	}
	if targets[0].CanonicalKey() != "acme" || targets[1].CanonicalKey() != "widgets" {
		t.Errorf("orgsFileTargets = %v", targets)
	}
}

func TestResolvedStreamReplaysInOrderAndTotal(t *testing.T) {
	r := &Resolved{
		BackendName: "single",
		Targets: []models.Target{
			models.OrganizationTarget{Org: "a"},
			models.OrganizationTarget{Org: "b"},
		},
	}
	if r.Total() != 2 {
		t.Fatalf("Total() = %d, want 2", r.Total())
	}

	ch, err := r.Stream(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for tgt := range ch {
		got = append(got, tgt.CanonicalKey())
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Stream replayed %v, want [a b]", got)
	}
}
