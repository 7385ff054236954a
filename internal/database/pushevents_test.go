package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/duskline/duskline/internal/config"
)

func testStore(t *testing.T) Store {
	t.Helper()
	s, err := New(config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatal(err)
	}
	return s
}

func seedEvents(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	events := []PushEvent{
		{Org: "acme", Repo: "app", CommitSHA: "aaa", PushedAt: 100, Stars: 5, HasStars: true},
		{Org: "acme", Repo: "web", CommitSHA: "bbb", PushedAt: 300, Stars: 50, HasStars: true},
		{Org: "umbrella", Repo: "lab", CommitSHA: "ccc", PushedAt: 200, Stars: 1, HasStars: true},
	}
	for _, e := range events {
		if _, err := s.Insert(ctx, e); err != nil {
			t.Fatal(err)
		}
	}
}

func TestUnscannedEvents(t *testing.T) {
	s := testStore(t)
	seedEvents(t, s)
	ctx := context.Background()

	events, err := s.UnscannedEvents(ctx, "id ASC", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	if events[0].Org != "acme" || events[0].CommitSHA != "aaa" {
		t.Errorf("first event = %+v", events[0])
	}
	if !events[0].HasStars || events[0].Stars != 5 {
		t.Errorf("star metric not round-tripped: %+v", events[0])
	}
}

func TestUnscannedEventsOrderAndLimit(t *testing.T) {
	s := testStore(t)
	seedEvents(t, s)

	events, err := s.UnscannedEvents(context.Background(), "pushed_at DESC", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("limit ignored: got %d events", len(events))
	}
	if events[0].CommitSHA != "bbb" || events[1].CommitSHA != "ccc" {
		t.Errorf("order not applied: %+v", events)
	}
}

func TestMarkScanned(t *testing.T) {
	s := testStore(t)
	seedEvents(t, s)
	ctx := context.Background()

	if err := s.MarkScanned(ctx, "acme", "app", "aaa"); err != nil {
		t.Fatal(err)
	}
	events, err := s.UnscannedEvents(ctx, "id ASC", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d unscanned events after marking one, want 2", len(events))
	}
	for _, e := range events {
		if e.CommitSHA == "aaa" {
			t.Error("marked event still reported unscanned")
		}
	}
}

func TestOrgs(t *testing.T) {
	s := testStore(t)
	seedEvents(t, s)

	orgs, err := s.Orgs(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(orgs) != 2 || !orgs["acme"] || !orgs["umbrella"] {
		t.Errorf("orgs = %v", orgs)
	}
}

func TestInsertRejectsDuplicates(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	e := PushEvent{Org: "acme", Repo: "app", CommitSHA: "aaa", PushedAt: 1}
	if _, err := s.Insert(ctx, e); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Insert(ctx, e); err == nil {
		t.Error("duplicate (org, repo, commit) insert succeeded")
	}
}
