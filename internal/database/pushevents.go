package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// PushEvent is a single dangling-commit-producing push, as recorded by
// whatever upstream system observed it (a webhook receiver, a replicated
// events table, a batch import).
type PushEvent struct {
	ID           int64
	Org          string
	Repo         string
	CommitSHA    string
	PreCommitSHA string
	CloneURL     string
	PushedAt     int64
	Stars        int
	HasStars     bool
	Scanned      bool
}

// pushEventColumns is the fixed select list every event query uses; Scan
// order in scanPushEvents must match it.
const pushEventColumns = "id, org, repo, commit_sha, pre_commit_sha, clone_url, pushed_at, stars, has_stars, scanned"

// querier holds the query logic shared by both backends. SQLite and MySQL
// both use ?-placeholders, so only connection setup and migrations differ
// per driver.
type querier struct {
	db *sql.DB
}

func (q *querier) UnscannedEvents(ctx context.Context, orderBy string, limit int) ([]PushEvent, error) {
	if orderBy == "" {
		orderBy = "id ASC"
	}
	query := fmt.Sprintf("SELECT %s FROM push_events WHERE scanned = 0 ORDER BY %s", pushEventColumns, orderBy)
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := q.db.QueryContext(ctx, query) // #nosec G201 -- orderBy is a trusted caller-constructed fragment, never external input
	if err != nil {
		return nil, fmt.Errorf("querying unscanned push events: %w", err)
	}
	defer rows.Close()
	return scanPushEvents(rows)
}

func (q *querier) MarkScanned(ctx context.Context, org, repo, commitSHA string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE push_events SET scanned = 1 WHERE org = ? AND repo = ? AND commit_sha = ?`,
		org, repo, commitSHA)
	if err != nil {
		return fmt.Errorf("marking push event %s/%s@%s scanned: %w", org, repo, commitSHA, err)
	}
	return nil
}

func (q *querier) Insert(ctx context.Context, e PushEvent) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO push_events (org, repo, commit_sha, pre_commit_sha, clone_url, pushed_at, stars, has_stars, scanned)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Org, e.Repo, e.CommitSHA, e.PreCommitSHA, e.CloneURL, e.PushedAt, e.Stars, e.HasStars, e.Scanned)
	if err != nil {
		return 0, fmt.Errorf("inserting push event %s/%s@%s: %w", e.Org, e.Repo, e.CommitSHA, err)
	}
	return res.LastInsertId()
}

func (q *querier) Orgs(ctx context.Context) (map[string]bool, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT DISTINCT org FROM push_events`)
	if err != nil {
		return nil, fmt.Errorf("querying organizations with push events: %w", err)
	}
	defer rows.Close()

	orgs := make(map[string]bool)
	for rows.Next() {
		var org string
		if err := rows.Scan(&org); err != nil {
			return nil, fmt.Errorf("scanning organization row: %w", err)
		}
		orgs[org] = true
	}
	return orgs, rows.Err()
}

func (q *querier) Ping(ctx context.Context) error {
	return q.db.PingContext(ctx)
}

func (q *querier) Close() error {
	return q.db.Close()
}

func scanPushEvents(rows *sql.Rows) ([]PushEvent, error) {
	var events []PushEvent
	for rows.Next() {
		var e PushEvent
		err := rows.Scan(&e.ID, &e.Org, &e.Repo, &e.CommitSHA, &e.PreCommitSHA,
			&e.CloneURL, &e.PushedAt, &e.Stars, &e.HasStars, &e.Scanned)
		if err != nil {
			slog.Warn("skipping malformed push event row", "error", err)
			continue
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
