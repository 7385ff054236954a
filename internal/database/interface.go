package database

import (
	"context"
	"fmt"

	"github.com/duskline/duskline/internal/config"
)

// Store is the push-event store behind the Event-DB target source: a table
// of force-push events (org, repo, commit, pre-push commit, timestamp,
// star metric) written by whatever upstream system observes them and read
// here as scan targets. Implementations exist for SQLite (default) and
// MySQL.
type Store interface {
	// UnscannedEvents returns events not yet marked scanned, ordered per
	// orderBy (a trusted, caller-constructed SQL fragment — never built
	// from external input). limit <= 0 means no limit.
	UnscannedEvents(ctx context.Context, orderBy string, limit int) ([]PushEvent, error)

	// MarkScanned sets the scanned flag on an event's row, so later
	// UnscannedEvents calls omit it. The scan run path only reads events
	// and does not call it.
	MarkScanned(ctx context.Context, org, repo, commitSHA string) error

	// Insert records a newly observed push event and returns its row ID.
	// The run path only reads events, but the table must be writable by
	// whatever feeds it, so this stays part of the store's surface.
	Insert(ctx context.Context, e PushEvent) (int64, error)

	// Orgs returns the set of organizations with at least one recorded
	// event, used by the Organization-List backend's cross-check.
	Orgs(ctx context.Context) (map[string]bool, error)

	// Migrate applies pending schema migrations in order.
	Migrate(ctx context.Context) error

	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error

	// Close releases the connection.
	Close() error

	// Driver returns the backend name: "sqlite" or "mysql".
	Driver() string
}

// New returns a Store implementation matching cfg.Driver.
// SQLite is the default when driver is empty; an unrecognised driver is an
// error.
func New(cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Driver {
	case "mysql":
		return NewMySQL(cfg)
	case "sqlite", "sqlite3", "":
		return NewSQLite(cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q (supported: sqlite, mysql)", cfg.Driver)
	}
}
