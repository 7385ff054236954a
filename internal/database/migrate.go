package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

//go:embed migrations/sqlite/*.sql migrations/mysql/*.sql
var migrationsFS embed.FS

// migrate applies all *.sql files under migrations/<dialect>/ in sorted
// order, tracking what has been applied in a schema_migrations table. The
// DDL differs per dialect (AUTOINCREMENT vs AUTO_INCREMENT, column types),
// so each driver ships its own migration set.
func migrate(ctx context.Context, db *sql.DB, dialect string) error {
	_, err := db.ExecContext(ctx, schemaMigrationsDDL(dialect))
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	dir := "migrations/" + dialect
	entries, err := migrationsFS.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading migrations dir %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		var count int
		row := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE filename = ?`, name)
		if err := row.Scan(&count); err != nil {
			return fmt.Errorf("checking migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile(dir + "/" + name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		// A migration file may hold several statements; MySQL's driver
		// does not accept multi-statement Exec by default.
		for _, stmt := range splitStatements(string(data)) {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("applying migration %s: %w", name, err)
			}
		}

		_, err = db.ExecContext(ctx,
			`INSERT INTO schema_migrations (filename, applied_at) VALUES (?, ?)`,
			name, time.Now().UTC().Format(time.RFC3339))
		if err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		slog.Info("Applied migration", "dialect", dialect, "file", name)
	}
	return nil
}

func schemaMigrationsDDL(dialect string) string {
	if dialect == "mysql" {
		return `CREATE TABLE IF NOT EXISTS schema_migrations (
			id          INT AUTO_INCREMENT PRIMARY KEY,
			filename    VARCHAR(255) NOT NULL UNIQUE,
			applied_at  VARCHAR(64)  NOT NULL
		)`
	}
	return `CREATE TABLE IF NOT EXISTS schema_migrations (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		filename    TEXT    NOT NULL UNIQUE,
		applied_at  TEXT    NOT NULL
	)`
}

// splitStatements breaks a migration file on semicolon-terminated
// statements, dropping blanks and comment-only fragments.
func splitStatements(script string) []string {
	var out []string
	for _, raw := range strings.Split(script, ";") {
		var lines []string
		for _, line := range strings.Split(raw, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || strings.HasPrefix(trimmed, "--") {
				continue
			}
			lines = append(lines, line)
		}
		stmt := strings.TrimSpace(strings.Join(lines, "\n"))
		if stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
