package target

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/duskline/duskline/internal/database"
	"github.com/duskline/duskline/models"
)

// orgsFileTargets reads a plain text organization list (one org per line,
// "#" comments, blank lines skipped, whitespace trimmed, duplicates
// collapsed) and emits an OrganizationTarget per line. When db is non-nil
// it is used as the Event-DB cross-check: organizations with no recorded
// push event are filtered out rather than scheduled against nothing.
func orgsFileTargets(path string, db database.Store) ([]models.Target, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening orgs file %s: %v", ErrSourceUnavailable, path, err)
	}
	defer f.Close()

	var known map[string]bool
	if db != nil {
		known, err = db.Orgs(context.Background())
		if err != nil {
			return nil, fmt.Errorf("%w: cross-checking orgs file against event database: %v", ErrSourceUnavailable, err)
		}
	}

	seen := make(map[string]bool)
	var out []models.Target
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if seen[line] {
			continue
		}
		seen[line] = true
		if known != nil && !known[line] {
			continue
		}
		out = append(out, models.OrganizationTarget{Org: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading orgs file %s: %v", ErrSourceUnavailable, path, err)
	}
	return out, nil
}
