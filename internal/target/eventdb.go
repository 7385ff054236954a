package target

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/duskline/duskline/internal/database"
	"github.com/duskline/duskline/models"
)

// eventTargets reads every unscanned push event from the Event-DB backend
// and converts each row to a CommitTarget. Malformed rows are skipped by
// the store's own scan; here a row is only ever dropped if it names no
// organization, repository or commit, which the schema itself should
// prevent.
func eventTargets(ctx context.Context, db database.Store) ([]models.Target, error) {
	events, err := db.UnscannedEvents(ctx, "", 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	out := make([]models.Target, 0, len(events))
	for _, e := range events {
		if e.Org == "" || e.Repo == "" || e.CommitSHA == "" {
			slog.Warn("skipping malformed push event row", "id", e.ID)
			continue
		}
		out = append(out, models.CommitTarget{
			Org:       e.Org,
			Repo:      e.Repo,
			Commit:    e.CommitSHA,
			PreCommit: e.PreCommitSHA,
			HasStars:  e.HasStars,
			Stars:     e.Stars,
			PushedAt:  e.PushedAt,
		})
	}
	return out, nil
}
