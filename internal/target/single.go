package target

import (
	"fmt"
	"strings"

	"github.com/duskline/duskline/models"
)

// singleTargets resolves the Single backend's one positional CLI argument
// into exactly one Target. Recognized forms: "org", "owner/repo", and
// "owner/repo@commit".
func singleTargets(identifier string) ([]models.Target, error) {
	id := strings.TrimSpace(identifier)
	if id == "" {
		return nil, fmt.Errorf("%w: empty target identifier", ErrSourceUnavailable)
	}

	if owner, rest, ok := strings.Cut(id, "/"); ok {
		if repo, commit, ok := strings.Cut(rest, "@"); ok {
			if owner == "" || repo == "" || commit == "" {
				return nil, fmt.Errorf("%w: malformed target identifier %q", ErrSourceUnavailable, identifier)
			}
			return []models.Target{models.CommitTarget{Org: owner, Repo: repo, Commit: commit}}, nil
		}
		if owner == "" || rest == "" {
			return nil, fmt.Errorf("%w: malformed target identifier %q", ErrSourceUnavailable, identifier)
		}
		return []models.Target{models.RepositoryTarget{Owner: owner, Repo: rest}}, nil
	}

	return []models.Target{models.OrganizationTarget{Org: id}}, nil
}
