package target

import (
	"context"
	"fmt"

	"github.com/duskline/duskline/internal/config"
	"github.com/duskline/duskline/internal/repository"
	"github.com/duskline/duskline/models"
)

// Expand lazily turns an OrganizationTarget into its member
// RepositoryTargets, listing the organization's repositories from its
// hosting provider and applying the same ordering policy the run resolved
// for the rest of the target stream (so stars/latest ordering governs the
// worker pool's dispatch order within the expansion too, per §4.1 S4).
func Expand(ctx context.Context, org models.OrganizationTarget, cfg *config.Config, ordering config.OrderingPolicy, degradeHard bool) ([]models.RepositoryTarget, error) {
	provider, err := providerFor(cfg)
	if err != nil {
		return nil, fmt.Errorf("expanding organization %s: %w", org.Org, err)
	}

	repos, err := provider.ListRepos(ctx, org.Org, repository.ListReposOptions{IncludeForks: org.IncludeForks})
	if err != nil {
		return nil, fmt.Errorf("expanding organization %s: %w", org.Org, err)
	}

	targets := make([]models.Target, 0, len(repos))
	for _, r := range repos {
		if org.MinStars > 0 && r.Stars < org.MinStars {
			continue
		}
		targets = append(targets, models.RepositoryTarget{
			Owner:    r.Owner,
			Repo:     r.Name,
			CloneURL: r.CloneURL,
			HasStars: true,
			Stars:    r.Stars,
			PushedAt: r.LastPushedAt.Unix(),
		})
	}

	ordered, err := order(targets, ordering, degradeHard)
	if err != nil {
		return nil, fmt.Errorf("expanding organization %s: %w", org.Org, err)
	}

	out := make([]models.RepositoryTarget, 0, len(ordered))
	for _, t := range ordered {
		out = append(out, t.(models.RepositoryTarget))
	}
	return out, nil
}

// providerFor picks whichever hosting provider has credentials configured,
// preferring GitHub; OrganizationTargets carry no provider hint of their
// own, so expansion must infer one from the run's configuration.
func providerFor(cfg *config.Config) (repository.RepoProvider, error) {
	if len(cfg.Git.GitHub) > 0 {
		return repository.New("github", cfg)
	}
	if len(cfg.Git.GitLab) > 0 {
		return repository.New("gitlab", cfg)
	}
	return nil, fmt.Errorf("no git hosting provider configured (set git.github or git.gitlab credentials)")
}
