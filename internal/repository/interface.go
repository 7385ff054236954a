// Package repository expands an OrganizationTarget into RepositoryTargets by
// listing an organization's repositories from its hosting provider.
package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/duskline/duskline/internal/config"
	"github.com/duskline/duskline/models"
)

// RepoProvider abstracts listing operations against a git hosting platform.
// Implementations: GitHub, GitLab.
type RepoProvider interface {
	// Name identifies the provider ("github" or "gitlab").
	Name() string

	// ListRepos returns the organization's repositories with Stars
	// populated for the Stars ordering policy. The GitHub provider also
	// fills LastPushedAt for the Latest policy; the GitLab provider leaves
	// it zero.
	ListRepos(ctx context.Context, org string, opts ListReposOptions) ([]models.Repo, error)

	// AuthToken returns the credential used for git clone/fetch.
	AuthToken() string
}

// ListReposOptions controls pagination and filtering for ListRepos.
type ListReposOptions struct {
	PerPage      int
	Page         int
	IncludeForks bool
}

// DetectProvider infers the hosting platform from a repository/org URL.
func DetectProvider(url string) (string, error) {
	lower := strings.ToLower(url)
	switch {
	case strings.Contains(lower, "github.com") || strings.Contains(lower, "github."):
		return "github", nil
	case strings.Contains(lower, "gitlab.com") || strings.Contains(lower, "gitlab."):
		return "gitlab", nil
	default:
		return "", fmt.Errorf("cannot detect provider from %q; configure it explicitly", url)
	}
}

// TokenForProvider returns the auth token for the detected provider from cfg.
func TokenForProvider(cfg *config.Config, provider string) string {
	switch provider {
	case "github":
		for _, g := range cfg.Git.GitHub {
			if g.Token != "" {
				return g.Token
			}
		}
	case "gitlab":
		for _, g := range cfg.Git.GitLab {
			if g.Token != "" {
				return g.Token
			}
		}
	}
	return ""
}

// New returns the appropriate RepoProvider for the given platform.
func New(provider string, cfg *config.Config) (RepoProvider, error) {
	switch provider {
	case "github":
		var gh config.GitHubConfig
		if len(cfg.Git.GitHub) > 0 {
			gh = cfg.Git.GitHub[0]
		}
		return NewGitHub(gh)
	case "gitlab":
		var gl config.GitLabConfig
		if len(cfg.Git.GitLab) > 0 {
			gl = cfg.Git.GitLab[0]
		}
		return NewGitLab(gl)
	default:
		return nil, fmt.Errorf("unsupported provider %q", provider)
	}
}
