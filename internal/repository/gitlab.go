package repository

import (
	"context"
	"fmt"
	"strings"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/duskline/duskline/internal/config"
	"github.com/duskline/duskline/models"
)

// GitLabProvider implements RepoProvider for GitLab (cloud and self-hosted).
type GitLabProvider struct {
	client *gitlab.Client
	token  string
	host   string
}

// NewGitLab creates a GitLabProvider from the given configuration.
func NewGitLab(cfg config.GitLabConfig) (*GitLabProvider, error) {
	opts := []gitlab.ClientOptionFunc{}
	if cfg.Host != "" && cfg.Host != "gitlab.com" {
		base := fmt.Sprintf("https://%s/api/v4/", cfg.Host)
		opts = append(opts, gitlab.WithBaseURL(base))
	}

	client, err := gitlab.NewClient(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating GitLab client: %w", err)
	}

	return &GitLabProvider{client: client, token: cfg.Token, host: cfg.Host}, nil
}

func (g *GitLabProvider) Name() string      { return "gitlab" }
func (g *GitLabProvider) AuthToken() string { return g.token }

// ListRepos lists a group's (organization's) projects, carrying star count
// for the Stars ordering policy.
func (g *GitLabProvider) ListRepos(ctx context.Context, org string, opts ListReposOptions) ([]models.Repo, error) {
	perPage := opts.PerPage
	if perPage == 0 {
		perPage = 100
	}
	page := opts.Page
	if page == 0 {
		page = 1
	}

	var all []models.Repo
	for {
		projects, resp, err := g.client.Groups.ListGroupProjects(org, &gitlab.ListGroupProjectsOptions{
			ListOptions: gitlab.ListOptions{PerPage: int64(perPage), Page: int64(page)},
		}, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("listing GitLab projects for group %s: %w", org, err)
		}
		all = append(all, g.convertProjects(projects, opts.IncludeForks)...)
		if resp == nil || resp.NextPage == 0 {
			break
		}
		page = int(resp.NextPage)
	}
	return all, nil
}

func (g *GitLabProvider) convertProjects(projects []*gitlab.Project, includeForks bool) []models.Repo {
	repos := make([]models.Repo, 0, len(projects))
	host := g.host
	if host == "" {
		host = "gitlab.com"
	}
	for _, p := range projects {
		if p == nil {
			continue
		}
		isFork := p.ForkedFromProject != nil
		if isFork && !includeForks {
			continue
		}
		parts := strings.SplitN(p.PathWithNamespace, "/", 2)
		owner, name := "", p.Name
		if len(parts) == 2 {
			owner = parts[0]
			name = parts[1]
		}
		repos = append(repos, models.Repo{
			ID:            fmt.Sprintf("%d", p.ID),
			Provider:      "gitlab",
			Host:          host,
			Owner:         owner,
			Name:          name,
			FullName:      p.PathWithNamespace,
			CloneURL:      p.HTTPURLToRepo,
			HTMLURL:       p.WebURL,
			DefaultBranch: p.DefaultBranch,
			Private:       p.Visibility == gitlab.PrivateVisibility,
			Fork:          isFork,
			Description:   p.Description,
			Stars:         int(p.StarCount),
		})
	}
	return repos
}
