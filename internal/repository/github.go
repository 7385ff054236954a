package repository

import (
	"context"
	"fmt"
	"net/url"

	gogithub "github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	"github.com/duskline/duskline/internal/config"
	"github.com/duskline/duskline/models"
)

// GitHubProvider implements RepoProvider for GitHub and GitHub Enterprise.
type GitHubProvider struct {
	client *gogithub.Client
	token  string
	host   string
}

// NewGitHub creates a GitHubProvider from the given configuration.
func NewGitHub(cfg config.GitHubConfig) (*GitHubProvider, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	tc := oauth2.NewClient(context.Background(), ts)
	client := gogithub.NewClient(tc)

	if cfg.Host != "" && cfg.Host != "github.com" {
		base := fmt.Sprintf("https://%s/api/v3/", cfg.Host)
		upload := fmt.Sprintf("https://%s/api/uploads/", cfg.Host)
		var err error
		client, err = client.WithEnterpriseURLs(base, upload)
		if err != nil {
			return nil, fmt.Errorf("configuring GitHub enterprise URLs: %w", err)
		}
	}

	return &GitHubProvider{client: client, token: cfg.Token, host: cfg.Host}, nil
}

func (g *GitHubProvider) Name() string      { return "github" }
func (g *GitHubProvider) AuthToken() string { return g.token }

// ListRepos lists an organization's repositories, carrying star count and
// last-push timestamp for the Stars/Latest ordering policies.
func (g *GitHubProvider) ListRepos(ctx context.Context, org string, opts ListReposOptions) ([]models.Repo, error) {
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
		ghRepos, resp, err := g.client.Repositories.ListByOrg(ctx, org, &gogithub.RepositoryListByOrgOptions{
			ListOptions: gogithub.ListOptions{PerPage: perPage, Page: page},
		})
		if err != nil {
			return nil, fmt.Errorf("listing repos for org %s: %w", org, err)
		}
		all = append(all, g.convertRepos(ghRepos, opts.IncludeForks)...)
		if resp.NextPage == 0 {
			break
		}
		page = resp.NextPage
	}
	return all, nil
}

func (g *GitHubProvider) convertRepos(ghRepos []*gogithub.Repository, includeForks bool) []models.Repo {
	repos := make([]models.Repo, 0, len(ghRepos))
	for _, r := range ghRepos {
		if r == nil {
			continue
		}
		if r.GetFork() && !includeForks {
			continue
		}
		cloneURL := r.GetCloneURL()
		if cloneURL == "" {
			cloneURL = r.GetSSHURL()
		}
		host := g.host
		if host == "" {
			host = "github.com"
		}
		if u, err := url.Parse(cloneURL); err == nil && u.Host != "" {
			host = u.Host
		}
		repos = append(repos, models.Repo{
			ID:            fmt.Sprintf("%d", r.GetID()),
			Provider:      "github",
			Host:          host,
			Owner:         r.GetOwner().GetLogin(),
			Name:          r.GetName(),
			FullName:      r.GetFullName(),
			CloneURL:      cloneURL,
			HTMLURL:       r.GetHTMLURL(),
			DefaultBranch: r.GetDefaultBranch(),
			Private:       r.GetPrivate(),
			Fork:          r.GetFork(),
			Description:   r.GetDescription(),
			Stars:         r.GetStargazersCount(),
			LastPushedAt:  r.GetPushedAt().Time,
		})
	}
	return repos
}
