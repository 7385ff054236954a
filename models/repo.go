package models

import "time"

// Repo represents a source-code repository discovered from a provider,
// used to expand an OrganizationTarget into RepositoryTargets.
type Repo struct {
	ID            string    `json:"id"`
	Provider      string    `json:"provider"` // github | gitlab
	Host          string    `json:"host"`     // github.com | gitlab.com | self-hosted host
	Owner         string    `json:"owner"`
	Name          string    `json:"name"`
	FullName      string    `json:"full_name"` // owner/name
	CloneURL      string    `json:"clone_url"`
	HTMLURL       string    `json:"html_url"`
	DefaultBranch string    `json:"default_branch"`
	Private       bool      `json:"private"`
	Fork          bool      `json:"fork"`
	Description   string    `json:"description"`
	Stars         int       `json:"stars"`
	LastPushedAt  time.Time `json:"last_pushed_at"`
}
