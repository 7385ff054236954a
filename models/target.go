package models

import "fmt"

// TargetKind tags which Target variant a Target value carries.
type TargetKind string

const (
	TargetCommit       TargetKind = "commit"
	TargetRepository   TargetKind = "repository"
	TargetOrganization TargetKind = "organization"
)

// Target is an immutable unit of work produced by a Target Source and
// consumed at most once by the Worker Pool within a run. Implementations
// are CommitTarget, RepositoryTarget and OrganizationTarget; the Scan Task
// dispatches on the concrete variant type rather than sniffing which fields
// are populated.
type Target interface {
	Kind() TargetKind
	// CanonicalKey is the deduplication identity: "org/repo@commit" for
	// CommitTarget, "owner/repo" for RepositoryTarget, "org" for
	// OrganizationTarget.
	CanonicalKey() string
}

// CommitTarget names a single dangling (or reachable) commit to fetch and
// scan. Stars/HasStars carries the optional star metric used by the Stars
// ordering policy; HasStars is false when the backing store has no star
// column, which is the trigger for the policy's Random downgrade.
type CommitTarget struct {
	Org       string
	Repo      string
	Commit    string
	PreCommit string // optional pre-push commit identifier
	HasStars  bool
	Stars     int
	PushedAt  int64 // unix seconds; zero means unknown
}

func (t CommitTarget) Kind() TargetKind { return TargetCommit }

func (t CommitTarget) CanonicalKey() string {
	return fmt.Sprintf("%s/%s@%s", t.Org, t.Repo, t.Commit)
}

// RepositoryTarget names a whole repository, optionally pinned to a commit.
type RepositoryTarget struct {
	Owner        string
	Repo         string
	PinnedCommit string
	CloneURL     string
	SizeHintKB   int
	HasStars     bool
	Stars        int
	PushedAt     int64
}

func (t RepositoryTarget) Kind() TargetKind { return TargetRepository }

func (t RepositoryTarget) CanonicalKey() string {
	return fmt.Sprintf("%s/%s", t.Owner, t.Repo)
}

// OrganizationTarget names an organization to be expanded lazily by the
// Target Source into zero or more RepositoryTargets.
type OrganizationTarget struct {
	Org          string
	IncludeForks bool
	MinStars     int
}

func (t OrganizationTarget) Kind() TargetKind { return TargetOrganization }

func (t OrganizationTarget) CanonicalKey() string { return t.Org }

// OrganizationOf returns the organization (or owner) a target belongs to,
// used for results layout and per-org notification deduplication.
func OrganizationOf(t Target) string {
	switch v := t.(type) {
	case CommitTarget:
		return v.Org
	case RepositoryTarget:
		return v.Owner
	case OrganizationTarget:
		return v.Org
	default:
		return ""
	}
}
