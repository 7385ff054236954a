// Package fetch implements the Scan Task's Fetch state: cloning a
// repository, or reconstructing a single dangling commit by fetching the
// otherwise-unreachable object by SHA, into an already-allocated Workspace.
package fetch

import (
	"context"
	"fmt"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"github.com/duskline/duskline/internal/workspace"
)

// DefaultGitOperationTimeout bounds clone/fetch operations, distinct from
// the detector's adaptive timeout.
const DefaultGitOperationTimeout = 300 * time.Second

// Fetcher performs clone/checkout operations bounded by their own timeout,
// separate from the per-target detector budget.
type Fetcher struct {
	OperationTimeout time.Duration
}

// NewFetcher returns a Fetcher with the given git operation timeout, or
// the default if timeout is zero.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = DefaultGitOperationTimeout
	}
	return &Fetcher{OperationTimeout: timeout}
}

func auth(token string) *githttp.BasicAuth {
	if token == "" {
		return nil
	}
	return &githttp.BasicAuth{Username: "duskline", Password: token}
}

// Result describes what ended up in the workspace after a fetch.
type Result struct {
	Commit string
}

// Repository clones cloneURL into ws.RepoDir(). If pinnedCommit is non-empty the
// worktree is checked out to that commit after clone; otherwise HEAD of the
// default branch is used. Used for RepositoryTarget.
func (f *Fetcher) Repository(ctx context.Context, ws *workspace.Workspace, cloneURL, token, pinnedCommit string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, f.OperationTimeout)
	defer cancel()

	repo, err := gogit.PlainCloneContext(ctx, ws.RepoDir(), false, &gogit.CloneOptions{
		URL:      cloneURL,
		Depth:    1,
		Auth:     auth(token),
		Progress: nil,
	})
	if err != nil {
		return nil, fmt.Errorf("cloning %s: %w", cloneURL, err)
	}

	if pinnedCommit == "" {
		head, err := repo.Head()
		if err != nil {
			return nil, fmt.Errorf("resolving HEAD of %s: %w", cloneURL, err)
		}
		return &Result{Commit: head.Hash().String()}, nil
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("opening worktree for %s: %w", cloneURL, err)
	}
	if err := wt.Checkout(&gogit.CheckoutOptions{Hash: plumbing.NewHash(pinnedCommit)}); err != nil {
		// A shallow clone may not carry the pinned commit; fall back to an
		// explicit fetch of that single object before retrying checkout.
		if ferr := fetchSingleCommit(ctx, repo, cloneURL, token, pinnedCommit); ferr != nil {
			return nil, fmt.Errorf("checking out %s in %s: %w", pinnedCommit, cloneURL, err)
		}
		if err := wt.Checkout(&gogit.CheckoutOptions{Hash: plumbing.NewHash(pinnedCommit)}); err != nil {
			return nil, fmt.Errorf("checking out %s in %s after fetch: %w", pinnedCommit, cloneURL, err)
		}
	}
	return &Result{Commit: pinnedCommit}, nil
}

// DanglingCommit reconstructs a single dangling commit: it initializes an
// empty repository at ws.RepoDir(), fetches the unreachable object by SHA using
// an explicit refspec (the commit is not reachable from any branch, so a
// normal clone/checkout cannot see it), and checks it out. Used for
// CommitTarget.
func (f *Fetcher) DanglingCommit(ctx context.Context, ws *workspace.Workspace, cloneURL, token, sha string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, f.OperationTimeout)
	defer cancel()

	repo, err := gogit.PlainInit(ws.RepoDir(), false)
	if err != nil {
		return nil, fmt.Errorf("initializing workspace for %s: %w", cloneURL, err)
	}
	if _, err := repo.CreateRemote(&config.RemoteConfig{
		Name: "origin",
		URLs: []string{cloneURL},
	}); err != nil {
		return nil, fmt.Errorf("adding remote for %s: %w", cloneURL, err)
	}
	if err := fetchSingleCommit(ctx, repo, cloneURL, token, sha); err != nil {
		return nil, err
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("opening worktree for %s: %w", cloneURL, err)
	}
	if err := wt.Checkout(&gogit.CheckoutOptions{Hash: plumbing.NewHash(sha)}); err != nil {
		return nil, fmt.Errorf("checking out dangling commit %s in %s: %w", sha, cloneURL, err)
	}
	return &Result{Commit: sha}, nil
}

// fetchSingleCommit fetches exactly one (possibly unreachable) object by its
// SHA via an explicit refspec, landing it under refs/duskline/fetched so
// go-git's object store has it available for checkout.
func fetchSingleCommit(ctx context.Context, repo *gogit.Repository, cloneURL, token, sha string) error {
	refspec := config.RefSpec(fmt.Sprintf("+%s:refs/duskline/fetched", sha))
	err := repo.FetchContext(ctx, &gogit.FetchOptions{
		RemoteName: "origin",
		RefSpecs:   []config.RefSpec{refspec},
		Depth:      1,
		Auth:       auth(token),
	})
	if err != nil && err != gogit.NoErrAlreadyUpToDate {
		return fmt.Errorf("fetching %s from %s: %w", sha, cloneURL, err)
	}
	return nil
}
