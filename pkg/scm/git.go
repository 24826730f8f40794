package scm

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/arthur-debert/solodeploy/pkg/errors"
	"github.com/arthur-debert/solodeploy/pkg/logging"
	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

const remoteName = "origin"

// Git fetches repositories with go-git
type Git struct {
	URL string
}

// NewGit returns a Git source for url
func NewGit(url string) *Git {
	return &Git{URL: url}
}

// Head returns HEAD, meaning the remote's default branch
func (g *Git) Head() string { return "HEAD" }

// Checkout clones the repository into dest and checks out revision
func (g *Git) Checkout(ctx context.Context, revision, dest string) error {
	logger := logging.GetLogger("scm.git")
	logger.Debug().Str("url", g.URL).Str("revision", revision).Str("dest", dest).Msg("Cloning repository")

	repo, err := git.PlainCloneContext(ctx, dest, false, &git.CloneOptions{
		URL:        g.URL,
		RemoteName: remoteName,
		Tags:       git.AllTags,
	})
	if err != nil {
		return errors.Wrapf(err, errors.ErrFetch, "failed to clone %s", g.URL).
			WithDetail("url", g.URL)
	}

	if isHead(revision) {
		return nil
	}
	return g.checkoutRevision(repo, revision)
}

// Sync fetches into the working copy at dest and moves it to revision
func (g *Git) Sync(ctx context.Context, revision, dest string) error {
	logger := logging.GetLogger("scm.git")
	logger.Debug().Str("url", g.URL).Str("revision", revision).Str("dest", dest).Msg("Syncing repository")

	repo, err := git.PlainOpen(dest)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFetch, "failed to open working copy at %s", dest).
			WithDetail("path", dest)
	}

	err = repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: remoteName,
		Tags:       git.AllTags,
		Force:      true,
	})
	if err != nil && !stderrors.Is(err, git.NoErrAlreadyUpToDate) {
		return errors.Wrapf(err, errors.ErrFetch, "failed to fetch %s", g.URL).
			WithDetail("url", g.URL)
	}

	if !isHead(revision) {
		return g.checkoutRevision(repo, revision)
	}
	return g.syncBranch(repo)
}

// syncBranch hard-resets the checked out branch to its remote tracking ref
func (g *Git) syncBranch(repo *git.Repository) error {
	head, err := repo.Head()
	if err != nil {
		return errors.Wrap(err, errors.ErrFetch, "failed to read HEAD")
	}

	var candidates []string
	if head.Name().IsBranch() {
		candidates = append(candidates, head.Name().Short())
	}
	candidates = append(candidates, "HEAD", "main", "master")

	for _, branch := range candidates {
		ref, err := repo.Reference(plumbing.NewRemoteReferenceName(remoteName, branch), true)
		if err != nil {
			continue
		}
		if head.Name().IsBranch() {
			if err := repo.Storer.SetReference(plumbing.NewHashReference(head.Name(), ref.Hash())); err != nil {
				return errors.Wrap(err, errors.ErrFetch, "failed to update branch")
			}
		}
		return g.reset(repo, ref.Hash())
	}

	return errors.Newf(errors.ErrFetch, "no remote branch found to sync %s", g.URL).
		WithDetail("url", g.URL)
}

func (g *Git) checkoutRevision(repo *git.Repository, revision string) error {
	hash, err := resolve(repo, revision)
	if err != nil {
		return errors.Wrapf(err, errors.ErrFetch, "unknown revision %q", revision).
			WithDetail("url", g.URL).
			WithDetail("revision", revision)
	}

	w, err := repo.Worktree()
	if err != nil {
		return errors.Wrap(err, errors.ErrFetch, "failed to get worktree")
	}
	if err := w.Checkout(&git.CheckoutOptions{Hash: hash, Force: true}); err != nil {
		return errors.Wrapf(err, errors.ErrFetch, "failed to check out %s", revision).
			WithDetail("revision", revision)
	}
	return nil
}

func (g *Git) reset(repo *git.Repository, hash plumbing.Hash) error {
	w, err := repo.Worktree()
	if err != nil {
		return errors.Wrap(err, errors.ErrFetch, "failed to get worktree")
	}
	if err := w.Reset(&git.ResetOptions{Commit: hash, Mode: git.HardReset}); err != nil {
		return errors.Wrap(err, errors.ErrFetch, "failed to reset worktree")
	}
	return nil
}

// resolve prefers remote branches over stale local ones, then tags, then
// anything go-git can parse
func resolve(repo *git.Repository, revision string) (plumbing.Hash, error) {
	for _, candidate := range []string{
		string(plumbing.NewRemoteReferenceName(remoteName, revision)),
		string(plumbing.NewTagReferenceName(revision)),
		revision,
	} {
		hash, err := repo.ResolveRevision(plumbing.Revision(candidate))
		if err == nil {
			return *hash, nil
		}
	}
	return plumbing.ZeroHash, plumbing.ErrReferenceNotFound
}

func isHead(revision string) bool {
	return revision == "" || strings.EqualFold(revision, "HEAD")
}
