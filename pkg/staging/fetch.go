package staging

import (
	"context"
	"os"
	"path/filepath"

	"github.com/arthur-debert/solodeploy/pkg/errors"
	"github.com/arthur-debert/solodeploy/pkg/repository"
	"github.com/arthur-debert/solodeploy/pkg/scm"
)

// FetchRequest is the per-fetch copy of a descriptor's source settings
type FetchRequest struct {
	Name      string
	Kind      string
	Location  string
	Revision  string
	CachePath string
}

func newFetchRequest(d repository.Descriptor) FetchRequest {
	return FetchRequest{
		Name:      d.Name,
		Kind:      d.Kind,
		Location:  d.Location,
		Revision:  d.Revision,
		CachePath: d.CachePath,
	}
}

// Fetch makes the descriptor's content available locally and returns its
// root. Versioned sources are checked out into the cache path, or synced
// when a working copy is already there. The cache is not locked.
func (p *Pipeline) Fetch(ctx context.Context, req FetchRequest) (string, error) {
	if req.Kind == scm.KindNone {
		root := p.resolve(req.Location)
		info, err := os.Stat(root)
		if err != nil {
			return "", errors.Wrapf(err, errors.ErrFetch, "repository %s: location %s not found", req.Name, root).
				WithDetail("descriptor", req.Name).
				WithDetail("path", root)
		}
		if !info.IsDir() {
			return "", errors.Newf(errors.ErrFetch, "repository %s: location %s is not a directory", req.Name, root).
				WithDetail("descriptor", req.Name).
				WithDetail("path", root)
		}
		return root, nil
	}

	source, err := scm.New(req.Kind, p.location(req.Location))
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrFetch, "repository %s", req.Name).WithDetail("descriptor", req.Name)
	}

	revision := req.Revision
	if revision == "" {
		revision = source.Head()
	}

	cache := p.resolve(req.CachePath)
	if _, err := os.Stat(filepath.Join(cache, ".git")); err == nil {
		p.logger.Debug().Str("descriptor", req.Name).Str("cache", cache).Msg("Syncing cached working copy")
		if err := source.Sync(ctx, revision, cache); err != nil {
			return "", errors.Wrapf(err, errors.ErrFetch, "repository %s: sync failed", req.Name).
				WithDetail("descriptor", req.Name)
		}
		return cache, nil
	}

	if err := os.MkdirAll(filepath.Dir(cache), 0755); err != nil {
		return "", errors.Wrapf(err, errors.ErrFetch, "repository %s: cannot create cache dir", req.Name).
			WithDetail("descriptor", req.Name).
			WithDetail("path", cache)
	}
	if err := os.RemoveAll(cache); err != nil {
		return "", errors.Wrapf(err, errors.ErrFetch, "repository %s: cannot clear cache dir", req.Name).
			WithDetail("path", cache)
	}

	p.logger.Debug().Str("descriptor", req.Name).Str("cache", cache).Msg("Checking out into cache")
	if err := source.Checkout(ctx, revision, cache); err != nil {
		return "", errors.Wrapf(err, errors.ErrFetch, "repository %s: checkout failed", req.Name).
			WithDetail("descriptor", req.Name)
	}
	return cache, nil
}

func (p *Pipeline) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || p.Root == "" {
		return path
	}
	return filepath.Join(p.Root, path)
}

// location resolves relative local paths but leaves URLs alone
func (p *Pipeline) location(loc string) string {
	if isURL(loc) {
		return loc
	}
	if _, err := os.Stat(p.resolve(loc)); err == nil {
		return p.resolve(loc)
	}
	return loc
}
