package scm_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/arthur-debert/solodeploy/pkg/errors"
	"github.com/arthur-debert/solodeploy/pkg/scm"
	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// originRepo creates a repository with one commit and returns its path
func originRepo(t *testing.T) (string, *git.Repository) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed; local clones need git-upload-pack")
	}

	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	commitFile(t, repo, dir, "cookbooks/nginx/recipes/default.rb", "package 'nginx'\n")
	return dir, repo
}

func commitFile(t *testing.T, repo *git.Repository, dir, name, content string) plumbing.Hash {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	w, err := repo.Worktree()
	require.NoError(t, err)
	_, err = w.Add(name)
	require.NoError(t, err)
	hash, err := w.Commit("update "+name, &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return hash
}

func TestGitCheckoutAndSync(t *testing.T) {
	origin, repo := originRepo(t)
	dest := filepath.Join(t.TempDir(), "cache", "main")
	ctx := context.Background()

	g := scm.NewGit(origin)
	require.NoError(t, g.Checkout(ctx, "", dest))

	content, err := os.ReadFile(filepath.Join(dest, "cookbooks/nginx/recipes/default.rb"))
	require.NoError(t, err)
	assert.Equal(t, "package 'nginx'\n", string(content))

	commitFile(t, repo, origin, "cookbooks/nginx/recipes/default.rb", "package 'nginx-full'\n")
	require.NoError(t, g.Sync(ctx, "", dest))

	content, err = os.ReadFile(filepath.Join(dest, "cookbooks/nginx/recipes/default.rb"))
	require.NoError(t, err)
	assert.Equal(t, "package 'nginx-full'\n", string(content))
}

func TestGitCheckoutRevision(t *testing.T) {
	origin, repo := originRepo(t)
	first, err := repo.Head()
	require.NoError(t, err)
	commitFile(t, repo, origin, "README", "second\n")

	dest := filepath.Join(t.TempDir(), "wc")
	g := scm.NewGit(origin)
	require.NoError(t, g.Checkout(context.Background(), first.Hash().String(), dest))

	_, err = os.Stat(filepath.Join(dest, "README"))
	assert.True(t, os.IsNotExist(err), "README must not exist at the first commit")
}

func TestGitUnknownRevision(t *testing.T) {
	origin, _ := originRepo(t)
	dest := filepath.Join(t.TempDir(), "wc")

	err := scm.NewGit(origin).Checkout(context.Background(), "no-such-branch", dest)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrFetch))
}

func TestGitSyncMissingWorkingCopy(t *testing.T) {
	err := scm.NewGit("unused").Sync(context.Background(), "", filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrFetch))
}
