package staging_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/arthur-debert/solodeploy/pkg/errors"
	"github.com/arthur-debert/solodeploy/pkg/remote"
	"github.com/arthur-debert/solodeploy/pkg/repository"
	"github.com/arthur-debert/solodeploy/pkg/staging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func newPipeline(t *testing.T, exec remote.Executor, root string) (*staging.Pipeline, string) {
	t.Helper()
	p := staging.New(exec, root)
	p.WorkDir = t.TempDir()
	p.RemoteTmp = t.TempDir()
	return p, p.RemoteTmp
}

func cookbooks(location string, subdirs ...string) repository.Descriptor {
	return repository.Descriptor{
		Name:     "app",
		Group:    repository.GroupCookbooks,
		Kind:     "none",
		Location: location,
		Subdirs:  subdirs,
		Exclude:  repository.DefaultExclude,
	}
}

func TestDeployInstallsSubdirectories(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "config/cookbooks/nginx/recipes/default.rb"), "package 'nginx'")
	writeFile(t, filepath.Join(src, "config/cookbooks/.git/HEAD"), "ref")
	writeFile(t, filepath.Join(src, "other/readme"), "skip me")

	p, _ := newPipeline(t, remote.NewLocalExecutor(true), src)
	dest := filepath.Join(t.TempDir(), "chef", "cookbooks")

	err := p.StageAndInstall(context.Background(), cookbooks(".", "config/cookbooks"), "localhost", dest)
	require.NoError(t, err)

	assert.Equal(t, "package 'nginx'", readFile(t, filepath.Join(dest, "nginx/recipes/default.rb")))
	assert.NoDirExists(t, filepath.Join(dest, ".git"))
	assert.NoFileExists(t, filepath.Join(dest, "readme"))
}

func TestDeployEntityName(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "users/alice.json"), `{"id":"alice"}`)

	p, _ := newPipeline(t, remote.NewLocalExecutor(true), "")
	dest := filepath.Join(t.TempDir(), "data_bags")

	desc := repository.Descriptor{
		Name:       "secrets",
		Group:      repository.GroupDataBags,
		Kind:       "none",
		Location:   src,
		Subdirs:    []string{"users"},
		EntityName: "users",
	}
	require.NoError(t, p.StageAndInstall(context.Background(), desc, "localhost", dest))

	assert.Equal(t, `{"id":"alice"}`, readFile(t, filepath.Join(dest, "users/alice.json")))
}

func TestDeployReplacesPreviousContent(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "nginx/metadata.rb"), "name 'nginx'")

	p, _ := newPipeline(t, remote.NewLocalExecutor(true), src)
	dest := filepath.Join(t.TempDir(), "cookbooks")
	writeFile(t, filepath.Join(dest, "stale/metadata.rb"), "old")

	require.NoError(t, p.StageAndInstall(context.Background(), cookbooks(".", "/"), "localhost", dest))

	assert.FileExists(t, filepath.Join(dest, "nginx/metadata.rb"))
	assert.NoDirExists(t, filepath.Join(dest, "stale"))

	siblings, err := os.ReadDir(filepath.Dir(dest))
	require.NoError(t, err)
	assert.Len(t, siblings, 1, "no staging or backup dirs left next to dest")
}

func TestDeployMultipleDescriptorsShareDestination(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	writeFile(t, filepath.Join(first, "nginx/metadata.rb"), "nginx")
	writeFile(t, filepath.Join(second, "redis/metadata.rb"), "redis")

	p, _ := newPipeline(t, remote.NewLocalExecutor(true), "")
	dest := filepath.Join(t.TempDir(), "cookbooks")

	a := cookbooks(first, "/")
	b := cookbooks(second, "/")
	b.Name = "vendor"
	require.NoError(t, p.Deploy(context.Background(), []repository.Descriptor{a, b}, "localhost", dest))

	assert.FileExists(t, filepath.Join(dest, "nginx/metadata.rb"))
	assert.FileExists(t, filepath.Join(dest, "redis/metadata.rb"))
}

func TestStageCollisionLaterSubdirWins(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "base/nginx/attributes.rb"), "base")
	writeFile(t, filepath.Join(src, "site/nginx/attributes.rb"), "site")

	p, _ := newPipeline(t, remote.NewLocalExecutor(true), src)
	art, err := p.Stage(context.Background(), cookbooks(".", "base", "site"))
	require.NoError(t, err)
	defer art.Release()

	assert.Equal(t, "site", readFile(t, filepath.Join(art.Tree, "nginx/attributes.rb")))
}

func TestStagePreservesSymlinksAndTimes(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "nginx/files/v1.conf"), "conf")
	require.NoError(t, os.Symlink("v1.conf", filepath.Join(src, "nginx/files/current.conf")))
	stamp := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, os.Chtimes(filepath.Join(src, "nginx/files/v1.conf"), stamp, stamp))

	p, _ := newPipeline(t, remote.NewLocalExecutor(true), src)
	dest := filepath.Join(t.TempDir(), "cookbooks")
	require.NoError(t, p.StageAndInstall(context.Background(), cookbooks(".", "/"), "localhost", dest))

	link, err := os.Readlink(filepath.Join(dest, "nginx/files/current.conf"))
	require.NoError(t, err)
	assert.Equal(t, "v1.conf", link)

	info, err := os.Stat(filepath.Join(dest, "nginx/files/v1.conf"))
	require.NoError(t, err)
	assert.Equal(t, stamp.Unix(), info.ModTime().Unix())
}

func TestStageDigestIsStable(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "nginx/metadata.rb"), "name 'nginx'")

	p, _ := newPipeline(t, remote.NewLocalExecutor(true), src)
	first, err := p.Stage(context.Background(), cookbooks(".", "/"))
	require.NoError(t, err)
	defer first.Release()
	second, err := p.Stage(context.Background(), cookbooks(".", "/"))
	require.NoError(t, err)
	defer second.Release()

	assert.Len(t, first.Digest, 64)
	assert.Equal(t, first.Digest, second.Digest)
	assert.Positive(t, first.Size)
}

func TestReleaseRemovesLocalFiles(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "a"), "a")

	p, _ := newPipeline(t, remote.NewLocalExecutor(true), src)
	art, err := p.Stage(context.Background(), cookbooks(".", "/"))
	require.NoError(t, err)

	art.Release()
	art.Release()
	assert.NoDirExists(t, art.Dir)
}

func TestStageMissingSubdirectory(t *testing.T) {
	src := t.TempDir()
	p, _ := newPipeline(t, remote.NewLocalExecutor(true), src)

	_, err := p.Stage(context.Background(), cookbooks(".", "missing"))
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrStage))

	leftovers, err := os.ReadDir(p.WorkDir)
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

type recordingExecutor struct {
	*remote.LocalExecutor
	commands   []string
	failUpload bool
	// failRename makes the swap script unable to move the staged tree
	// into place
	failRename bool
}

func (r *recordingExecutor) Run(ctx context.Context, command string, hosts []string) ([]remote.Output, error) {
	r.commands = append(r.commands, command)
	if r.failRename && strings.HasPrefix(command, "set -e") {
		command = `mv() { case "$1" in *.staging-*) return 1;; esac; command mv "$@"; }` + "\n" + command
	}
	return r.LocalExecutor.Run(ctx, command, hosts)
}

func (r *recordingExecutor) Upload(ctx context.Context, local, path string, hosts []string) error {
	if r.failUpload {
		return errors.New(errors.ErrTransfer, "link down")
	}
	return r.LocalExecutor.Upload(ctx, local, path, hosts)
}

func TestFetchFailureSkipsRemote(t *testing.T) {
	exec := &recordingExecutor{LocalExecutor: remote.NewLocalExecutor(true)}
	p, _ := newPipeline(t, exec, t.TempDir())

	err := p.StageAndInstall(context.Background(), cookbooks("does-not-exist", "/"), "localhost", filepath.Join(t.TempDir(), "cb"))
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrFetch))
	assert.Empty(t, exec.commands)
}

func TestTransferFailureCleansUp(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "nginx/metadata.rb"), "new")

	exec := &recordingExecutor{LocalExecutor: remote.NewLocalExecutor(true), failUpload: true}
	p, remoteTmp := newPipeline(t, exec, src)
	dest := filepath.Join(t.TempDir(), "cookbooks")
	writeFile(t, filepath.Join(dest, "nginx/metadata.rb"), "old")

	err := p.StageAndInstall(context.Background(), cookbooks(".", "/"), "localhost", dest)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrTransfer))

	assert.Equal(t, "old", readFile(t, filepath.Join(dest, "nginx/metadata.rb")))
	leftovers, err := os.ReadDir(remoteTmp)
	require.NoError(t, err)
	assert.Empty(t, leftovers, "remote temp dir removed")
	require.NotEmpty(t, exec.commands)
	assert.Contains(t, exec.commands[len(exec.commands)-1], "rm -rf")

	leftovers, err = os.ReadDir(p.WorkDir)
	require.NoError(t, err)
	assert.Empty(t, leftovers, "local staging dir removed")
}

func TestSwapFailureRestoresDestination(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "nginx/metadata.rb"), "new")

	exec := &recordingExecutor{LocalExecutor: remote.NewLocalExecutor(true), failRename: true}
	p, remoteTmp := newPipeline(t, exec, src)
	parent := t.TempDir()
	dest := filepath.Join(parent, "cookbooks")
	writeFile(t, filepath.Join(dest, "nginx/metadata.rb"), "old")

	err := p.StageAndInstall(context.Background(), cookbooks(".", "/"), "localhost", dest)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrInstall))

	assert.Equal(t, "old", readFile(t, filepath.Join(dest, "nginx/metadata.rb")))
	siblings, err := os.ReadDir(parent)
	require.NoError(t, err)
	require.Len(t, siblings, 1)
	assert.Equal(t, "cookbooks", siblings[0].Name())

	leftovers, err := os.ReadDir(remoteTmp)
	require.NoError(t, err)
	assert.Empty(t, leftovers)
	leftovers, err = os.ReadDir(p.WorkDir)
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestExcluderPatterns(t *testing.T) {
	ex := staging.NewExcluder([]string{".git", "*.swp", "/tmp", ""})

	assert.True(t, ex.Excluded(".git", true))
	assert.True(t, ex.Excluded("nginx/.git", true))
	assert.True(t, ex.Excluded("nginx/recipes/default.rb.swp", false))
	assert.True(t, ex.Excluded("tmp", true))
	assert.False(t, ex.Excluded("nginx/tmp", true))
	assert.False(t, ex.Excluded("nginx/recipes/default.rb", false))
}
