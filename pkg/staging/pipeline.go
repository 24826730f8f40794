package staging

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/arthur-debert/solodeploy/pkg/errors"
	"github.com/arthur-debert/solodeploy/pkg/logging"
	"github.com/arthur-debert/solodeploy/pkg/remote"
	"github.com/arthur-debert/solodeploy/pkg/repository"
	"github.com/rs/zerolog"
)

// DefaultRemoteTmp is where remote scratch directories are created
const DefaultRemoteTmp = "/tmp"

// Pipeline stages descriptors locally and installs them on hosts
type Pipeline struct {
	Executor remote.Executor
	// Root resolves relative locations and cache paths
	Root string
	// WorkDir holds local staging dirs; empty means the OS temp dir
	WorkDir string
	// RemoteTmp holds remote scratch dirs
	RemoteTmp string

	logger zerolog.Logger
}

// New returns a pipeline running remote steps through exec
func New(exec remote.Executor, root string) *Pipeline {
	return &Pipeline{
		Executor:  exec,
		Root:      root,
		RemoteTmp: DefaultRemoteTmp,
		logger:    logging.GetLogger("staging"),
	}
}

// Artifact is a descriptor's content packed and ready to ship
type Artifact struct {
	Descriptor repository.Descriptor
	// Dir is the local staging dir owning Tree and Archive
	Dir     string
	Tree    string
	Archive string
	// Digest is the BLAKE3 hex digest of Archive
	Digest string
	Size   int64

	released bool
}

// Release removes the artifact's local files. Safe to call twice.
func (a *Artifact) Release() {
	if a == nil || a.released {
		return
	}
	a.released = true
	if err := os.RemoveAll(a.Dir); err != nil {
		logger := logging.GetLogger("staging")
		logger.Warn().Err(err).Str("path", a.Dir).Msg("Failed to remove staging dir")
	}
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Stage fetches desc and packs the selected subdirectories
func (p *Pipeline) Stage(ctx context.Context, desc repository.Descriptor) (_ *Artifact, err error) {
	desc = desc.Clone()

	dir, err := os.MkdirTemp(p.WorkDir, "solodeploy-"+unsafeName.ReplaceAllString(desc.Name, "_")+"-")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrStage, "failed to create staging dir")
	}
	a := &Artifact{
		Descriptor: desc,
		Dir:        dir,
		Tree:       filepath.Join(dir, "tree"),
		Archive:    filepath.Join(dir, "artifact.tar.gz"),
	}
	defer func() {
		if err != nil {
			a.Release()
		}
	}()

	root, err := p.Fetch(ctx, newFetchRequest(desc))
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(a.Tree, 0755); err != nil {
		return nil, errors.Wrap(err, errors.ErrStage, "failed to create staging tree")
	}

	excluder := NewExcluder(desc.Exclude)
	for _, sub := range desc.Subdirs {
		src := root
		if sub != "" && sub != repository.WholeTree {
			src = filepath.Join(root, strings.TrimPrefix(sub, "/"))
		}
		resolved, err := filepath.EvalSymlinks(src)
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrStage, "repository %s: subdirectory %s not found", desc.Name, sub).
				WithDetail("descriptor", desc.Name).
				WithDetail("path", src)
		}
		p.logger.Debug().Str("descriptor", desc.Name).Str("from", resolved).Msg("Copying subdirectory")
		if err := copyTree(resolved, a.Tree, excluder, p.logger.With().Str("descriptor", desc.Name).Logger()); err != nil {
			return nil, err
		}
	}

	a.Digest, a.Size, err = pack(a.Tree, a.Archive)
	if err != nil {
		return nil, err
	}

	p.logger.Info().
		Str("descriptor", desc.Name).
		Str("group", string(desc.Group)).
		Str("blake3", a.Digest).
		Int64("bytes", a.Size).
		Msg("Staged repository")
	return a, nil
}

// Install ships artifacts to host and swaps them into dest as one tree.
// Artifacts with an entity name land one level deeper.
func (p *Pipeline) Install(ctx context.Context, artifacts []*Artifact, host, dest string) error {
	hosts := []string{host}

	tmp, err := remote.Capture(ctx, p.Executor,
		"mktemp -d "+remote.Quote(path.Join(p.remoteTmp(), "solodeploy.XXXXXXXXXX")), host)
	if err != nil {
		return errors.Wrapf(err, errors.ErrTransfer, "failed to create remote temp dir on %s", host).
			WithDetail("host", host)
	}
	if tmp == "" {
		return errors.Newf(errors.ErrTransfer, "mktemp returned nothing on %s", host).WithDetail("host", host)
	}

	id := newID()
	stagingDir := dest + ".staging-" + id
	oldDir := dest + ".old-" + id

	defer func() {
		cleanup := "rm -rf " + remote.Join(tmp, stagingDir)
		if _, err := p.Executor.Run(context.WithoutCancel(ctx), cleanup, hosts); err != nil {
			p.logger.Warn().Err(err).Str("host", host).Str("path", tmp).Msg("Failed to clean up remote temp dir")
		}
	}()

	tree := path.Join(tmp, "tree")
	if _, err := p.Executor.Run(ctx, "mkdir -p "+remote.Quote(tree), hosts); err != nil {
		return errors.Wrapf(err, errors.ErrTransfer, "failed to prepare %s on %s", tree, host).
			WithDetail("host", host)
	}

	for i, a := range artifacts {
		archive := path.Join(tmp, fmt.Sprintf("%02d-%s.tar.gz", i, unsafeName.ReplaceAllString(a.Descriptor.Name, "_")))
		if err := p.Executor.Upload(ctx, a.Archive, archive, hosts); err != nil {
			return errors.Wrapf(err, errors.ErrTransfer, "failed to upload %s to %s", a.Descriptor.Name, host).
				WithDetail("host", host).
				WithDetail("descriptor", a.Descriptor.Name)
		}

		target := a.Descriptor.InstallPath(tree)
		unpack := "mkdir -p " + remote.Quote(target) + " && tar -xzf " + remote.Quote(archive) + " -C " + remote.Quote(target)
		if _, err := p.Executor.Run(ctx, unpack, hosts); err != nil {
			return errors.Wrapf(err, errors.ErrInstall, "failed to unpack %s on %s", a.Descriptor.Name, host).
				WithDetail("host", host).
				WithDetail("descriptor", a.Descriptor.Name)
		}
		p.logger.Debug().Str("host", host).Str("descriptor", a.Descriptor.Name).Str("blake3", a.Digest).Msg("Unpacked artifact")
	}

	if _, err := p.Executor.Run(ctx, swapScript(tree, stagingDir, oldDir, dest), hosts); err != nil {
		return errors.Wrapf(err, errors.ErrInstall, "failed to install %s on %s", dest, host).
			WithDetail("host", host).
			WithDetail("path", dest)
	}

	p.logger.Info().Str("host", host).Str("dest", dest).Int("artifacts", len(artifacts)).Msg("Installed")
	return nil
}

// Deploy stages descs and installs them together into dest on host
func (p *Pipeline) Deploy(ctx context.Context, descs []repository.Descriptor, host, dest string) error {
	artifacts := make([]*Artifact, 0, len(descs))
	defer func() {
		for _, a := range artifacts {
			a.Release()
		}
	}()

	for _, d := range descs {
		a, err := p.Stage(ctx, d)
		if err != nil {
			return err
		}
		artifacts = append(artifacts, a)
	}
	return p.Install(ctx, artifacts, host, dest)
}

// StageAndInstall deploys a single descriptor into dest on host
func (p *Pipeline) StageAndInstall(ctx context.Context, desc repository.Descriptor, host, dest string) error {
	return p.Deploy(ctx, []repository.Descriptor{desc}, host, dest)
}

// swapScript copies tree next to dest and renames it into place, restoring
// the previous content when the final rename fails
func swapScript(tree, stagingDir, oldDir, dest string) string {
	q := remote.Quote
	return strings.Join([]string{
		"set -e",
		"rm -rf " + q(stagingDir) + " " + q(oldDir),
		"mkdir -p " + q(path.Dir(dest)),
		"cp -R -P -p " + q(tree) + " " + q(stagingDir),
		"if [ -e " + q(dest) + " ] || [ -L " + q(dest) + " ]; then mv " + q(dest) + " " + q(oldDir) + "; fi",
		"if ! mv " + q(stagingDir) + " " + q(dest) + "; then if [ -e " + q(oldDir) + " ]; then mv " + q(oldDir) + " " + q(dest) + "; fi; exit 1; fi",
		"rm -rf " + q(oldDir),
	}, "\n")
}

func (p *Pipeline) remoteTmp() string {
	if p.RemoteTmp == "" {
		return DefaultRemoteTmp
	}
	return p.RemoteTmp
}

func newID() string {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%d", os.Getpid())
	}
	return hex.EncodeToString(b)
}

func isURL(loc string) bool {
	return strings.Contains(loc, "://") || strings.HasPrefix(loc, "git@")
}
