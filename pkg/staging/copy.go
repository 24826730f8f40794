package staging

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/arthur-debert/solodeploy/pkg/errors"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/rs/zerolog"
)

// Excluder matches gitignore-style patterns against relative paths
type Excluder struct {
	matcher gitignore.Matcher
}

// NewExcluder compiles patterns
func NewExcluder(patterns []string) *Excluder {
	ps := make([]gitignore.Pattern, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		ps = append(ps, gitignore.ParsePattern(p, nil))
	}
	return &Excluder{matcher: gitignore.NewMatcher(ps)}
}

// Excluded reports whether rel, a slash or OS separated relative path, is excluded
func (e *Excluder) Excluded(rel string, isDir bool) bool {
	parts := strings.Split(filepath.ToSlash(rel), "/")
	return e.matcher.Match(parts, isDir)
}

type dirTimes struct {
	path  string
	mtime time.Time
}

// copyTree copies src into dst, keeping symlinks, permissions and
// modification times. Files already present in dst are overwritten with a
// warning.
func copyTree(src, dst string, exclude *Excluder, logger zerolog.Logger) error {
	var dirs []dirTimes

	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		if rel != "." && exclude.Excluded(rel, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			if err := os.MkdirAll(target, info.Mode().Perm()|0700); err != nil {
				return err
			}
			dirs = append(dirs, dirTimes{path: target, mtime: info.ModTime()})
			return nil

		case info.Mode()&fs.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			if err := replaceExisting(target, rel, logger); err != nil {
				return err
			}
			return os.Symlink(link, target)

		case info.Mode().IsRegular():
			if err := replaceExisting(target, rel, logger); err != nil {
				return err
			}
			return copyFile(path, target, info)

		default:
			logger.Debug().Str("path", rel).Msg("Skipping special file")
			return nil
		}
	})
	if err != nil {
		return errors.Wrapf(err, errors.ErrStage, "failed to copy %s", src).WithDetail("path", src)
	}

	// deepest first
	for i := len(dirs) - 1; i >= 0; i-- {
		info, err := os.Stat(dirs[i].path)
		if err != nil {
			continue
		}
		_ = os.Chmod(dirs[i].path, info.Mode().Perm())
		_ = os.Chtimes(dirs[i].path, dirs[i].mtime, dirs[i].mtime)
	}
	return nil
}

func replaceExisting(target, rel string, logger zerolog.Logger) error {
	info, err := os.Lstat(target)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	logger.Warn().Str("path", rel).Msg("Subdirectories collide, later content wins")
	if info.IsDir() {
		return os.RemoveAll(target)
	}
	return os.Remove(target)
}

func copyFile(src, dst string, info fs.FileInfo) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return err
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
