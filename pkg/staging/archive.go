package staging

import (
	"archive/tar"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/arthur-debert/solodeploy/pkg/errors"
	"github.com/klauspost/compress/gzip"
	"github.com/zeebo/blake3"
)

// pack writes dir as a gzip tarball to archive and returns the BLAKE3 digest
// of the archive bytes together with its size
func pack(dir, archive string) (string, int64, error) {
	f, err := os.OpenFile(archive, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return "", 0, errors.Wrapf(err, errors.ErrStage, "failed to create archive %s", archive).
			WithDetail("path", archive)
	}
	defer func() { _ = f.Close() }()

	hasher := blake3.New()
	counter := &countingWriter{}
	gz := gzip.NewWriter(io.MultiWriter(f, hasher, counter))
	tw := tar.NewWriter(gz)

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		var link string
		if info.Mode()&fs.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return err
			}
		}

		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if info.IsDir() {
			hdr.Name += "/"
		}
		hdr.Uid, hdr.Gid = 0, 0
		hdr.Uname, hdr.Gname = "", ""

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		src, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(tw, src)
		_ = src.Close()
		return err
	})
	if walkErr != nil {
		return "", 0, errors.Wrapf(walkErr, errors.ErrStage, "failed to archive %s", dir).WithDetail("path", dir)
	}

	if err := tw.Close(); err != nil {
		return "", 0, errors.Wrap(err, errors.ErrStage, "failed to finish tar stream")
	}
	if err := gz.Close(); err != nil {
		return "", 0, errors.Wrap(err, errors.ErrStage, "failed to finish gzip stream")
	}
	if err := f.Close(); err != nil {
		return "", 0, errors.Wrapf(err, errors.ErrStage, "failed to write archive %s", archive)
	}

	return hex.EncodeToString(hasher.Sum(nil)), counter.n, nil
}

type countingWriter struct{ n int64 }

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}
