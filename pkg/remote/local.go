package remote

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/arthur-debert/solodeploy/pkg/errors"
	"github.com/arthur-debert/solodeploy/pkg/identity"
	"github.com/arthur-debert/solodeploy/pkg/logging"
)

// LocalExecutor treats the control machine as every host
type LocalExecutor struct {
	Runner CommandRunner
	// DropSudo runs sudo-prefixed commands as the current user
	DropSudo bool
}

// NewLocalExecutor returns a LocalExecutor backed by os/exec
func NewLocalExecutor(dropSudo bool) *LocalExecutor {
	return &LocalExecutor{Runner: ExecRunner{}, DropSudo: dropSudo}
}

// Run executes command with sh -c once per host
func (e *LocalExecutor) Run(ctx context.Context, command string, hosts []string) ([]Output, error) {
	logger := logging.GetLogger("remote.local")
	if e.DropSudo && strings.HasPrefix(command, SudoPrefix) {
		command = strings.TrimPrefix(command, SudoPrefix)
	}

	outputs := make([]Output, 0, len(hosts))
	for _, host := range hosts {
		logger.Debug().Str("host", host).Str("command", command).Msg("Running command")
		stdout, stderr, code, err := e.Runner.Run(ctx, nil, "sh", "-c", command)
		out := Output{Host: host, Stdout: string(stdout), Stderr: string(stderr), ExitCode: code}
		outputs = append(outputs, out)
		if err != nil {
			return outputs, commandError(out, command, err)
		}
	}
	return outputs, nil
}

// Upload copies local to remote
func (e *LocalExecutor) Upload(ctx context.Context, local, remote string, hosts []string) error {
	for _, host := range hosts {
		if err := copyFile(local, remote); err != nil {
			return errors.Wrapf(err, errors.ErrTransfer, "failed to upload %s", local).
				WithDetail("host", host).
				WithDetail("path", remote)
		}
	}
	return nil
}

// Put writes content to remote
func (e *LocalExecutor) Put(ctx context.Context, content []byte, remote string, hosts []string) error {
	for _, host := range hosts {
		if err := os.WriteFile(remote, content, 0644); err != nil {
			return errors.Wrapf(err, errors.ErrTransfer, "failed to write %s", remote).
				WithDetail("host", host).
				WithDetail("path", remote)
		}
	}
	return nil
}

// Download copies remote to local
func (e *LocalExecutor) Download(ctx context.Context, remote, local string, hosts []string) error {
	for _, host := range hosts {
		dest := downloadPath(local, host, len(hosts))
		if err := copyFile(remote, dest); err != nil {
			return errors.Wrapf(err, errors.ErrTransfer, "failed to download %s", remote).
				WithDetail("host", host).
				WithDetail("path", remote)
		}
	}
	return nil
}

// Establish is a no-op; local commands need no connection
func (e *LocalExecutor) Establish(ctx context.Context, id identity.Identity, hosts []string) error {
	return nil
}

// Teardown is a no-op
func (e *LocalExecutor) Teardown(ctx context.Context, id identity.Identity, hosts []string) error {
	return nil
}

// Close is a no-op
func (e *LocalExecutor) Close() error { return nil }

func downloadPath(local, host string, count int) string {
	if count > 1 {
		return filepath.Join(local, host)
	}
	return local
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
