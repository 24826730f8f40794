package remote

import (
	"context"
	"fmt"
	"strings"

	"github.com/arthur-debert/solodeploy/pkg/errors"
	"github.com/arthur-debert/solodeploy/pkg/identity"
)

// Output is the result of a command on one host
type Output struct {
	Host     string
	Stdout   string
	Stderr   string
	ExitCode int
}

// Executor runs commands and transfers files on hosts
type Executor interface {
	// Run executes command on every host and returns one Output per host.
	// A non-zero exit is an ErrRemoteCommand error; outputs gathered so far
	// are still returned.
	Run(ctx context.Context, command string, hosts []string) ([]Output, error)
	// Upload copies a local file to remote on every host
	Upload(ctx context.Context, local, remote string, hosts []string) error
	// Put writes content to remote on every host
	Put(ctx context.Context, content []byte, remote string, hosts []string) error
	// Download copies remote from every host. With more than one host, local
	// is a directory and each copy is named after its host.
	Download(ctx context.Context, remote, local string, hosts []string) error
}

// Transport is an Executor whose connections follow the identity in effect
type Transport interface {
	Executor
	identity.Connector
	Close() error
}

// SudoPrefix starts commands that escalate privileges. Executors holding a
// password feed it to sudo on stdin.
const SudoPrefix = "sudo -S -p '' "

// Sudo wraps command so it runs as root
func Sudo(command string) string {
	return SudoPrefix + "sh -c " + Quote(command)
}

// Capture runs command on a single host and returns its trimmed stdout
func Capture(ctx context.Context, exec Executor, command, host string) (string, error) {
	outputs, err := exec.Run(ctx, command, []string{host})
	if err != nil {
		return "", err
	}
	if len(outputs) == 0 {
		return "", errors.Newf(errors.ErrRemoteCommand, "no output from %s", host).WithDetail("host", host)
	}
	return strings.TrimSpace(outputs[0].Stdout), nil
}

func commandError(out Output, command string, cause error) error {
	msg := fmt.Sprintf("command failed on %s (exit %d)", out.Host, out.ExitCode)
	if stderr := strings.TrimSpace(out.Stderr); stderr != "" {
		msg += ": " + stderr
	}
	var err *errors.SoloError
	if cause != nil {
		err = errors.Wrap(cause, errors.ErrRemoteCommand, msg)
	} else {
		err = errors.New(errors.ErrRemoteCommand, msg)
	}
	return err.
		WithDetail("host", out.Host).
		WithDetail("command", command).
		WithDetail("exit_code", out.ExitCode)
}
