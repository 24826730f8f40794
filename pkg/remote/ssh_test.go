package remote_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/arthur-debert/solodeploy/pkg/errors"
	"github.com/arthur-debert/solodeploy/pkg/identity"
	"github.com/arthur-debert/solodeploy/pkg/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

// startServer runs an SSH server that executes commands with sh and accepts
// password authentication for deploy/secret
func startServer(t *testing.T) string {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)

	cfg := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if c.User() == "deploy" && string(pass) == "secret" {
				return nil, nil
			}
			return nil, fmt.Errorf("denied")
		},
	}
	cfg.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			nc, err := ln.Accept()
			if err != nil {
				return
			}
			go serveConn(nc, cfg)
		}
	}()
	return ln.Addr().String()
}

func serveConn(nc net.Conn, cfg *ssh.ServerConfig) {
	_, chans, reqs, err := ssh.NewServerConn(nc, cfg)
	if err != nil {
		_ = nc.Close()
		return
	}
	go ssh.DiscardRequests(reqs)

	for nch := range chans {
		if nch.ChannelType() != "session" {
			_ = nch.Reject(ssh.UnknownChannelType, "unsupported")
			continue
		}
		ch, requests, err := nch.Accept()
		if err != nil {
			continue
		}
		go func() {
			defer func() { _ = ch.Close() }()
			for req := range requests {
				if req.Type != "exec" {
					_ = req.Reply(false, nil)
					continue
				}
				var payload struct{ Command string }
				_ = ssh.Unmarshal(req.Payload, &payload)
				_ = req.Reply(true, nil)

				cmd := exec.Command("sh", "-c", payload.Command)
				cmd.Stdin = ch
				cmd.Stdout = ch
				cmd.Stderr = ch.Stderr()
				code := 0
				if err := cmd.Run(); err != nil {
					var exitErr *exec.ExitError
					if stderrors.As(err, &exitErr) {
						code = exitErr.ExitCode()
					} else {
						code = 127
					}
				}
				status := struct{ Status uint32 }{uint32(code)}
				_, _ = ch.SendRequest("exit-status", false, ssh.Marshal(&status))
				return
			}
		}()
	}
}

func deployIdentity(password string) identity.Identity {
	return identity.Identity{
		User:     "deploy",
		Password: password,
		SSH: identity.SSHOptions{
			AuthMethods: []string{"password"},
			Options:     map[string]string{"StrictHostKeyChecking": "no"},
		},
	}
}

func TestAddress(t *testing.T) {
	assert.Equal(t, "web1:22", remote.Address("web1", 0))
	assert.Equal(t, "web1:2222", remote.Address("web1", 2222))
	assert.Equal(t, "web1:2200", remote.Address("web1:2200", 2222))
	assert.Equal(t, "[::1]:22", remote.Address("::1", 0))
}

func TestSSHExecutorRoundTrip(t *testing.T) {
	addr := startServer(t)
	executor := remote.NewSSHExecutor(5 * time.Second)
	defer func() { _ = executor.Close() }()

	id := deployIdentity("secret")
	ctx := identity.WithIdentity(context.Background(), id)
	hosts := []string{addr}

	require.NoError(t, executor.Establish(ctx, id, hosts))

	outputs, err := executor.Run(ctx, "echo hi; echo warn >&2", hosts)
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	assert.Equal(t, "hi\n", outputs[0].Stdout)
	assert.Equal(t, "warn\n", outputs[0].Stderr)

	_, err = executor.Run(ctx, "exit 4", hosts)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrRemoteCommand))
	assert.Equal(t, 4, errors.GetErrorDetails(err)["exit_code"])

	dir := t.TempDir()
	target := filepath.Join(dir, "solo.json")
	require.NoError(t, executor.Put(ctx, []byte(`{"a":1}`), target, hosts))
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))

	local := filepath.Join(dir, "copy.json")
	require.NoError(t, executor.Download(ctx, target, local, hosts))
	data, err = os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))

	require.NoError(t, executor.Teardown(ctx, id, hosts))
	// reconnects on demand after teardown
	_, err = executor.Run(ctx, "true", hosts)
	assert.NoError(t, err)
}

func TestSSHExecutorAuthFailure(t *testing.T) {
	addr := startServer(t)
	executor := remote.NewSSHExecutor(5 * time.Second)
	defer func() { _ = executor.Close() }()

	id := deployIdentity("wrong")
	err := executor.Establish(context.Background(), id, []string{addr})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrConnection))
}

func TestSSHExecutorDialError(t *testing.T) {
	executor := remote.NewSSHExecutor(time.Second)
	executor.Dial = func(network, addr string, config *ssh.ClientConfig) (*ssh.Client, error) {
		assert.Equal(t, "web1:2222", addr)
		assert.Equal(t, "root", config.User)
		return nil, fmt.Errorf("connection refused")
	}

	id := identity.Identity{User: "root", SSH: identity.SSHOptions{
		Port:    2222,
		Options: map[string]string{"StrictHostKeyChecking": "no"},
	}}
	ctx := identity.WithIdentity(context.Background(), id)

	_, err := executor.Run(ctx, "true", []string{"web1"})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrConnection))
	assert.Equal(t, "web1", errors.GetErrorDetails(err)["host"])

	assert.NoError(t, executor.Teardown(ctx, id, []string{"web1"}))
}

func TestSSHExecutorDialsHostsConcurrently(t *testing.T) {
	t.Setenv("SSH_AUTH_SOCK", "")
	entered := make(chan string, 2)
	release := make(chan struct{})

	executor := remote.NewSSHExecutor(time.Second)
	executor.Dial = func(network, addr string, config *ssh.ClientConfig) (*ssh.Client, error) {
		entered <- addr
		<-release
		return nil, fmt.Errorf("connection refused")
	}

	id := identity.Identity{User: "root", SSH: identity.SSHOptions{
		Options: map[string]string{"StrictHostKeyChecking": "no"},
	}}
	ctx := identity.WithIdentity(context.Background(), id)

	errs := make(chan error, 2)
	for _, host := range []string{"web1", "db1"} {
		go func() {
			_, err := executor.Run(ctx, "true", []string{host})
			errs <- err
		}()
	}

	var dialing []string
	for range 2 {
		select {
		case addr := <-entered:
			dialing = append(dialing, addr)
		case <-time.After(2 * time.Second):
			close(release)
			t.Fatalf("dials ran one at a time, in flight: %v", dialing)
		}
	}
	assert.ElementsMatch(t, []string{"web1:22", "db1:22"}, dialing)

	closed := make(chan struct{})
	go func() {
		_ = executor.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Error("Close waited for pending dials")
	}

	close(release)
	for range 2 {
		assert.True(t, errors.IsErrorCode(<-errs, errors.ErrConnection))
	}
}
