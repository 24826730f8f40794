package remote

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/arthur-debert/solodeploy/pkg/errors"
	"github.com/arthur-debert/solodeploy/pkg/identity"
	"github.com/arthur-debert/solodeploy/pkg/logging"
	"github.com/arthur-debert/solodeploy/pkg/paths"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

const defaultSSHPort = 22

// DialFunc opens an SSH client connection
type DialFunc func(network, addr string, config *ssh.ClientConfig) (*ssh.Client, error)

type clientKey struct {
	host string
	user string
	port int
}

// SSHExecutor runs commands over SSH. Connections are cached per host and
// identity; Establish and Teardown open and close them explicitly.
type SSHExecutor struct {
	Timeout time.Duration
	Dial    DialFunc

	mu      sync.Mutex
	clients map[clientKey]*ssh.Client
	agent   agent.ExtendedAgent
	agentC  net.Conn
	logger  zerolog.Logger
}

// NewSSHExecutor returns an executor with the given connect timeout
func NewSSHExecutor(timeout time.Duration) *SSHExecutor {
	return &SSHExecutor{
		Timeout: timeout,
		Dial:    ssh.Dial,
		clients: map[clientKey]*ssh.Client{},
		logger:  logging.GetLogger("remote.ssh"),
	}
}

// Establish connects to every host as id
func (e *SSHExecutor) Establish(ctx context.Context, id identity.Identity, hosts []string) error {
	ctx = identity.WithIdentity(ctx, id)
	for _, host := range hosts {
		if _, _, err := e.client(ctx, host); err != nil {
			return err
		}
	}
	return nil
}

// Teardown closes the connections to hosts opened as id
func (e *SSHExecutor) Teardown(ctx context.Context, id identity.Identity, hosts []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	for _, host := range hosts {
		key := keyFor(host, id)
		c, ok := e.clients[key]
		if !ok {
			continue
		}
		delete(e.clients, key)
		if err := c.Close(); err != nil && !stderrors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Wrap(stderrors.Join(errs...), errors.ErrConnection, "failed to close connections")
	}
	return nil
}

// Close drops every cached connection
func (e *SSHExecutor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for key, c := range e.clients {
		_ = c.Close()
		delete(e.clients, key)
	}
	if e.agentC != nil {
		_ = e.agentC.Close()
		e.agentC = nil
		e.agent = nil
	}
	return nil
}

// Run executes command on each host in turn
func (e *SSHExecutor) Run(ctx context.Context, command string, hosts []string) ([]Output, error) {
	outputs := make([]Output, 0, len(hosts))
	for _, host := range hosts {
		client, id, err := e.client(ctx, host)
		if err != nil {
			return outputs, err
		}

		var stdin io.Reader
		if strings.HasPrefix(command, SudoPrefix) && id.Password != "" {
			stdin = strings.NewReader(id.Password + "\n")
		}

		e.logger.Debug().Str("host", host).Str("user", id.String()).Str("command", command).Msg("Running command")
		stdout, stderr, code, runErr := e.session(ctx, client, id, command, stdin)
		out := Output{Host: host, Stdout: stdout, Stderr: stderr, ExitCode: code}
		outputs = append(outputs, out)
		if runErr != nil {
			return outputs, commandError(out, command, runErr)
		}
	}
	return outputs, nil
}

// Upload streams local into remote on each host
func (e *SSHExecutor) Upload(ctx context.Context, local, remote string, hosts []string) error {
	for _, host := range hosts {
		f, err := os.Open(local)
		if err != nil {
			return errors.Wrapf(err, errors.ErrTransfer, "failed to open %s", local).WithDetail("path", local)
		}
		err = e.write(ctx, host, f, remote)
		_ = f.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

// Put writes content to remote on each host
func (e *SSHExecutor) Put(ctx context.Context, content []byte, remote string, hosts []string) error {
	for _, host := range hosts {
		if err := e.write(ctx, host, bytes.NewReader(content), remote); err != nil {
			return err
		}
	}
	return nil
}

// Download copies remote from each host to local
func (e *SSHExecutor) Download(ctx context.Context, remote, local string, hosts []string) error {
	for _, host := range hosts {
		client, id, err := e.client(ctx, host)
		if err != nil {
			return err
		}
		stdout, stderr, code, err := e.session(ctx, client, id, "cat "+Quote(remote), nil)
		if err != nil {
			return errors.Wrap(commandError(Output{Host: host, Stderr: stderr, ExitCode: code}, "cat", err),
				errors.ErrTransfer, "failed to download "+remote).
				WithDetail("host", host).
				WithDetail("path", remote)
		}
		dest := downloadPath(local, host, len(hosts))
		if err := os.WriteFile(dest, []byte(stdout), 0644); err != nil {
			return errors.Wrapf(err, errors.ErrTransfer, "failed to write %s", dest).WithDetail("path", dest)
		}
	}
	return nil
}

func (e *SSHExecutor) write(ctx context.Context, host string, content io.Reader, remote string) error {
	client, id, err := e.client(ctx, host)
	if err != nil {
		return err
	}
	command := "cat > " + Quote(remote)
	_, stderr, code, err := e.session(ctx, client, id, command, content)
	if err != nil {
		return errors.Wrap(commandError(Output{Host: host, Stderr: stderr, ExitCode: code}, command, err),
			errors.ErrTransfer, "failed to upload to "+remote).
			WithDetail("host", host).
			WithDetail("path", remote)
	}
	return nil
}

func (e *SSHExecutor) session(ctx context.Context, client *ssh.Client, id identity.Identity, command string, stdin io.Reader) (string, string, int, error) {
	session, err := client.NewSession()
	if err != nil {
		return "", "", -1, err
	}
	defer func() { _ = session.Close() }()

	if id.SSH.ForwardAgent {
		if err := agent.RequestAgentForwarding(session); err != nil {
			e.logger.Warn().Err(err).Msg("Agent forwarding refused")
		}
	}

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr
	session.Stdin = stdin

	done := make(chan error, 1)
	go func() { done <- session.Run(command) }()

	select {
	case err = <-done:
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		_ = session.Close()
		return stdout.String(), stderr.String(), -1, ctx.Err()
	}

	if err == nil {
		return stdout.String(), stderr.String(), 0, nil
	}
	var exitErr *ssh.ExitError
	if stderrors.As(err, &exitErr) {
		return stdout.String(), stderr.String(), exitErr.ExitStatus(), err
	}
	return stdout.String(), stderr.String(), -1, err
}

// client returns the cached connection to host for the context identity.
// Dialing happens outside the lock; when two callers race, the first
// stored connection wins and the other is closed.
func (e *SSHExecutor) client(ctx context.Context, host string) (*ssh.Client, identity.Identity, error) {
	id, _ := identity.FromContext(ctx)
	key := keyFor(host, id)

	e.mu.Lock()
	if c, ok := e.clients[key]; ok {
		e.mu.Unlock()
		return c, id, nil
	}
	config, err := e.clientConfig(id)
	forward := e.agent
	e.mu.Unlock()
	if err != nil {
		return nil, id, errors.Wrapf(err, errors.ErrConnection, "cannot connect to %s", host).
			WithDetail("host", host)
	}

	addr := Address(host, id.SSH.Port)
	e.logger.Debug().Str("addr", addr).Str("user", config.User).Msg("Opening SSH connection")
	c, err := e.Dial("tcp", addr, config)
	if err != nil {
		return nil, id, errors.Wrapf(err, errors.ErrConnection, "failed to connect to %s as %s", addr, config.User).
			WithDetail("host", host).
			WithDetail("user", config.User)
	}

	e.mu.Lock()
	if existing, ok := e.clients[key]; ok {
		e.mu.Unlock()
		_ = c.Close()
		return existing, id, nil
	}
	e.clients[key] = c
	e.mu.Unlock()

	if id.SSH.ForwardAgent && forward != nil {
		if err := agent.ForwardToAgent(c, forward); err != nil {
			e.logger.Warn().Err(err).Str("host", host).Msg("Failed to set up agent forwarding")
		}
	}
	return c, id, nil
}

func (e *SSHExecutor) clientConfig(id identity.Identity) (*ssh.ClientConfig, error) {
	username, err := loginName(id)
	if err != nil {
		return nil, err
	}

	hostKeyCallback, err := hostKeyCallback(id.SSH)
	if err != nil {
		return nil, err
	}

	return &ssh.ClientConfig{
		User:            username,
		Auth:            e.authMethods(id),
		HostKeyCallback: hostKeyCallback,
		Timeout:         e.Timeout,
	}, nil
}

// authMethods must be called with e.mu held
func (e *SSHExecutor) authMethods(id identity.Identity) []ssh.AuthMethod {
	allowed := func(method string) bool {
		return len(id.SSH.AuthMethods) == 0 || slices.Contains(id.SSH.AuthMethods, method)
	}

	var methods []ssh.AuthMethod
	if allowed("publickey") {
		var signers []ssh.Signer
		for _, path := range keyFiles(id.SSH.IdentityFile) {
			if signer, err := readSigner(path); err == nil {
				signers = append(signers, signer)
			} else if id.SSH.IdentityFile != "" {
				e.logger.Warn().Err(err).Str("path", path).Msg("Cannot use identity file")
			}
		}
		if len(signers) > 0 {
			methods = append(methods, ssh.PublicKeys(signers...))
		}
		if a := e.sshAgent(); a != nil {
			methods = append(methods, ssh.PublicKeysCallback(a.Signers))
		}
	}

	if id.Password != "" && id.SSH.AllowsPassword() {
		password := id.Password
		methods = append(methods, ssh.Password(password))
		if allowed("keyboard-interactive") || allowed("password") {
			methods = append(methods, ssh.KeyboardInteractive(
				func(name, instruction string, questions []string, echos []bool) ([]string, error) {
					answers := make([]string, len(questions))
					for i := range answers {
						answers[i] = password
					}
					return answers, nil
				}))
		}
	}
	return methods
}

func (e *SSHExecutor) sshAgent() agent.ExtendedAgent {
	if e.agent != nil {
		return e.agent
	}
	sock := os.Getenv("SSH_AUTH_SOCK")
	if sock == "" {
		return nil
	}
	conn, err := net.Dial("unix", sock)
	if err != nil {
		e.logger.Debug().Err(err).Msg("SSH agent unavailable")
		return nil
	}
	e.agentC = conn
	e.agent = agent.NewClient(conn)
	return e.agent
}

// Address joins host with port unless host already carries one
func Address(host string, port int) string {
	host = strings.TrimSpace(host)
	if _, _, err := net.SplitHostPort(host); err == nil {
		return host
	}
	if port == 0 {
		port = defaultSSHPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

func keyFor(host string, id identity.Identity) clientKey {
	return clientKey{host: host, user: id.User, port: id.SSH.Port}
}

func loginName(id identity.Identity) (string, error) {
	if id.User != "" {
		return id.User, nil
	}
	if name := os.Getenv("USER"); name != "" {
		return name, nil
	}
	u, err := user.Current()
	if err != nil {
		return "", err
	}
	return u.Username, nil
}

func keyFiles(explicit string) []string {
	if explicit != "" {
		return []string{paths.ExpandHome(explicit)}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{
		filepath.Join(home, ".ssh", "id_ed25519"),
		filepath.Join(home, ".ssh", "id_ecdsa"),
		filepath.Join(home, ".ssh", "id_rsa"),
	}
}

func readSigner(path string) (ssh.Signer, error) {
	key, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ssh.ParsePrivateKey(key)
}

func hostKeyCallback(opts identity.SSHOptions) (ssh.HostKeyCallback, error) {
	if strings.EqualFold(opts.Options["StrictHostKeyChecking"], "no") {
		return ssh.InsecureIgnoreHostKey(), nil
	}

	path := strings.TrimSpace(opts.KnownHostsFile)
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.New(errors.ErrConnection, "known hosts path not set and home dir unavailable")
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}
	return knownhosts.New(paths.ExpandHome(path))
}
