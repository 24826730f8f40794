package identity

import (
	"context"
	"fmt"
	"sync"

	"github.com/arthur-debert/solodeploy/pkg/errors"
	"github.com/arthur-debert/solodeploy/pkg/logging"
	"github.com/rs/zerolog"
)

// Connector opens and closes the connections that are bound to an identity.
type Connector interface {
	Establish(ctx context.Context, id Identity, hosts []string) error
	Teardown(ctx context.Context, id Identity, hosts []string) error
}

// Settings configure a StateMachine.
type Settings struct {
	Normal    Identity
	Bootstrap Identity
	// UsePassword controls whether passwords are swapped along with users.
	UsePassword bool
}

// StateMachine swaps the normal identity for the bootstrap identity while a
// bootstrap scope is open.
type StateMachine struct {
	mu sync.Mutex

	current   Identity
	original  Identity
	bootstrap Identity

	usePassword bool
	active      bool
	depth       int

	connector Connector
	hosts     []string
	logger    zerolog.Logger
}

// NewStateMachine returns an inactive machine holding the normal identity.
func NewStateMachine(settings Settings, connector Connector, hosts []string) *StateMachine {
	return &StateMachine{
		current:     settings.Normal.Clone(),
		bootstrap:   settings.Bootstrap.Clone(),
		usePassword: settings.UsePassword,
		connector:   connector,
		hosts:       append([]string(nil), hosts...),
		logger:      logging.GetLogger("identity"),
	}
}

// Current returns a copy of the identity in effect.
func (m *StateMachine) Current() Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.Clone()
}

// Active reports whether the bootstrap identity is installed.
func (m *StateMachine) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Depth returns the number of open ConnectWith scopes that requested bootstrap.
func (m *StateMachine) Depth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.depth
}

// Activate installs the bootstrap identity. It returns false when the machine
// was already active, in which case nothing changes.
func (m *StateMachine) Activate(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active {
		return false, nil
	}

	m.original = Identity{User: m.current.User, SSH: m.current.SSH.Clone()}
	if m.usePassword {
		m.original.Password = m.current.Password
	}

	m.teardown(ctx, m.current)

	next := m.current.Clone()
	next.User = m.bootstrap.User
	next.SSH = m.bootstrap.SSH.Clone()
	if m.usePassword {
		next.Password = m.bootstrap.Password
	}
	m.current = next

	m.logger.Info().
		Str("user", m.current.String()).
		Strs("hosts", m.hosts).
		Msg("Switching to bootstrap identity")

	if err := m.establish(ctx, m.current); err != nil {
		m.logger.Warn().Err(err).Msg("Bootstrap connection failed, restoring original identity")
		m.teardown(ctx, m.current)
		m.restore()
		if rerr := m.establish(ctx, m.current); rerr != nil {
			m.logger.Warn().Err(rerr).Msg("Failed to reconnect with original identity")
		}
		return false, errors.Wrapf(err, errors.ErrConnection,
			"failed to connect as bootstrap user %s", next.String()).
			WithDetail("hosts", m.hosts)
	}

	m.active = true
	return true, nil
}

// Deactivate restores the original identity. It returns false when the
// machine was not active.
func (m *StateMachine) Deactivate(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		return false, nil
	}

	bootstrap := m.current
	m.restore()
	m.active = false

	m.logger.Info().
		Str("user", m.current.String()).
		Msg("Restoring original identity")

	m.teardown(ctx, bootstrap)
	if err := m.establish(ctx, m.current); err != nil {
		return true, errors.Wrapf(err, errors.ErrConnection,
			"failed to reconnect as %s", m.current.String()).
			WithDetail("hosts", m.hosts)
	}
	return true, nil
}

// ConnectWith runs op with a context carrying the identity in effect. When
// enabled, the bootstrap identity is installed for the duration of op unless
// an enclosing scope already installed it. Only the scope that activated the
// machine deactivates it, on every exit path including panics.
func (m *StateMachine) ConnectWith(ctx context.Context, enabled bool, op func(ctx context.Context) error) (err error) {
	if !enabled {
		return op(WithIdentity(ctx, m.Current()))
	}

	activated, err := m.Activate(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.depth++
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.depth--
		m.mu.Unlock()

		if !activated {
			return
		}

		_, derr := m.Deactivate(ctx)
		if derr == nil {
			return
		}
		if err != nil {
			m.logger.Error().Err(derr).Msg("Failed to restore original identity")
			return
		}
		err = derr
	}()

	return op(WithIdentity(ctx, m.Current()))
}

func (m *StateMachine) restore() {
	restored := m.current.Clone()
	restored.User = m.original.User
	restored.SSH = m.original.SSH.Clone()
	if m.usePassword {
		restored.Password = m.original.Password
	}
	m.current = restored
}

func (m *StateMachine) establish(ctx context.Context, id Identity) error {
	if m.connector == nil || len(m.hosts) == 0 {
		return nil
	}
	return m.connector.Establish(ctx, id, m.hosts)
}

func (m *StateMachine) teardown(ctx context.Context, id Identity) {
	if m.connector == nil || len(m.hosts) == 0 {
		return
	}
	if err := m.connector.Teardown(ctx, id, m.hosts); err != nil {
		m.logger.Warn().Err(err).Str("user", id.String()).Msg("Failed to close connections")
	}
}

// String describes the machine state for debugging.
func (m *StateMachine) String() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := "inactive"
	if m.active {
		state = "active"
	}
	return fmt.Sprintf("identity.StateMachine{%s user=%s depth=%d}", state, m.current.String(), m.depth)
}
