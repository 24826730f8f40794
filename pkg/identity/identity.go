package identity

import (
	"context"
	"slices"
	"strings"
)

// SSHOptions are the connection options that accompany a user.
type SSHOptions struct {
	Port           int               `koanf:"port" json:"port,omitempty"`
	IdentityFile   string            `koanf:"identity_file" json:"identity_file,omitempty"`
	AuthMethods    []string          `koanf:"auth_methods" json:"auth_methods,omitempty"`
	KnownHostsFile string            `koanf:"known_hosts_file" json:"known_hosts_file,omitempty"`
	ForwardAgent   bool              `koanf:"forward_agent" json:"forward_agent,omitempty"`
	Options        map[string]string `koanf:"options" json:"options,omitempty"`
}

// AllowsPassword reports whether password authentication is in play: either
// no auth methods are pinned or "password" is among them.
func (o SSHOptions) AllowsPassword() bool {
	if len(o.AuthMethods) == 0 {
		return true
	}
	return slices.ContainsFunc(o.AuthMethods, func(m string) bool {
		return strings.EqualFold(strings.TrimSpace(m), "password")
	})
}

// Clone returns a deep copy so snapshots never alias the live options.
func (o SSHOptions) Clone() SSHOptions {
	c := o
	c.AuthMethods = slices.Clone(o.AuthMethods)
	if o.Options != nil {
		c.Options = make(map[string]string, len(o.Options))
		for k, v := range o.Options {
			c.Options[k] = v
		}
	}
	return c
}

// Identity is the user, password and connection options used to reach hosts.
type Identity struct {
	User     string
	Password string
	SSH      SSHOptions
}

// Clone returns a deep copy of the identity.
func (i Identity) Clone() Identity {
	c := i
	c.SSH = i.SSH.Clone()
	return c
}

// String renders the identity without its password.
func (i Identity) String() string {
	if i.User == "" {
		return "<default user>"
	}
	return i.User
}

type contextKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id.Clone())
}

// FromContext returns the identity carried by ctx, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}
