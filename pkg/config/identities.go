package config

import (
	"github.com/arthur-debert/solodeploy/pkg/identity"
	"github.com/arthur-debert/solodeploy/pkg/logging"
)

// NormalIdentity returns the deploy identity
func (c *Config) NormalIdentity() identity.Identity {
	return identity.Identity{
		User:     c.Deploy.User,
		Password: c.Deploy.Password,
		SSH:      c.Deploy.SSHOptions.Clone(),
	}
}

// BootstrapSettings resolves the bootstrap identity, falling back to the
// deploy identity for anything left unset. The deprecated solo.user and
// solo.ssh_options keys are still honored.
func (c *Config) BootstrapSettings() identity.Settings {
	logger := logging.GetLogger("config")
	normal := c.NormalIdentity()

	bootstrap := normal.Clone()
	switch {
	case c.Bootstrap.User != "":
		bootstrap.User = c.Bootstrap.User
	case c.Solo.User != "":
		logger.Info().Msg("solo.user is deprecated, use bootstrap.user")
		bootstrap.User = c.Solo.User
	}

	if c.Bootstrap.Password != "" {
		bootstrap.Password = c.Bootstrap.Password
	}

	switch {
	case c.Bootstrap.SSHOptions != nil:
		bootstrap.SSH = c.Bootstrap.SSHOptions.Clone()
	case c.Solo.SSHOptions != nil:
		logger.Info().Msg("solo.ssh_options is deprecated, use bootstrap.ssh_options")
		bootstrap.SSH = c.Solo.SSHOptions.Clone()
	}

	usePassword := normal.SSH.AllowsPassword()
	if c.Bootstrap.UsePassword != nil {
		usePassword = *c.Bootstrap.UsePassword
	}

	return identity.Settings{
		Normal:      normal,
		Bootstrap:   bootstrap,
		UsePassword: usePassword,
	}
}
