package solo

import (
	"time"

	"github.com/arthur-debert/solodeploy/pkg/config"
	"github.com/arthur-debert/solodeploy/pkg/errors"
	"github.com/arthur-debert/solodeploy/pkg/remote"
)

// DefaultTimeout applies when deploy.timeout is unset
const DefaultTimeout = 30 * time.Second

// NewTransport returns the transport named by deploy.transport
func NewTransport(cfg *config.Config) (remote.Transport, error) {
	switch cfg.Deploy.Transport {
	case config.TransportLocal:
		return remote.NewLocalExecutor(false), nil
	case config.TransportOpenSSH, "":
		timeout := cfg.Deploy.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		return remote.NewSSHExecutor(timeout), nil
	default:
		return nil, errors.Newf(errors.ErrInvalidInput, "unknown transport %q", cfg.Deploy.Transport).
			WithDetail("transport", cfg.Deploy.Transport)
	}
}
