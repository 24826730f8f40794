package solo

import (
	"context"
	"sync"
	"time"

	"github.com/arthur-debert/solodeploy/pkg/config"
	"github.com/arthur-debert/solodeploy/pkg/errors"
	"github.com/arthur-debert/solodeploy/pkg/filesystem"
	"github.com/arthur-debert/solodeploy/pkg/identity"
	"github.com/arthur-debert/solodeploy/pkg/inventory"
	"github.com/arthur-debert/solodeploy/pkg/logging"
	"github.com/arthur-debert/solodeploy/pkg/remote"
	"github.com/arthur-debert/solodeploy/pkg/staging"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Options configure a Runner
type Options struct {
	Config    *config.Config
	Transport remote.Transport
	// Inventory defaults to the one declared in Config
	Inventory inventory.Inventory
	// Hosts to act on; empty means every known host
	Hosts []string
	// Bootstrap forces bootstrap mode on
	Bootstrap bool
	// FS reads attribute override files; defaults to the OS filesystem
	FS filesystem.FS
}

// Runner executes solodeploy commands against hosts
type Runner struct {
	cfg       *config.Config
	transport remote.Transport
	inventory inventory.Inventory
	hosts     []string
	bootstrap bool
	machine   *identity.StateMachine
	pipeline  *staging.Pipeline
	fs        filesystem.FS
	logger    zerolog.Logger

	mu      sync.Mutex
	layouts map[layoutKey]Layout
}

// New returns a Runner for opts
func New(opts Options) (*Runner, error) {
	if opts.Config == nil {
		return nil, errors.New(errors.ErrInvalidInput, "configuration is required")
	}
	if opts.Transport == nil {
		return nil, errors.New(errors.ErrInvalidInput, "transport is required")
	}

	inv := opts.Inventory
	if inv == nil {
		inv = inventory.FromConfig(opts.Config)
	}
	hosts := opts.Hosts
	if len(hosts) == 0 {
		hosts = inv.Hosts()
	}
	if len(hosts) == 0 {
		return nil, errors.New(errors.ErrInvalidInput, "no hosts to act on; declare [[hosts]] or role members")
	}

	fs := opts.FS
	if fs == nil {
		fs = filesystem.NewOS()
	}

	return &Runner{
		cfg:       opts.Config,
		transport: opts.Transport,
		inventory: inv,
		hosts:     hosts,
		bootstrap: opts.Bootstrap || opts.Config.Bootstrap.Enabled,
		machine:   identity.NewStateMachine(opts.Config.BootstrapSettings(), opts.Transport, hosts),
		pipeline:  staging.New(opts.Transport, opts.Config.ProjectRoot),
		fs:        fs,
		logger:    logging.GetLogger("solo"),
		layouts:   map[layoutKey]Layout{},
	}, nil
}

// Hosts returns the hosts the runner acts on
func (r *Runner) Hosts() []string {
	return append([]string(nil), r.hosts...)
}

// Identity returns the identity currently in effect
func (r *Runner) Identity() identity.Identity {
	return r.machine.Current()
}

// Close releases the transport's connections
func (r *Runner) Close() error {
	return r.transport.Close()
}

// connect runs op in the bootstrap scope when bootstrap mode is on
func (r *Runner) connect(ctx context.Context, op func(ctx context.Context) error) error {
	return r.machine.ConnectWith(ctx, r.bootstrap, op)
}

// HostResult is the outcome of one step on one host
type HostResult struct {
	Host     string
	Step     string
	Output   string
	Err      error
	Duration time.Duration
}

// Success reports whether the step succeeded
func (h HostResult) Success() bool { return h.Err == nil }

// Report collects the results of a command
type Report struct {
	Command string
	Results []HostResult
}

// Failed reports whether any step failed
func (r *Report) Failed() bool {
	for _, res := range r.Results {
		if res.Err != nil {
			return true
		}
	}
	return false
}

func (r *Report) add(results []HostResult) {
	r.Results = append(r.Results, results...)
}

type hostFunc func(ctx context.Context, host string) (string, error)

// forEachHost runs fn on every host, at most deploy.concurrency at a time.
// A failing host does not stop the others; the first error is returned.
func (r *Runner) forEachHost(ctx context.Context, step string, fn hostFunc) ([]HostResult, error) {
	results := make([]HostResult, len(r.hosts))

	var g errgroup.Group
	g.SetLimit(max(r.cfg.Deploy.Concurrency, 1))
	for i, host := range r.hosts {
		g.Go(func() error {
			start := time.Now()
			out, err := fn(ctx, host)
			results[i] = HostResult{Host: host, Step: step, Output: out, Err: err, Duration: time.Since(start)}

			event := r.logger.Info()
			if err != nil {
				event = r.logger.Error().Err(err)
			}
			event.Str("host", host).Str("step", step).Dur("duration", results[i].Duration).Msg("Step finished")
			return err
		})
	}
	err := g.Wait()
	return results, err
}
