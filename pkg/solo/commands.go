package solo

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/arthur-debert/solodeploy/pkg/attributes"
	"github.com/arthur-debert/solodeploy/pkg/errors"
	"github.com/arthur-debert/solodeploy/pkg/remote"
	"github.com/arthur-debert/solodeploy/pkg/repository"
	"github.com/arthur-debert/solodeploy/pkg/staging"
)

// Run sets up chef-solo, updates every host and runs the full run list
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	return r.converge(ctx, "run", nil, true)
}

// RunList acts like Run but applies recipes only. With update false the
// staged content and documents on the hosts are reused as they are.
func (r *Runner) RunList(ctx context.Context, recipes []string, update bool) (*Report, error) {
	if len(recipes) == 0 {
		return nil, errors.New(errors.ErrInvalidInput, "run-list needs at least one recipe")
	}
	return r.converge(ctx, "run-list", recipes, update)
}

func (r *Runner) converge(ctx context.Context, command string, runList []string, update bool) (*Report, error) {
	report := &Report{Command: command}

	var staged *bundle
	if update {
		var err error
		if staged, err = r.prepare(ctx); err != nil {
			return report, err
		}
		defer staged.release()
	}

	err := r.connect(ctx, func(ctx context.Context) error {
		results, err := r.setup(ctx)
		report.add(results)
		if err != nil {
			return err
		}
		if update {
			results, err = r.update(ctx, staged, runList)
			report.add(results)
			if err != nil {
				return err
			}
		}
		results, err = r.invoke(ctx, runList)
		report.add(results)
		return err
	})
	return report, err
}

// Setup installs chef-solo where the configured version is missing
func (r *Runner) Setup(ctx context.Context) (*Report, error) {
	report := &Report{Command: "setup"}
	err := r.connect(ctx, func(ctx context.Context) error {
		results, err := r.setup(ctx)
		report.add(results)
		return err
	})
	return report, err
}

// Update stages content and documents without running chef-solo
func (r *Runner) Update(ctx context.Context) (*Report, error) {
	report := &Report{Command: "update"}
	staged, err := r.prepare(ctx)
	if err != nil {
		return report, err
	}
	defer staged.release()

	err = r.connect(ctx, func(ctx context.Context) error {
		results, err := r.update(ctx, staged, nil)
		report.add(results)
		return err
	})
	return report, err
}

// Version reports the chef-solo version on each host
func (r *Runner) Version(ctx context.Context) (*Report, error) {
	report := &Report{Command: "version"}
	err := r.connect(ctx, func(ctx context.Context) error {
		results, err := r.forEachHost(ctx, "version", func(ctx context.Context, host string) (string, error) {
			layout, err := r.layout(ctx, host)
			if err != nil {
				return "", err
			}
			return remote.Capture(ctx, r.transport, r.soloCommand(layout, "--version"), host)
		})
		report.add(results)
		return err
	})
	return report, err
}

// Purge uninstalls chef-solo
func (r *Runner) Purge(ctx context.Context) (*Report, error) {
	report := &Report{Command: "purge"}
	err := r.connect(ctx, func(ctx context.Context) error {
		results, err := r.forEachHost(ctx, "purge", func(ctx context.Context, host string) (string, error) {
			layout, err := r.layout(ctx, host)
			if err != nil {
				return "", err
			}
			for _, cmd := range r.uninstallCommands(layout) {
				if _, err := r.transport.Run(ctx, cmd, []string{host}); err != nil {
					return "", err
				}
			}
			return "uninstalled", nil
		})
		report.add(results)
		return err
	})
	return report, err
}

// Attributes merges the documents of roles and hosts without touching
// any host. Hosts given without roles contribute their own roles. Path
// variables appear only when they are known without asking the hosts.
func (r *Runner) Attributes(ctx context.Context, hosts, roles []string) (*attributes.Document, error) {
	roles = append([]string(nil), roles...)
	for _, h := range hosts {
		for _, role := range r.inventory.RolesFor(h) {
			if !slices.Contains(roles, role) {
				roles = append(roles, role)
			}
		}
	}

	engine, err := r.engine(true)
	if err != nil {
		return nil, err
	}
	return engine.Combined(ctx, hosts, roles)
}

// setup creates the layout and installs chef-solo when the probe does not
// report the configured version
func (r *Runner) setup(ctx context.Context) ([]HostResult, error) {
	return r.forEachHost(ctx, "setup", func(ctx context.Context, host string) (string, error) {
		hosts := []string{host}
		layout, err := r.layout(ctx, host)
		if err != nil {
			return "", err
		}

		if _, err := r.transport.Run(ctx, "mkdir -p "+remote.Join(layout.SetupDirs()...), hosts); err != nil {
			return "", err
		}

		installed := false
		if out, err := remote.Capture(ctx, r.transport, r.soloCommand(layout, "--version"), host); err == nil {
			installed = strings.Contains(out, r.cfg.Solo.Version)
		}
		if installed {
			return "chef-solo " + r.cfg.Solo.Version + " already installed", nil
		}

		if r.cfg.Solo.UseBundler {
			if err := r.transport.Put(ctx, []byte(r.gemfile()), layout.Gemfile, hosts); err != nil {
				return "", err
			}
		}
		for _, cmd := range r.installCommands(layout) {
			if _, err := r.transport.Run(ctx, cmd, hosts); err != nil {
				return "", err
			}
		}
		return "installed chef-solo " + r.cfg.Solo.Version, nil
	})
}

// bundle is what a command prepares locally before contacting any host
type bundle struct {
	engine    *attributes.Engine
	artifacts map[repository.Group][]*staging.Artifact
}

func (b *bundle) release() {
	for _, artifacts := range b.artifacts {
		for _, a := range artifacts {
			a.Release()
		}
	}
}

// prepare normalizes every descriptor, then stages them and loads the
// attribute overrides. Nothing here touches a host.
func (r *Runner) prepare(ctx context.Context) (_ *bundle, err error) {
	cookbooks, err := repository.ForGroup(r.cfg, repository.GroupCookbooks)
	if err != nil {
		return nil, err
	}
	dataBags, err := repository.ForGroup(r.cfg, repository.GroupDataBags)
	if err != nil {
		return nil, err
	}
	engine, err := r.engine(false)
	if err != nil {
		return nil, err
	}

	b := &bundle{engine: engine, artifacts: map[repository.Group][]*staging.Artifact{}}
	defer func() {
		if err != nil {
			b.release()
		}
	}()
	for _, group := range []struct {
		group repository.Group
		descs []repository.Descriptor
	}{{repository.GroupCookbooks, cookbooks}, {repository.GroupDataBags, dataBags}} {
		for _, d := range group.descs {
			a, err := r.pipeline.Stage(ctx, d)
			if err != nil {
				return nil, err
			}
			b.artifacts[group.group] = append(b.artifacts[group.group], a)
		}
	}
	return b, nil
}

// update installs the staged repositories with the role and host documents
// and solo.rb on every host
func (r *Runner) update(ctx context.Context, b *bundle, runList []string) ([]HostResult, error) {
	engine, staged := b.engine, b.artifacts
	pretty := r.cfg.Attributes.PrettyJSON
	return r.forEachHost(ctx, "update", func(ctx context.Context, host string) (string, error) {
		hosts := []string{host}
		layout, err := r.layout(ctx, host)
		if err != nil {
			return "", err
		}
		if _, err := r.transport.Run(ctx, "mkdir -p "+remote.Join(layout.SetupDirs()...), hosts); err != nil {
			return "", err
		}

		if err := r.pipeline.Install(ctx, staged[repository.GroupCookbooks], host, layout.Cookbooks); err != nil {
			return "", err
		}
		if err := r.pipeline.Install(ctx, staged[repository.GroupDataBags], host, layout.DataBags); err != nil {
			return "", err
		}

		roles := r.inventory.Roles()
		for _, role := range roles {
			data, err := attributes.Marshal(engine.RoleDocument(role), pretty)
			if err != nil {
				return "", err
			}
			if err := r.transport.Put(ctx, data, layout.RoleFile(role), hosts); err != nil {
				return "", err
			}
		}

		doc, err := engine.HostDocument(ctx, host, r.inventory.RolesFor(host), runList)
		if err != nil {
			return "", err
		}
		data, err := attributes.Marshal(doc, pretty)
		if err != nil {
			return "", err
		}
		if err := r.transport.Put(ctx, data, layout.SoloJSON, hosts); err != nil {
			return "", err
		}
		if err := r.transport.Put(ctx, []byte(layout.SoloConfig()), layout.SoloRB, hosts); err != nil {
			return "", err
		}

		return fmt.Sprintf("%d cookbook and %d data bag repositories, %d roles",
			len(staged[repository.GroupCookbooks]), len(staged[repository.GroupDataBags]), len(roles)), nil
	})
}

// invoke runs chef-solo, overriding the run list when one is given
func (r *Runner) invoke(ctx context.Context, runList []string) ([]HostResult, error) {
	return r.forEachHost(ctx, "invoke", func(ctx context.Context, host string) (string, error) {
		layout, err := r.layout(ctx, host)
		if err != nil {
			return "", err
		}
		outputs, err := r.transport.Run(ctx, r.invokeCommand(layout, runList), []string{host})
		if err != nil {
			return "", err
		}
		if len(outputs) == 0 {
			return "", nil
		}
		return strings.TrimSpace(outputs[0].Stdout), nil
	})
}

func (r *Runner) invokeCommand(layout Layout, runList []string) string {
	args := append([]string{}, r.cfg.Solo.Options...)
	args = append(args, "-c", layout.SoloRB, "-j", layout.SoloJSON)
	if len(runList) > 0 {
		args = append(args, "-o", strings.Join(runList, ","))
	}
	cmd := r.soloCommand(layout, args...)
	if r.cfg.Deploy.UseSudo {
		return remote.Sudo(cmd)
	}
	return cmd
}

// soloCommand runs chef-solo with args from the solo path
func (r *Runner) soloCommand(layout Layout, args ...string) string {
	cmd := r.cfg.Solo.Cmd
	if r.cfg.Solo.UseBundler {
		cmd = "bundle exec " + cmd
	}
	line := "cd " + remote.Quote(layout.Path) + " && " + cmd
	if len(args) > 0 {
		line += " " + remote.Join(args...)
	}
	return line
}

func (r *Runner) gemfile() string {
	return strings.Join([]string{
		`source "https://rubygems.org"`,
		fmt.Sprintf("gem %q, %q", r.cfg.Solo.Gem, r.cfg.Solo.Version),
	}, "\n") + "\n"
}

func (r *Runner) installCommands(layout Layout) []string {
	if r.cfg.Solo.UseBundler {
		args := append([]string{}, r.cfg.Solo.BundleOptions...)
		args = append(args, "--path="+layout.Bundle, "--quiet")
		return []string{"cd " + remote.Quote(layout.Path) + " && bundle install " + remote.Join(args...)}
	}
	return []string{"cd " + remote.Quote(layout.Path) + " && gem install -v " +
		remote.Quote(r.cfg.Solo.Version) + " " + remote.Quote(r.cfg.Solo.Gem)}
}

func (r *Runner) uninstallCommands(layout Layout) []string {
	if r.cfg.Solo.UseBundler {
		return []string{
			"rm -f " + remote.Join(layout.Gemfile, layout.Gemfile+".lock"),
			"rm -rf " + remote.Quote(layout.Bundle),
		}
	}
	return []string{"cd " + remote.Quote(layout.Path) + " && gem uninstall -I -x -v " +
		remote.Quote(r.cfg.Solo.Version) + " " + remote.Quote(r.cfg.Solo.Gem)}
}

// engine builds the attribute engine. deploy_to is the solo path and
// shared_path its shared directory unless [variables] sets them. Offline
// engines never ask a host, so without solo.path the path variables and
// remote_home are left out.
func (r *Runner) engine(offline bool) (*attributes.Engine, error) {
	vars := attributes.NewVariables()
	vars.Set("application", r.cfg.Application)
	vars.SetAll(r.cfg.Variables)

	deployTo := func(ctx context.Context, host string) (string, error) {
		if v, ok := r.cfg.Variables["deploy_to"].(string); ok && v != "" {
			return v, nil
		}
		layout, err := r.layout(ctx, host)
		if err != nil {
			return "", err
		}
		return layout.Path, nil
	}
	deferUnset := func(key string, p attributes.Provider) {
		if _, ok := r.cfg.Variables[key]; !ok {
			vars.Defer(key, p)
		}
	}

	if !offline || r.cfg.Solo.Path != "" {
		deferUnset("deploy_to", func(ctx context.Context, host string) (any, error) {
			return deployTo(ctx, host)
		})
		deferUnset("shared_path", func(ctx context.Context, host string) (any, error) {
			root, err := deployTo(ctx, host)
			if err != nil {
				return nil, err
			}
			return path.Join(root, "shared"), nil
		})
	}
	if !offline {
		deferUnset("remote_home", func(ctx context.Context, host string) (any, error) {
			home, err := remote.Capture(ctx, r.transport, "echo $HOME", host)
			if err != nil {
				return nil, err
			}
			return path.Clean(home), nil
		})
	}

	dir := r.cfg.Attributes.Dir
	if dir != "" && !filepath.IsAbs(dir) && r.cfg.ProjectRoot != "" {
		dir = filepath.Join(r.cfg.ProjectRoot, dir)
	}
	overrides, err := attributes.LoadOverrides(r.fs, dir)
	if err != nil {
		return nil, err
	}
	return attributes.NewEngine(attributes.ConfigSettings(r.cfg, vars, overrides))
}
