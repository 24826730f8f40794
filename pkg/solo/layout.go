package solo

import (
	"context"
	"path"
	"strconv"
	"strings"

	"github.com/arthur-debert/solodeploy/pkg/errors"
	"github.com/arthur-debert/solodeploy/pkg/identity"
	"github.com/arthur-debert/solodeploy/pkg/remote"
)

// HomeProbe prints the default solo path on a host
const HomeProbe = "echo $HOME/chef"

// Layout is the remote directory layout below the solo path
type Layout struct {
	Path      string
	Cache     string
	Config    string
	Cookbooks string
	DataBags  string
	Roles     string
	// SoloRB is the chef-solo configuration file
	SoloRB string
	// SoloJSON is the host document
	SoloJSON string
	Gemfile  string
	Bundle   string
}

// NewLayout derives every path from root
func NewLayout(root string) Layout {
	config := path.Join(root, "config")
	return Layout{
		Path:      root,
		Cache:     path.Join(root, "cache"),
		Config:    config,
		Cookbooks: path.Join(root, "cookbooks"),
		DataBags:  path.Join(root, "data_bags"),
		Roles:     path.Join(root, "roles"),
		SoloRB:    path.Join(config, "solo.rb"),
		SoloJSON:  path.Join(config, "solo.json"),
		Gemfile:   path.Join(root, "Gemfile"),
		Bundle:    path.Join(root, "bundle"),
	}
}

// RoleFile is where the document of role lands
func (l Layout) RoleFile(role string) string {
	return path.Join(l.Roles, role+".json")
}

// SetupDirs are created by setup and update
func (l Layout) SetupDirs() []string {
	return []string{l.Path, l.Cache, l.Config, l.Roles}
}

// SoloConfig renders solo.rb
func (l Layout) SoloConfig() string {
	var b strings.Builder
	for _, line := range [][2]string{
		{"file_cache_path", l.Cache},
		{"cookbook_path", l.Cookbooks},
		{"data_bag_path", l.DataBags},
		{"role_path", l.Roles},
	} {
		b.WriteString(line[0] + " " + strconv.Quote(line[1]) + "\n")
	}
	return b.String()
}

type layoutKey struct {
	host string
	user string
}

// layout returns the layout for host under the identity in ctx. Without a
// configured path the remote home is probed once per host and user.
func (r *Runner) layout(ctx context.Context, host string) (Layout, error) {
	if r.cfg.Solo.Path != "" {
		return NewLayout(r.cfg.Solo.Path), nil
	}

	id, _ := identity.FromContext(ctx)
	key := layoutKey{host: host, user: id.User}
	r.mu.Lock()
	l, ok := r.layouts[key]
	r.mu.Unlock()
	if ok {
		return l, nil
	}

	root, err := remote.Capture(ctx, r.transport, HomeProbe, host)
	if err != nil {
		return Layout{}, err
	}
	if !path.IsAbs(root) {
		return Layout{}, errors.Newf(errors.ErrRemoteCommand, "unexpected solo path %q on %s", root, host).
			WithDetail("host", host)
	}

	l = NewLayout(root)
	r.mu.Lock()
	r.layouts[key] = l
	r.mu.Unlock()
	r.logger.Debug().Str("host", host).Str("user", key.user).Str("path", root).Msg("Resolved solo path")
	return l, nil
}
