// Package inventory resolves which hosts belong to which roles.
package inventory

import (
	"slices"

	"github.com/arthur-debert/solodeploy/pkg/config"
	"github.com/arthur-debert/solodeploy/pkg/errors"
)

// Inventory answers role membership questions
type Inventory interface {
	Hosts() []string
	Roles() []string
	RolesFor(host string) []string
	HostsFor(role string) []string
}

// Static is an Inventory built once from configuration. Order follows
// declaration order: hosts from [[hosts]] first, then role members.
type Static struct {
	hosts   []string
	roles   []string
	members map[string][]string
}

// New builds an inventory from roles and hosts. A host joins a role when
// either side names the other.
func New(roles []config.Role, hosts []config.Host) *Static {
	inv := &Static{members: map[string][]string{}}

	for _, h := range hosts {
		inv.addHost(h.Name)
	}
	for _, r := range roles {
		inv.roles = append(inv.roles, r.Name)
		for _, h := range r.Hosts {
			inv.addHost(h)
			inv.join(r.Name, h)
		}
	}
	for _, h := range hosts {
		for _, r := range h.Roles {
			inv.join(r, h.Name)
		}
	}
	return inv
}

// FromConfig builds an inventory from cfg
func FromConfig(cfg *config.Config) *Static {
	return New(cfg.Roles, cfg.Hosts)
}

func (s *Static) addHost(name string) {
	if !slices.Contains(s.hosts, name) {
		s.hosts = append(s.hosts, name)
	}
}

func (s *Static) join(role, host string) {
	if !slices.Contains(s.members[role], host) {
		s.members[role] = append(s.members[role], host)
	}
}

// Hosts returns every known host
func (s *Static) Hosts() []string { return slices.Clone(s.hosts) }

// Roles returns every declared role
func (s *Static) Roles() []string { return slices.Clone(s.roles) }

// HostsFor returns the members of role
func (s *Static) HostsFor(role string) []string { return slices.Clone(s.members[role]) }

// RolesFor returns the roles host belongs to, in role declaration order
func (s *Static) RolesFor(host string) []string {
	var roles []string
	for _, r := range s.roles {
		if slices.Contains(s.members[r], host) {
			roles = append(roles, r)
		}
	}
	return roles
}

// Select narrows the inventory to the named hosts and the members of the
// named roles. With no filters every host is selected.
func Select(inv Inventory, hosts, roles []string) ([]string, error) {
	if len(hosts) == 0 && len(roles) == 0 {
		return inv.Hosts(), nil
	}

	known := inv.Hosts()
	wanted := map[string]bool{}
	for _, h := range hosts {
		if !slices.Contains(known, h) {
			return nil, errors.Newf(errors.ErrNotFound, "unknown host %q", h).WithDetail("host", h)
		}
		wanted[h] = true
	}
	for _, r := range roles {
		if !slices.Contains(inv.Roles(), r) {
			return nil, errors.Newf(errors.ErrNotFound, "unknown role %q", r).WithDetail("role", r)
		}
		for _, h := range inv.HostsFor(r) {
			wanted[h] = true
		}
	}

	var selected []string
	for _, h := range known {
		if wanted[h] {
			selected = append(selected, h)
		}
	}
	return selected, nil
}
