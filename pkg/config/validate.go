package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/arthur-debert/solodeploy/pkg/errors"
)

var runListEntry = regexp.MustCompile(`^(recipe|role)\[[^\[\]]+\]$`)

// Validate checks the merged configuration for values the deploy cannot use
func Validate(cfg *Config) error {
	var problems []string

	switch cfg.Deploy.Transport {
	case TransportOpenSSH, TransportLocal:
	default:
		problems = append(problems, fmt.Sprintf("deploy.transport %q must be %q or %q",
			cfg.Deploy.Transport, TransportOpenSSH, TransportLocal))
	}

	if cfg.Deploy.Concurrency < 1 {
		problems = append(problems, "deploy.concurrency must be at least 1")
	}

	seenRoles := map[string]bool{}
	for i, role := range cfg.Roles {
		if role.Name == "" {
			problems = append(problems, fmt.Sprintf("roles[%d] has no name", i))
			continue
		}
		if seenRoles[role.Name] {
			problems = append(problems, fmt.Sprintf("role %q declared twice", role.Name))
		}
		seenRoles[role.Name] = true
		problems = append(problems, checkRunList("roles."+role.Name+".run_list", role.RunList)...)
	}

	seenHosts := map[string]bool{}
	for i, host := range cfg.Hosts {
		if host.Name == "" {
			problems = append(problems, fmt.Sprintf("hosts[%d] has no name", i))
			continue
		}
		if seenHosts[host.Name] {
			problems = append(problems, fmt.Sprintf("host %q declared twice", host.Name))
		}
		seenHosts[host.Name] = true
		for _, r := range host.Roles {
			if !seenRoles[r] {
				problems = append(problems, fmt.Sprintf("host %q references unknown role %q", host.Name, r))
			}
		}
		problems = append(problems, checkRunList("hosts."+host.Name+".run_list", host.RunList)...)
	}

	problems = append(problems, checkRunList("attributes.run_list", cfg.Attributes.RunList)...)

	if len(problems) > 0 {
		return errors.Newf(errors.ErrConfigValid, "invalid configuration: %s", strings.Join(problems, "; ")).
			WithDetail("problems", problems)
	}
	return nil
}

func checkRunList(key string, entries []string) []string {
	var problems []string
	for _, e := range entries {
		if !runListEntry.MatchString(e) {
			problems = append(problems, fmt.Sprintf("%s entry %q must look like recipe[name] or role[name]", key, e))
		}
	}
	return problems
}
