package repository

import (
	"path/filepath"

	"github.com/arthur-debert/solodeploy/pkg/config"
)

// GroupSettings returns the group's section of cfg
func GroupSettings(cfg *config.Config, g Group) config.RepoGroup {
	if g == GroupDataBags {
		return cfg.DataBags
	}
	return cfg.Cookbooks
}

// DefaultsFor builds the group defaults from cfg. A relative cache is
// resolved against the project root.
func DefaultsFor(cfg *config.Config, g Group) GroupDefaults {
	settings := GroupSettings(cfg, g)

	exclude := settings.Exclude
	if exclude == nil {
		exclude = cfg.Repository.Exclude
	}

	cache := cfg.Repository.Cache
	if cache != "" && !filepath.IsAbs(cache) && cfg.ProjectRoot != "" {
		cache = filepath.Join(cfg.ProjectRoot, cache)
	}

	return GroupDefaults{
		Group:     g,
		Subdir:    settings.Subdir,
		Exclude:   exclude,
		CacheRoot: g.CacheRoot(cache),
	}
}

// DefaultRepos returns the implicit repository used when a group lists no
// repositories. With single_name set the content deploys as one entity.
func DefaultRepos(cfg *config.Config, g Group) []RawDescriptor {
	settings := GroupSettings(cfg, g)
	raw := RawDescriptor{
		Kind:     settings.SCM,
		Location: settings.Repository,
		Revision: settings.Revision,
	}
	if settings.Subdir != "" {
		raw.Subdirs = []string{settings.Subdir}
	}

	switch {
	case settings.SingleName != "":
		raw.Name = settings.SingleName
		raw.EntityName = settings.SingleName
	case settings.Name != "":
		raw.Name = settings.Name
	default:
		raw.Name = cfg.Application
	}
	return []RawDescriptor{raw}
}

// RawFromConfig converts configured repository entries, mapping the
// group's deprecated alias keys
func RawFromConfig(g Group, entries []config.RepoEntry) []RawDescriptor {
	raw := make([]RawDescriptor, 0, len(entries))
	for _, e := range entries {
		r := RawDescriptor{
			Name:       e.Name,
			Kind:       e.SCM,
			Location:   e.Repository,
			Revision:   e.Revision,
			Subdirs:    e.Subdirs,
			Exclude:    e.Exclude,
			EntityName: e.EntityName,
		}
		switch g {
		case GroupCookbooks:
			r.LegacySubdir = e.Cookbooks
			r.LegacyExclude = e.CookbooksExclude
		case GroupDataBags:
			r.LegacySubdir = e.DataBags
			r.LegacyExclude = e.DataBagsExclude
		}
		raw = append(raw, r)
	}
	return raw
}

// ForGroup normalizes the repositories of g from cfg
func ForGroup(cfg *config.Config, g Group) ([]Descriptor, error) {
	settings := GroupSettings(cfg, g)
	raw := RawFromConfig(g, settings.Repos)
	if len(raw) == 0 {
		raw = DefaultRepos(cfg, g)
	}
	return Normalize(raw, DefaultsFor(cfg, g))
}
