package repository

import (
	"path/filepath"
	"slices"
)

// Group is a kind of artifact staged onto hosts
type Group string

const (
	GroupCookbooks Group = "cookbooks"
	GroupDataBags  Group = "data_bags"
)

// Plural returns the group's plural name, used for paths and config keys
func (g Group) Plural() string { return string(g) }

// Singular returns the group's singular name
func (g Group) Singular() string {
	switch g {
	case GroupCookbooks:
		return "cookbook"
	case GroupDataBags:
		return "data_bag"
	default:
		return string(g)
	}
}

// CacheRoot returns the cache directory for the group below cache
func (g Group) CacheRoot(cache string) string {
	return filepath.Join(cache, g.Plural()+"-cache")
}

// WholeTree as a subdirectory means the repository root
const WholeTree = "/"

// DefaultExclude are version-control metadata directories
var DefaultExclude = []string{".hg", ".git", ".svn"}

// Descriptor is a fully specified repository
type Descriptor struct {
	Name     string
	Group    Group
	Kind     string
	Location string
	// Revision is empty for the source's head
	Revision string
	// Subdirs are copied in order; WholeTree means the repository root
	Subdirs []string
	// Exclude holds gitignore-style patterns skipped while copying
	Exclude []string
	// EntityName nests the installed content one level deeper
	EntityName string
	// CachePath is the working copy location for versioned kinds
	CachePath string
}

// Clone returns a deep copy
func (d Descriptor) Clone() Descriptor {
	c := d
	c.Subdirs = slices.Clone(d.Subdirs)
	c.Exclude = slices.Clone(d.Exclude)
	return c
}

// InstallPath returns where the descriptor's content lands below root
func (d Descriptor) InstallPath(root string) string {
	if d.EntityName == "" {
		return root
	}
	return filepath.Join(root, d.EntityName)
}

// RawDescriptor is repository configuration before defaults are applied
type RawDescriptor struct {
	Name     string
	Kind     string
	Location string
	Revision string
	Subdirs  []string
	Exclude  []string

	// LegacySubdir is the deprecated per-group subdirectory key
	LegacySubdir string
	// LegacyExclude is the deprecated per-group exclude key
	LegacyExclude []string

	EntityName string
}

// GroupDefaults apply to every descriptor of a group
type GroupDefaults struct {
	Group    Group
	Kind     string
	Location string
	Revision string
	Subdir   string
	Exclude  []string
	// CacheRoot holds one working copy per descriptor name
	CacheRoot string
}
