package config

import (
	"time"

	"github.com/arthur-debert/solodeploy/pkg/identity"
)

// Transports understood by deploy.transport
const (
	TransportOpenSSH = "openssh"
	TransportLocal   = "local"
)

// Config is the fully merged solodeploy configuration
type Config struct {
	Application string                 `koanf:"application"`
	Deploy      Deploy                 `koanf:"deploy"`
	Bootstrap   Bootstrap              `koanf:"bootstrap"`
	Solo        Solo                   `koanf:"solo"`
	Repository  Repository             `koanf:"repository"`
	Cookbooks   RepoGroup              `koanf:"cookbooks"`
	DataBags    RepoGroup              `koanf:"data_bags"`
	Attributes  Attributes             `koanf:"attributes"`
	Variables   map[string]interface{} `koanf:"variables"`
	Roles       []Role                 `koanf:"roles"`
	Hosts       []Host                 `koanf:"hosts"`

	// ProjectRoot is the directory relative paths resolve against.
	ProjectRoot string `koanf:"-"`
	// SourceFile is the project file that was loaded, if any.
	SourceFile string `koanf:"-"`
}

// Deploy holds the normal deploy identity and transport settings
type Deploy struct {
	User        string              `koanf:"user"`
	Password    string              `koanf:"password"`
	SSHOptions  identity.SSHOptions `koanf:"ssh_options"`
	Transport   string              `koanf:"transport"`
	Concurrency int                 `koanf:"concurrency"`
	UseSudo     bool                `koanf:"use_sudo"`
	Timeout     time.Duration       `koanf:"timeout"`
}

// Bootstrap holds the bootstrap identity. Unset fields fall back to Deploy.
type Bootstrap struct {
	Enabled     bool                 `koanf:"enabled"`
	User        string               `koanf:"user"`
	Password    string               `koanf:"password"`
	SSHOptions  *identity.SSHOptions `koanf:"ssh_options"`
	UsePassword *bool                `koanf:"use_password"`
}

// Solo holds the remote chef-solo layout and tool settings
type Solo struct {
	Path          string   `koanf:"path"`
	Version       string   `koanf:"version"`
	UseBundler    bool     `koanf:"use_bundler"`
	Cmd           string   `koanf:"cmd"`
	Gem           string   `koanf:"gem"`
	Options       []string `koanf:"options"`
	BundleOptions []string `koanf:"bundle_options"`

	// Deprecated: use bootstrap.user
	User string `koanf:"user"`
	// Deprecated: use bootstrap.ssh_options
	SSHOptions *identity.SSHOptions `koanf:"ssh_options"`
}

// Repository holds settings shared by every fetched repository
type Repository struct {
	Cache   string   `koanf:"cache"`
	Exclude []string `koanf:"exclude"`
}

// RepoGroup configures one artifact group, cookbooks or data bags
type RepoGroup struct {
	SCM        string   `koanf:"scm"`
	Repository string   `koanf:"repository"`
	Revision   string   `koanf:"revision"`
	Subdir     string   `koanf:"subdir"`
	Exclude    []string `koanf:"exclude"`
	// Name of the implicit repository when several entities are deployed
	Name string `koanf:"name"`
	// SingleName deploys the implicit repository as one named entity
	SingleName string      `koanf:"single_name"`
	Repos      []RepoEntry `koanf:"repos"`
}

// RepoEntry is one explicitly configured repository of a group
type RepoEntry struct {
	Name       string   `koanf:"name"`
	SCM        string   `koanf:"scm"`
	Repository string   `koanf:"repository"`
	Revision   string   `koanf:"revision"`
	Subdirs    []string `koanf:"subdirs"`
	Exclude    []string `koanf:"exclude"`
	EntityName string   `koanf:"entity_name"`

	// Deprecated per-group aliases
	Cookbooks        string   `koanf:"cookbooks"`
	CookbooksExclude []string `koanf:"cookbooks_exclude"`
	DataBags         string   `koanf:"data_bags"`
	DataBagsExclude  []string `koanf:"data_bags_exclude"`
}

// Attributes configures the attribute documents
type Attributes struct {
	Global     map[string]interface{} `koanf:"global"`
	RunList    []string               `koanf:"run_list"`
	Include    []string               `koanf:"include"`
	Exclude    []string               `koanf:"exclude"`
	PrettyJSON bool                   `koanf:"pretty_json"`
	Dir        string                 `koanf:"dir"`
}

// Role declares a role, its members and its attributes
type Role struct {
	Name  string   `koanf:"name"`
	Hosts []string `koanf:"hosts"`
	// Attributes become the role document's default_attributes
	Attributes map[string]interface{} `koanf:"attributes"`
	// HostAttributes are merged into the documents of member hosts
	HostAttributes map[string]interface{} `koanf:"host_attributes"`
	RunList        []string               `koanf:"run_list"`
}

// Host declares per-host attributes and run list
type Host struct {
	Name       string                 `koanf:"name"`
	Roles      []string               `koanf:"roles"`
	Attributes map[string]interface{} `koanf:"attributes"`
	RunList    []string               `koanf:"run_list"`
}
