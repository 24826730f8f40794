package attributes

import (
	"context"

	"github.com/arthur-debert/solodeploy/pkg/config"
	"github.com/arthur-debert/solodeploy/pkg/logging"
	"github.com/rs/zerolog"
)

// RunListKey holds the ordered recipe and role references
const RunListKey = "run_list"

// Role document markers understood by chef-solo
const (
	RoleChefType  = "role"
	RoleJSONClass = "Chef::Role"
)

// Settings feed an Engine
type Settings struct {
	Variables *Variables
	Include   []string
	Exclude   []string
	Global    map[string]any
	RunList   []string
	Roles     []config.Role
	Hosts     []config.Host
	// Overrides are merged on top of the matching layer
	Overrides *Overrides
}

type roleLayer struct {
	attributes     *Document
	hostAttributes *Document
	runList        []string
}

type hostLayer struct {
	attributes *Document
	runList    []string
}

// Engine builds host and role documents
type Engine struct {
	variables *Variables
	filter    *Filter
	global    *Document
	runList   []string
	roles     map[string]roleLayer
	hosts     map[string]hostLayer
	logger    zerolog.Logger
}

// NewEngine prepares the layers in s
func NewEngine(s Settings) (*Engine, error) {
	filter, err := NewFilter(s.Include, s.Exclude)
	if err != nil {
		return nil, err
	}
	overrides := s.Overrides
	if overrides == nil {
		overrides = &Overrides{}
	}

	e := &Engine{
		variables: s.Variables,
		filter:    filter,
		global:    MergeDocuments(FromMap(s.Global), overrides.Global),
		runList:   s.RunList,
		roles:     map[string]roleLayer{},
		hosts:     map[string]hostLayer{},
		logger:    logging.GetLogger("attributes"),
	}
	if e.variables == nil {
		e.variables = NewVariables()
	}

	for _, r := range s.Roles {
		e.roles[r.Name] = roleLayer{
			attributes:     MergeDocuments(FromMap(r.Attributes), overrides.Roles[r.Name]),
			hostAttributes: FromMap(r.HostAttributes),
			runList:        r.RunList,
		}
	}
	for name, doc := range overrides.Roles {
		if _, ok := e.roles[name]; !ok {
			e.roles[name] = roleLayer{attributes: doc.Clone(), hostAttributes: NewDocument()}
		}
	}
	for _, h := range s.Hosts {
		e.hosts[h.Name] = hostLayer{
			attributes: MergeDocuments(FromMap(h.Attributes), overrides.Hosts[h.Name]),
			runList:    h.RunList,
		}
	}
	for name, doc := range overrides.Hosts {
		if _, ok := e.hosts[name]; !ok {
			e.hosts[name] = hostLayer{attributes: doc.Clone()}
		}
	}
	return e, nil
}

// HostDocument builds the document for host as a member of roles. A non-nil
// explicit run list replaces the composed one.
func (e *Engine) HostDocument(ctx context.Context, host string, roles []string, explicit []string) (*Document, error) {
	doc, err := e.variables.Baseline(ctx, host, e.filter)
	if err != nil {
		return nil, err
	}
	doc = MergeDocuments(doc, e.global)
	for _, r := range roles {
		doc = MergeDocuments(doc, e.roles[r].hostAttributes)
	}
	h := e.hosts[host]
	doc = MergeDocuments(doc, h.attributes)

	var runList []string
	if explicit != nil {
		runList = append(runList, explicit...)
	} else {
		runList = append(runList, e.runList...)
		for _, r := range roles {
			runList = append(runList, e.roles[r].runList...)
		}
		runList = append(runList, h.runList...)
		for _, r := range roles {
			runList = append(runList, "role["+r+"]")
		}
	}
	doc.Delete(RunListKey)
	doc.Set(RunListKey, normalize(runList))

	e.logger.Debug().Str("host", host).Strs("roles", roles).Strs("run_list", runList).Msg("Built host document")
	return doc, nil
}

// RoleDocument builds the chef role document for role. Only the role's own
// attributes and run list appear in it.
func (e *Engine) RoleDocument(role string) *Document {
	r := e.roles[role]
	doc := NewDocument()
	doc.Set("name", role)
	doc.Set("chef_type", RoleChefType)
	doc.Set("json_class", RoleJSONClass)
	doc.Set("default_attributes", r.attributes.Clone())
	doc.Set(RunListKey, normalize(append([]string{}, r.runList...)))
	return doc
}

// Combined merges the documents of roles and then of hosts, each host
// taken as a member of roles
func (e *Engine) Combined(ctx context.Context, hosts, roles []string) (*Document, error) {
	doc := NewDocument()
	for _, r := range roles {
		doc = MergeDocuments(doc, e.RoleDocument(r))
	}
	for _, h := range hosts {
		hd, err := e.HostDocument(ctx, h, roles, nil)
		if err != nil {
			return nil, err
		}
		doc = MergeDocuments(doc, hd)
	}
	return doc, nil
}

// ConfigSettings maps cfg's attribute, role and host tables onto Settings
func ConfigSettings(cfg *config.Config, vars *Variables, overrides *Overrides) Settings {
	return Settings{
		Variables: vars,
		Include:   cfg.Attributes.Include,
		Exclude:   cfg.Attributes.Exclude,
		Global:    cfg.Attributes.Global,
		RunList:   cfg.Attributes.RunList,
		Roles:     cfg.Roles,
		Hosts:     cfg.Hosts,
		Overrides: overrides,
	}
}
