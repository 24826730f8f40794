// Package attributes computes the JSON documents chef-solo receives.
//
// A host document layers the variable baseline, global attributes, the
// host attributes of each of the host's roles and the host's own
// attributes, then appends the composed run list. Role documents carry
// only the role's default attributes and run list.
//
//	engine, err := attributes.NewEngine(settings)
//	doc, err := engine.HostDocument(ctx, "web1", []string{"app"}, nil)
//	data, err := attributes.Marshal(doc, true)
//
// Documents keep key insertion order through JSON and YAML output.
package attributes
