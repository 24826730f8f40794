package attributes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/arthur-debert/solodeploy/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Marshal renders doc as JSON, indented by two spaces when pretty
func Marshal(doc *Document, pretty bool) ([]byte, error) {
	data, err := doc.MarshalJSON()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrAttributes, "failed to encode attributes")
	}
	if !pretty {
		return data, nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return nil, errors.Wrap(err, errors.ErrAttributes, "failed to indent attributes")
	}
	return buf.Bytes(), nil
}

// MarshalYAML renders doc as a YAML document
func MarshalYAML(doc *Document) ([]byte, error) {
	node, err := yamlNode(doc)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrAttributes, "failed to encode attributes")
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return nil, errors.Wrap(err, errors.ErrAttributes, "failed to encode attributes")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, errors.ErrAttributes, "failed to encode attributes")
	}
	return buf.Bytes(), nil
}

// MarshalYAML lets yaml.v3 encode documents in key order
func (d *Document) MarshalYAML() (interface{}, error) {
	return yamlNode(d)
}

func yamlNode(v any) (*yaml.Node, error) {
	switch t := v.(type) {
	case *Document:
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		if t == nil {
			return node, nil
		}
		for _, k := range t.keys {
			value, err := yamlNode(t.values[k])
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
				value)
		}
		return node, nil
	case map[string]any:
		return yamlNode(FromMap(t))
	case []any:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range t {
			child, err := yamlNode(item)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, child)
		}
		return node, nil
	case []string:
		return yamlNode(normalize(t))
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return yamlNode(i)
		}
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", t.String())
		}
		return yamlNode(f)
	default:
		node := &yaml.Node{}
		if err := node.Encode(t); err != nil {
			return nil, err
		}
		return node, nil
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
