package attributes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"slices"
)

// Document is a mapping that remembers key insertion order
type Document struct {
	keys   []string
	values map[string]any
}

// NewDocument returns an empty document
func NewDocument() *Document {
	return &Document{values: map[string]any{}}
}

// FromMap converts m into a document. Map keys carry no order so they are
// sorted; nested maps and slices are converted too.
func FromMap(m map[string]any) *Document {
	d := NewDocument()
	for _, k := range sortedKeys(m) {
		d.Set(k, normalize(m[k]))
	}
	return d
}

// Set stores value under key, keeping the position of an existing key
func (d *Document) Set(key string, value any) {
	if d.values == nil {
		d.values = map[string]any{}
	}
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = value
}

// Get returns the value under key
func (d *Document) Get(key string) (any, bool) {
	if d == nil {
		return nil, false
	}
	v, ok := d.values[key]
	return v, ok
}

// Delete removes key
func (d *Document) Delete(key string) {
	if _, ok := d.values[key]; !ok {
		return
	}
	delete(d.values, key)
	d.keys = slices.DeleteFunc(d.keys, func(k string) bool { return k == key })
}

// Keys returns the keys in insertion order
func (d *Document) Keys() []string {
	if d == nil {
		return nil
	}
	return slices.Clone(d.keys)
}

// Len returns the number of keys
func (d *Document) Len() int {
	if d == nil {
		return 0
	}
	return len(d.keys)
}

// Clone returns a deep copy
func (d *Document) Clone() *Document {
	c := NewDocument()
	if d == nil {
		return c
	}
	for _, k := range d.keys {
		c.Set(k, cloneValue(d.values[k]))
	}
	return c
}

// ToMap converts the document into plain maps and slices
func (d *Document) ToMap() map[string]any {
	m := make(map[string]any, d.Len())
	if d == nil {
		return m
	}
	for _, k := range d.keys {
		m[k] = plain(d.values[k])
	}
	return m
}

// RunList returns the "run_list" entries as strings
func (d *Document) RunList() []string {
	v, ok := d.Get(RunListKey)
	if !ok {
		return nil
	}
	list, _ := v.([]any)
	out := make([]string, 0, len(list))
	for _, item := range list {
		out = append(out, fmt.Sprint(item))
	}
	return out
}

// MarshalJSON writes keys in insertion order
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if d != nil {
		for i, k := range d.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeValue(&buf, k); err != nil {
				return nil, err
			}
			buf.WriteByte(':')
			if err := encodeValue(&buf, d.values[k]); err != nil {
				return nil, err
			}
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func encodeValue(buf *bytes.Buffer, v any) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}

// UnmarshalJSON reads an object, keeping the order its keys appear in
func (d *Document) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected a JSON object, got %v", tok)
	}
	doc, err := decodeObject(dec)
	if err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("unexpected data after JSON object")
	}
	*d = *doc
	return nil
}

func decodeObject(dec *json.Decoder) (*Document, error) {
	doc := NewDocument()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", tok)
		}
		value, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		doc.Set(key, value)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return doc, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			list := []any{}
			for dec.More() {
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				list = append(list, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return list, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %v", t)
		}
	default:
		return t, nil
	}
}

// normalize turns maps into documents and every slice into []any
func normalize(v any) any {
	switch t := v.(type) {
	case *Document:
		return t.Clone()
	case map[string]any:
		return FromMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalize(item)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = item
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = FromMap(item)
		}
		return out
	default:
		return v
	}
}

func cloneValue(v any) any {
	return normalize(v)
}

func plain(v any) any {
	switch t := v.(type) {
	case *Document:
		return t.ToMap()
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = plain(item)
		}
		return out
	default:
		return v
	}
}
