package attributes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeepMergeConcatenatesSequences(t *testing.T) {
	a := FromMap(map[string]any{"run_list": []any{"recipe[a]"}})
	b := FromMap(map[string]any{"run_list": []any{"recipe[b]"}})
	c := FromMap(map[string]any{"run_list": []any{"recipe[a]"}})

	merged := MergeDocuments(MergeDocuments(a, b), c)
	assert.Equal(t, []string{"recipe[a]", "recipe[b]", "recipe[a]"}, merged.RunList())

	assert.Equal(t, []string{"recipe[a]"}, a.RunList(), "inputs untouched")
}

func TestDeepMerge(t *testing.T) {
	tests := []struct {
		name     string
		a, b     any
		expected any
	}{
		{
			name:     "scalar replaced",
			a:        "old",
			b:        "new",
			expected: "new",
		},
		{
			name:     "string slices concatenate",
			a:        []string{"x"},
			b:        []any{"x", "y"},
			expected: []any{"x", "x", "y"},
		},
		{
			name:     "map replaced by scalar",
			a:        map[string]any{"k": 1},
			b:        2,
			expected: 2,
		},
		{
			name:     "sequence replaced by map",
			a:        []any{1},
			b:        map[string]any{"k": 1},
			expected: map[string]any{"k": 1},
		},
		{
			name: "nested maps recurse",
			a: map[string]any{
				"nginx": map[string]any{"port": 80, "modules": []any{"ssl"}},
			},
			b: map[string]any{
				"nginx": map[string]any{"port": 8080, "modules": []any{"gzip"}, "user": "www"},
			},
			expected: map[string]any{
				"nginx": map[string]any{"port": 8080, "modules": []any{"ssl", "gzip"}, "user": "www"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeepMerge(tt.a, tt.b)
			if doc, ok := got.(*Document); ok {
				got = doc.ToMap()
			}
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestMergeDocumentsKeepsKeyOrder(t *testing.T) {
	a := NewDocument()
	a.Set("first", 1)
	a.Set("second", 2)
	b := NewDocument()
	b.Set("third", 3)
	b.Set("first", 10)

	merged := MergeDocuments(a, b)
	assert.Equal(t, []string{"first", "second", "third"}, merged.Keys())
	v, _ := merged.Get("first")
	assert.Equal(t, 10, v)
}
