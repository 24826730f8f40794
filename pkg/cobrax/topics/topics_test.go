package topics

import (
	"bytes"
	"testing"
	"testing/fstest"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"topics/bootstrap.md":         {Data: []byte("# Bootstrap\n\nFirst contact.")},
		"topics/option-hosts.txt":     {Data: []byte("Limit hosts.")},
		"topics/layout.txxt":          {Data: []byte("Remote layout")},
		"topics/nested/variables.txt": {Data: []byte("Variables.")},
		"topics/ignored.json":         {Data: []byte("{}")},
	}
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name       string
		extensions []string
		present    []string
		absent     []string
	}{
		{
			name:    "default extensions",
			present: []string{"bootstrap", "option-hosts", "variables"},
			absent:  []string{"layout", "ignored"},
		},
		{
			name:       "custom extensions",
			extensions: []string{".txt", ".md", ".txxt"},
			present:    []string{"bootstrap", "layout"},
			absent:     []string{"ignored"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(testFS(), "topics", Options{Extensions: tt.extensions})
			require.NoError(t, m.Load())
			for _, name := range tt.present {
				_, ok := m.Get(name)
				assert.True(t, ok, name)
			}
			for _, name := range tt.absent {
				_, ok := m.Get(name)
				assert.False(t, ok, name)
			}
		})
	}
}

func TestGetFlagStyle(t *testing.T) {
	m := New(testFS(), "topics", Options{})
	require.NoError(t, m.Load())

	topic, ok := m.Get("--hosts")
	require.True(t, ok)
	assert.Equal(t, "Limit hosts.", topic.Content)
	assert.Equal(t, ".txt", topic.Format())
}

func TestLoadMissingDir(t *testing.T) {
	m := New(fstest.MapFS{}, "topics", Options{})
	require.NoError(t, m.Load())
	assert.Empty(t, m.Names())
}

func TestList(t *testing.T) {
	m := New(testFS(), "topics", Options{})
	require.NoError(t, m.Load())

	var buf bytes.Buffer
	m.List(&buf, "solodeploy")
	out := buf.String()
	assert.Contains(t, out, "General topics:\n  bootstrap\n  variables\n")
	assert.Contains(t, out, "Option topics:\n  --hosts\n")
	assert.Contains(t, out, "solodeploy help <topic>")
}

func TestInitializeHelpCommand(t *testing.T) {
	root := &cobra.Command{Use: "solodeploy"}
	root.AddCommand(&cobra.Command{Use: "run", Short: "Run chef-solo", Run: func(*cobra.Command, []string) {}})

	_, err := Initialize(root, testFS(), "topics", Options{})
	require.NoError(t, err)

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetArgs([]string{"help", "bootstrap"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "# Bootstrap\n\nFirst contact.", buf.String())

	buf.Reset()
	root.SetArgs([]string{"help", "topics"})
	require.NoError(t, root.Execute())
	assert.Contains(t, buf.String(), "Available help topics:")
}

type formatRenderer struct{}

func (formatRenderer) Render(content, format string) string { return format + ":" + content }

func TestCustomRenderer(t *testing.T) {
	m := New(testFS(), "topics", Options{Renderer: formatRenderer{}})
	require.NoError(t, m.Load())

	topic, ok := m.Get("bootstrap")
	require.True(t, ok)
	assert.Equal(t, ".md:# Bootstrap\n\nFirst contact.", m.Render(topic))
}

func TestGlamourRendererPassesThroughPlainText(t *testing.T) {
	r := NewGlamourRenderer()
	assert.Equal(t, "plain", r.Render("plain", ".txt"))
	assert.NotEmpty(t, r.Render("# Title", ".md"))
}
