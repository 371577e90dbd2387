package site

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/entrhq/widescreen/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	reg := DefaultRegistry()
	assert.Equal(t, []string{"chatgpt", "poe", "perplexity"}, reg.Names())

	tests := []struct {
		host       string
		wantName   string
		wantNative bool
	}{
		{"chatgpt.com", "chatgpt", true},
		{"CHATGPT.com:443", "chatgpt", true},
		{"chat.openai.com", "chatgpt", true},
		{"poe.com", "poe", false},
		{"www.perplexity.ai", "perplexity", true},
	}
	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			d, err := reg.Lookup(tt.host)
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, d.Name())
			assert.Equal(t, tt.wantNative, d.HasNativeFullWindowToggle())
			assert.True(t, d.HasSidebar())
			assert.NotEmpty(t, d.Styles().WideScreen)
			assert.NotEmpty(t, d.Selectors().Input)
		})
	}
}

func TestSidebarSettle(t *testing.T) {
	reg := DefaultRegistry()

	perplexity, err := reg.Lookup("www.perplexity.ai")
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, perplexity.SidebarSettle)
	assert.Equal(t, 500*time.Millisecond, perplexity.WithSidebar(true).SidebarSettle)

	chatgpt, err := reg.Lookup("chatgpt.com")
	require.NoError(t, err)
	assert.Zero(t, chatgpt.SidebarSettle)
}

func TestRegistryLookupUnsupported(t *testing.T) {
	_, err := DefaultRegistry().Lookup("example.com")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedHost))

	// one label only
	_, err = DefaultRegistry().Lookup("a.b.poe.com")
	assert.Error(t, err)
}

func TestParseRegistryValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing name", "sites: [{hosts: [a.com]}]"},
		{"missing hosts", "sites: [{name: a}]"},
		{"native toggle without selector", "sites: [{name: a, hosts: [a.com], has_native_full_window_toggle: true}]"},
		{"bad pattern", "sites: [{name: a, hosts: ['[a.com']}]"},
		{"bad yaml", "sites: [oops"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRegistry([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sites.yaml")
	doc := `
sites:
  - name: local
    hosts: ["localhost"]
    has_sidebar: false
    selectors:
      input: textarea
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	reg, err := LoadRegistry(path)
	require.NoError(t, err)

	d, err := reg.Lookup("localhost:8080")
	require.NoError(t, err)
	assert.False(t, d.HasSidebar())
	assert.Equal(t, config.AllSettings, d.Features(), "empty feature list means all settings")

	_, err = LoadRegistry(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestDescriptorWithSidebar(t *testing.T) {
	d, err := DefaultRegistry().Lookup("chatgpt.com")
	require.NoError(t, err)

	loggedOut := d.WithSidebar(false)
	assert.False(t, loggedOut.HasSidebar())
	assert.False(t, loggedOut.HasNativeFullWindowToggle())
	assert.True(t, d.HasSidebar(), "original descriptor is untouched")
	assert.Contains(t, d.Features(), config.FullWindow)
}
