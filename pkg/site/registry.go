package site

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"
)

//go:embed sites.yaml
var defaultSites []byte

// ErrUnsupportedHost is returned by Lookup when no descriptor matches.
var ErrUnsupportedHost = errors.New("unsupported host")

type entry struct {
	descriptor *Descriptor
	patterns   []glob.Glob
}

// Registry resolves a host name to its Descriptor.
type Registry struct {
	entries []entry
}

type sitesFile struct {
	Sites []*Descriptor `yaml:"sites"`
}

// DefaultRegistry returns the built-in descriptors.
func DefaultRegistry() *Registry {
	reg, err := ParseRegistry(defaultSites)
	if err != nil {
		panic(fmt.Sprintf("embedded sites.yaml is invalid: %v", err))
	}
	return reg
}

// LoadRegistry reads descriptors from a YAML file.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sites file: %w", err)
	}
	return ParseRegistry(data)
}

// ParseRegistry builds a registry from YAML. Host patterns use glob syntax
// with '.' as separator, so "*.chatgpt.com" matches one label.
func ParseRegistry(data []byte) (*Registry, error) {
	var file sitesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse sites: %w", err)
	}

	reg := &Registry{}
	for _, d := range file.Sites {
		if d.SiteName == "" {
			return nil, fmt.Errorf("site without name")
		}
		if len(d.Hosts) == 0 {
			return nil, fmt.Errorf("site %q has no hosts", d.SiteName)
		}
		if d.NativeToggle && d.Anchors.NativeToggle == "" {
			return nil, fmt.Errorf("site %q declares a native toggle without a selector", d.SiteName)
		}

		e := entry{descriptor: d}
		for _, host := range d.Hosts {
			g, err := glob.Compile(strings.ToLower(host), '.')
			if err != nil {
				return nil, fmt.Errorf("invalid host pattern '%s' for %s: %w", host, d.SiteName, err)
			}
			e.patterns = append(e.patterns, g)
		}
		reg.entries = append(reg.entries, e)
	}
	return reg, nil
}

// Lookup returns the first descriptor whose host patterns match host.
func (r *Registry) Lookup(host string) (*Descriptor, error) {
	host = strings.ToLower(host)
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}

	for _, e := range r.entries {
		for _, p := range e.patterns {
			if p.Match(host) {
				return e.descriptor, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedHost, host)
}

// Names lists the registered site names in file order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		names = append(names, e.descriptor.SiteName)
	}
	return names
}
