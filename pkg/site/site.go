// Package site describes what each supported chat host can do.
//
// The engine never branches on a site name. Every component depends on the
// Adapter interface, which exposes capability flags and the DOM selectors the
// presentation and observation layers anchor to. Descriptors are data: the
// built-in table is embedded YAML and can be replaced by a user file.
package site

import (
	"time"

	"github.com/entrhq/widescreen/pkg/config"
)

// Selectors are the DOM anchors of a host page.
type Selectors struct {
	Input        string `yaml:"input"`
	Sidebar      string `yaml:"sidebar"`
	Header       string `yaml:"header"`
	Footer       string `yaml:"footer"`
	SendButton   string `yaml:"send_button"`
	NativeToggle string `yaml:"native_toggle"`
	NewChat      string `yaml:"new_chat"`
	Login        string `yaml:"login"`
}

// Styles are the CSS bodies injected for each self-managed mode.
type Styles struct {
	WideScreen string `yaml:"wide_screen"`
	FullWindow string `yaml:"full_window"`
}

// Adapter is the read-only capability view consumed by the engine.
type Adapter interface {
	Name() string
	HasSidebar() bool
	HasNativeFullWindowToggle() bool
	Selectors() Selectors
	Styles() Styles
	Features() []config.Setting
}

// Descriptor is the data form of an Adapter.
type Descriptor struct {
	SiteName      string           `yaml:"name"`
	Hosts         []string         `yaml:"hosts"`
	Sidebar       bool             `yaml:"has_sidebar"`
	NativeToggle  bool             `yaml:"has_native_full_window_toggle"`
	Anchors       Selectors        `yaml:"selectors"`
	ModeStyles    Styles           `yaml:"styles"`
	AvailFeatures []config.Setting `yaml:"features"`

	// SidebarSettle is how long the host animates its sidebar; the state
	// is read only after it.
	SidebarSettle time.Duration `yaml:"sidebar_settle"`
}

func (d *Descriptor) Name() string                    { return d.SiteName }
func (d *Descriptor) HasSidebar() bool                { return d.Sidebar }
func (d *Descriptor) HasNativeFullWindowToggle() bool { return d.NativeToggle }
func (d *Descriptor) Selectors() Selectors            { return d.Anchors }
func (d *Descriptor) Styles() Styles                  { return d.ModeStyles }

// Features returns the settings this site loads. An empty list means all.
func (d *Descriptor) Features() []config.Setting {
	if len(d.AvailFeatures) == 0 {
		return config.AllSettings
	}
	return d.AvailFeatures
}

// WithSidebar returns a copy of d with the sidebar capability overridden.
// Used after the startup probe decides whether the logged-in layout exists.
func (d *Descriptor) WithSidebar(has bool) *Descriptor {
	clone := *d
	clone.Sidebar = has
	if !has {
		clone.NativeToggle = false
	}
	return &clone
}

// WithFooter returns a copy of d whose footer selector is selector. An empty
// selector leaves the footer untouched by the tweaks stylesheet.
func (d *Descriptor) WithFooter(selector string) *Descriptor {
	clone := *d
	clone.Anchors.Footer = selector
	return &clone
}
