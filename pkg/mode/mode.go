// Package mode implements the per-tab mode state machine.
//
// Three independent display modes (wide layout, full-window, full-screen)
// are each a two-state machine driven by Toggle/Activate/Deactivate from the
// user and by Sync from observed external changes. The Controller persists
// every reconciled value, applies the fuller-windows derivation and opens a
// short sync window during which self-caused page mutations are ignored by
// the observation bridge.
package mode

import (
	"context"
	"errors"
	"fmt"

	"github.com/entrhq/widescreen/pkg/config"
	"github.com/entrhq/widescreen/pkg/present"
)

// ErrUnknownMode is returned by Parse for names that are not a mode.
var ErrUnknownMode = errors.New("unknown mode")

// Mode is one of the three toggleable display modes.
type Mode string

const (
	WideScreen Mode = "wideScreen"
	FullWindow Mode = "fullWindow"
	FullScreen Mode = "fullScreen"
)

// Modes lists every mode.
var Modes = []Mode{WideScreen, FullWindow, FullScreen}

// Parse resolves a mode name.
func Parse(name string) (Mode, error) {
	for _, m := range Modes {
		if string(m) == name {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, name)
}

func (m Mode) String() string { return string(m) }

// Setting is the persisted preference backing the mode.
func (m Mode) Setting() config.Setting { return config.Setting(m) }

// Button is the injected button reflecting the mode.
func (m Mode) Button() present.ButtonType { return present.ButtonType(m) }

// State is the mode state of one tab context. Values returned by
// Controller.State are snapshots.
type State struct {
	WideScreen bool
	FullWindow bool
	FullScreen bool

	FullerWindows     bool
	ExtensionDisabled bool

	TCBDisabled   bool
	HiddenHeader  bool
	HiddenFooter  bool
	NotifDisabled bool
	NCBDisabled   bool

	// ModeSynced is true for the sync window after a reconciliation.
	ModeSynced bool
	// F11Pressed records that full screen was entered with the platform
	// shortcut and can only be left the same way.
	F11Pressed bool

	// DerivedWide is set while the wide layout is applied by the
	// fuller-windows rule rather than by the user.
	DerivedWide bool
	// WideSuppressed is set when the user turned the wide layout off while
	// full-window stayed on. Cleared when full-window turns off.
	WideSuppressed bool
}

// Active reports the effective value of m. A derived wide layout counts as on.
func (s State) Active(m Mode) bool {
	switch m {
	case WideScreen:
		return s.WideScreen || s.DerivedWide
	case FullWindow:
		return s.FullWindow
	case FullScreen:
		return s.FullScreen
	}
	return false
}

// Tweaks extracts the cosmetic settings.
func (s State) Tweaks() present.Tweaks {
	return present.Tweaks{
		TCBDisabled:   s.TCBDisabled,
		HiddenHeader:  s.HiddenHeader,
		HiddenFooter:  s.HiddenFooter,
		NotifDisabled: s.NotifDisabled,
		NCBDisabled:   s.NCBDisabled,
	}
}

func (s *State) apply(values map[config.Setting]bool) {
	for name, v := range values {
		switch name {
		case config.WideScreen:
			s.WideScreen = v
		case config.FullWindow:
			s.FullWindow = v
		case config.FullerWindows:
			s.FullerWindows = v
		case config.ExtensionDisabled:
			s.ExtensionDisabled = v
		case config.TCBDisabled:
			s.TCBDisabled = v
		case config.HiddenHeader:
			s.HiddenHeader = v
		case config.HiddenFooter:
			s.HiddenFooter = v
		case config.NotifDisabled:
			s.NotifDisabled = v
		case config.NCBDisabled:
			s.NCBDisabled = v
		}
	}
}

// Platform is the browser surface the controller cannot reach through the
// document: the fullscreen API and the computed sidebar layout.
type Platform interface {
	IsFullScreen() bool
	RequestFullScreen(ctx context.Context) error
	ExitFullScreen(ctx context.Context) error
	// SidebarHidden reports whether the host's own sidebar is collapsed.
	SidebarHidden() bool
}
