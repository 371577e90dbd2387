package config

import (
	"context"
	"fmt"
	"strings"
)

// Setting names a persisted boolean preference.
type Setting string

const (
	WideScreen        Setting = "wideScreen"
	FullWindow        Setting = "fullWindow"
	FullScreen        Setting = "fullScreen"
	FullerWindows     Setting = "fullerWindows"
	ExtensionDisabled Setting = "extensionDisabled"
	TCBDisabled       Setting = "tcbDisabled"
	HiddenHeader      Setting = "hiddenHeader"
	HiddenFooter      Setting = "hiddenFooter"
	NotifDisabled     Setting = "notifDisabled"
	NCBDisabled       Setting = "ncbDisabled"
)

// DefaultKeyPrefix namespaces every persisted key as <prefix>_<setting>.
const DefaultKeyPrefix = "chatgptWidescreen"

// AllSettings lists every known setting in display order.
var AllSettings = []Setting{
	WideScreen, FullWindow, FullScreen, FullerWindows, ExtensionDisabled,
	TCBDisabled, HiddenHeader, HiddenFooter, NotifDisabled, NCBDisabled,
}

// Settings is the namespaced view of a Store used by every context.
type Settings struct {
	store  Store
	prefix string
}

// NewSettings wraps store. An empty prefix uses DefaultKeyPrefix.
func NewSettings(store Store, prefix string) *Settings {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Settings{store: store, prefix: prefix}
}

// Key returns the persisted key for name.
func (s *Settings) Key(name Setting) string {
	return s.prefix + "_" + string(name)
}

// Load reads the named settings. Absent keys are false.
func (s *Settings) Load(ctx context.Context, names ...Setting) (map[Setting]bool, error) {
	keys := make([]string, len(names))
	for i, name := range names {
		keys[i] = s.Key(name)
	}

	values, err := s.store.Get(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	out := make(map[Setting]bool, len(names))
	for i, name := range names {
		out[name] = values[keys[i]]
	}
	return out, nil
}

// Save persists one setting.
func (s *Settings) Save(ctx context.Context, name Setting, value bool) error {
	if err := s.store.Set(ctx, s.Key(name), value); err != nil {
		return fmt.Errorf("failed to save %s: %w", name, err)
	}
	return nil
}

// Watch reports changes to keys under this prefix.
func (s *Settings) Watch(fn func(name Setting, value bool)) func() {
	prefix := s.prefix + "_"
	return s.store.Watch(func(c Change) {
		if !strings.HasPrefix(c.Key, prefix) {
			return
		}
		fn(Setting(strings.TrimPrefix(c.Key, prefix)), c.Value)
	})
}

// Store returns the underlying store.
func (s *Settings) Store() Store {
	return s.store
}
