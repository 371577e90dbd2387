package mode

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/entrhq/widescreen/pkg/config"
	"github.com/entrhq/widescreen/pkg/logging"
	"github.com/entrhq/widescreen/pkg/present"
	"github.com/entrhq/widescreen/pkg/site"
)

// DefaultSyncWindow is how long self-caused mutations are ignored after a
// reconciliation.
const DefaultSyncWindow = 100 * time.Millisecond

// Options tune a Controller.
type Options struct {
	SyncWindow time.Duration
	Logger     *logging.Logger

	// OnSync, when set, is called after every reconciliation with the
	// observed value.
	OnSync func(m Mode, value bool)
}

// Controller owns the State of one tab. Every operation holds the
// controller lock, which serializes them the way a single event queue would.
type Controller struct {
	mu        sync.Mutex
	state     State
	settings  *config.Settings
	site      site.Adapter
	presenter *present.Presenter
	platform  Platform
	logger    *logging.Logger
	onSync    func(Mode, bool)

	syncWindow time.Duration
	synced     atomic.Bool
	windowMu   sync.Mutex
	windowGen  uint64
	windowT    *time.Timer
}

// New creates a controller. State starts all false until Restore.
func New(settings *config.Settings, adapter site.Adapter, presenter *present.Presenter, platform Platform, opts Options) *Controller {
	if opts.SyncWindow <= 0 {
		opts.SyncWindow = DefaultSyncWindow
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Controller{
		settings:   settings,
		site:       adapter,
		presenter:  presenter,
		platform:   platform,
		logger:     opts.Logger,
		onSync:     opts.OnSync,
		syncWindow: opts.SyncWindow,
	}
}

// SetSite replaces the capability view after the startup probe.
func (c *Controller) SetSite(adapter site.Adapter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.site = adapter
	c.presenter.SetSite(adapter)
}

// Site returns the current capability view.
func (c *Controller) Site() site.Adapter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.site
}

// State returns a snapshot of the tab state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.state
	s.ModeSynced = c.synced.Load()
	return s
}

// IsActive reports the effective value of m.
func (c *Controller) IsActive(m Mode) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Active(m)
}

// Disabled reports the master switch.
func (c *Controller) Disabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.ExtensionDisabled
}

// ModeSynced reports whether a reconciliation happened within the sync
// window. It does not take the controller lock, so observers may call it
// while an operation is in flight.
func (c *Controller) ModeSynced() bool {
	return c.synced.Load()
}

// NoteF11Pressed records an F11 keypress made while not in full screen.
func (c *Controller) NoteF11Pressed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.FullScreen {
		c.state.F11Pressed = true
	}
}

// Toggle flips m, or sets it to explicit. Asking for the value m already
// has is a no-op without notification.
func (c *Controller) Toggle(ctx context.Context, m Mode, explicit ...present.VisualState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.ExtensionDisabled {
		c.logger.Debugf("toggle %s ignored while disabled", m)
		return
	}

	current := c.state.Active(m)
	target := !current
	if len(explicit) > 0 {
		target = explicit[0] == present.On
		if target == current {
			c.logger.Debugf("toggle %s %s: already there", m, explicit[0])
			return
		}
	}

	if target {
		c.activate(ctx, m, true)
	} else {
		c.deactivate(ctx, m, true)
	}
}

// Activate turns m on.
func (c *Controller) Activate(ctx context.Context, m Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activate(ctx, m, true)
}

// Deactivate turns m off.
func (c *Controller) Deactivate(ctx context.Context, m Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deactivate(ctx, m, true)
}

func (c *Controller) native() bool {
	return c.site.HasSidebar() && c.site.HasNativeFullWindowToggle()
}

func (c *Controller) activate(ctx context.Context, m Mode, notify bool) {
	switch m {
	case WideScreen:
		c.state.WideSuppressed = false
		c.presenter.ApplyStylesheet(string(WideScreen), true)
		c.sync(ctx, WideScreen, notify)

	case FullWindow:
		if !c.site.HasSidebar() {
			c.logger.Debugf("full-window unavailable: %s has no sidebar", c.site.Name())
			return
		}
		// the native control reports back through Sync; a fallback
		// stylesheet already in place keeps ownership of the mode
		fallback := c.presenter.HasStylesheet(string(FullWindow))
		if !fallback && c.native() && c.presenter.ClickNativeToggle() {
			return
		}
		c.presenter.ApplyStylesheet(string(FullWindow), true)
		c.sync(ctx, FullWindow, notify)

	case FullScreen:
		if err := c.platform.RequestFullScreen(ctx); err != nil {
			c.logger.Warnf("failed to enter full screen: %v", err)
		}
	}
}

func (c *Controller) deactivate(ctx context.Context, m Mode, notify bool) {
	switch m {
	case WideScreen:
		if c.state.FullWindow {
			c.state.WideSuppressed = true
		}
		c.presenter.ApplyStylesheet(string(WideScreen), false)
		c.sync(ctx, WideScreen, notify)

	case FullWindow:
		if !c.site.HasSidebar() {
			return
		}
		// whichever mechanism turned full-window on turns it off
		fallback := c.presenter.HasStylesheet(string(FullWindow))
		if !fallback && c.native() && c.presenter.ClickNativeToggle() {
			return
		}
		c.presenter.ApplyStylesheet(string(FullWindow), false)
		c.sync(ctx, FullWindow, notify)

	case FullScreen:
		msgs := c.presenter.Messages()
		if c.state.F11Pressed {
			c.presenter.Alert(present.AlertOptions{
				Title:   msgs.Get(present.KeyPressF11),
				Message: msgs.Get(present.KeyF11Reason) + ".",
			})
			return
		}
		if err := c.platform.ExitFullScreen(ctx); err != nil {
			c.logger.Errorf("failed to exit full screen: %v", err)
			c.presenter.Alert(present.AlertOptions{
				Title:   msgs.Get(present.KeyExitFailed),
				Message: msgs.Get(present.KeyPressF11) + ".",
			})
		}
	}
}

// observed reads the external signal for m. The store is canonical; these
// reads only detect what changed.
func (c *Controller) observed(m Mode) bool {
	switch m {
	case WideScreen:
		return c.presenter.HasStylesheet(string(WideScreen))
	case FullWindow:
		if !c.site.HasSidebar() {
			return false
		}
		if c.native() && !c.presenter.HasStylesheet(string(FullWindow)) {
			return c.platform.SidebarHidden()
		}
		return c.presenter.HasStylesheet(string(FullWindow))
	case FullScreen:
		return c.platform.IsFullScreen()
	}
	return false
}

// Diverged reports whether the stored value of m differs from its external
// signal, i.e. whether a Sync would change anything.
func (c *Controller) Diverged(m Mode) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Active(m) != c.observed(m)
}

// Sync reconciles m with its external signal after an observed change.
func (c *Controller) Sync(ctx context.Context, m Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sync(ctx, m, true)
}

func (c *Controller) sync(ctx context.Context, m Mode, notify bool) {
	value := c.observed(m)
	previous := c.state.Active(m)

	switch m {
	case WideScreen:
		c.state.WideScreen = value
		c.state.DerivedWide = false
	case FullWindow:
		c.state.FullWindow = value
	case FullScreen:
		c.state.FullScreen = value
		if !value {
			c.state.F11Pressed = false
		}
	}

	if err := c.settings.Save(ctx, m.Setting(), value); err != nil {
		c.logger.Warnf("failed to persist %s: %v", m, err)
	}

	active := c.state.Active(m)
	c.presenter.UpdateButtonIcon(m.Button(), present.StateOf(active))
	c.presenter.UpdateTooltip(m.Button(), active)

	if !c.state.ExtensionDisabled {
		if m == FullWindow {
			c.fullerWindows()
		}
		if notify && value != previous {
			c.presenter.NotifyMode(string(m), value)
		}
	}

	c.logger.Debugf("synced %s=%t", m, value)
	c.openSyncWindow()
	if c.onSync != nil {
		c.onSync(m, value)
	}
}

// fullerWindows applies or removes the derived wide layout.
func (c *Controller) fullerWindows() {
	s := &c.state
	switch {
	case s.FullWindow && s.FullerWindows && !s.WideScreen && !s.WideSuppressed:
		if !s.DerivedWide {
			c.presenter.ApplyStylesheet(string(WideScreen), true)
			s.DerivedWide = true
		}
	case !s.FullWindow:
		s.WideSuppressed = false
		if c.presenter.HasStylesheet(string(FullWindow)) && c.native() {
			c.presenter.ApplyStylesheet(string(FullWindow), false)
		}
		if s.DerivedWide {
			c.presenter.ApplyStylesheet(string(WideScreen), false)
			s.DerivedWide = false
		}
	case s.DerivedWide && !s.FullerWindows:
		c.presenter.ApplyStylesheet(string(WideScreen), false)
		s.DerivedWide = false
	}

	active := s.Active(WideScreen)
	c.presenter.UpdateButtonIcon(present.ButtonWideScreen, present.StateOf(active))
	c.presenter.UpdateTooltip(present.ButtonWideScreen, active)
}

// openSyncWindow raises ModeSynced and (re)arms the single timer that
// clears it. Overlapping windows extend the timer.
func (c *Controller) openSyncWindow() {
	c.windowMu.Lock()
	defer c.windowMu.Unlock()

	c.windowGen++
	gen := c.windowGen
	c.synced.Store(true)
	if c.windowT != nil {
		c.windowT.Stop()
	}
	c.windowT = time.AfterFunc(c.syncWindow, func() {
		c.windowMu.Lock()
		defer c.windowMu.Unlock()
		if c.windowGen == gen {
			c.synced.Store(false)
		}
	})
}

func (c *Controller) load(ctx context.Context) error {
	names := []config.Setting{config.ExtensionDisabled}
	for _, name := range c.site.Features() {
		// full screen always comes from the platform
		if name != config.FullScreen && name != config.ExtensionDisabled {
			names = append(names, name)
		}
	}
	values, err := c.settings.Load(ctx, names...)
	if err != nil {
		return err
	}
	c.state.apply(values)
	if !c.site.HasSidebar() {
		c.state.FullWindow = false
	}
	return nil
}

// Restore loads the saved session and applies it: full-window first, then
// the fuller-windows rule, then the explicit wide layout.
func (c *Controller) Restore(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.load(ctx); err != nil {
		return err
	}
	c.state.FullScreen = c.platform.IsFullScreen()
	if c.native() {
		c.state.FullWindow = c.platform.SidebarHidden()
	}

	c.presenter.UpdateTweaks(c.state.Tweaks())
	for _, m := range Modes {
		active := c.state.Active(m)
		c.presenter.UpdateButtonIcon(m.Button(), present.StateOf(active))
	}
	if c.state.ExtensionDisabled {
		c.presenter.Reset()
		return nil
	}

	c.presenter.InsertButtons()
	if c.state.FullWindow {
		if !c.native() {
			c.presenter.ApplyStylesheet(string(FullWindow), true)
		}
		c.sync(ctx, FullWindow, false)
	}
	if c.state.WideScreen {
		c.presenter.ApplyStylesheet(string(WideScreen), true)
		c.sync(ctx, WideScreen, false)
	}
	c.refreshButtons()

	c.logger.Infof("restored %s: wide=%t window=%t screen=%t", c.site.Name(),
		c.state.WideScreen, c.state.FullWindow, c.state.FullScreen)
	return nil
}

// ConfigToUI reloads every setting and brings the page in line with it.
// While disabled the page is reset without touching stored values.
// Re-applied modes do not notify.
func (c *Controller) ConfigToUI(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.load(ctx); err != nil {
		return err
	}

	if c.state.ExtensionDisabled {
		c.presenter.Reset()
		c.state.DerivedWide = false
		c.logger.Debugf("disabled: presentation reset")
		return nil
	}

	c.presenter.UpdateTweaks(c.state.Tweaks())

	if want := c.state.FullWindow && c.site.HasSidebar(); want != c.observed(FullWindow) {
		if want {
			c.activate(ctx, FullWindow, false)
		} else {
			c.deactivate(ctx, FullWindow, false)
		}
	}
	c.fullerWindows()
	if want := c.state.WideScreen || c.state.DerivedWide; want != c.presenter.HasStylesheet(string(WideScreen)) {
		c.presenter.ApplyStylesheet(string(WideScreen), want)
		if c.state.WideScreen || !want {
			c.sync(ctx, WideScreen, false)
		}
	}

	c.presenter.InsertButtons()
	c.refreshButtons()
	return nil
}

func (c *Controller) refreshButtons() {
	for _, m := range Modes {
		active := c.state.Active(m)
		c.presenter.UpdateButtonIcon(m.Button(), present.StateOf(active))
		c.presenter.UpdateTooltip(m.Button(), active)
	}
	c.presenter.RefreshColor()
}

// Close stops the sync window timer and clears ModeSynced.
func (c *Controller) Close() {
	c.windowMu.Lock()
	defer c.windowMu.Unlock()
	c.windowGen++
	if c.windowT != nil {
		c.windowT.Stop()
	}
	c.synced.Store(false)
}
