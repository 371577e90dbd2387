// Package content wires the engine for one chat tab: it owns the tab's
// mode state, runs the startup sequence and answers relayed commands.
package content

import (
	"context"
	"fmt"
	"time"

	"github.com/entrhq/widescreen/pkg/config"
	"github.com/entrhq/widescreen/pkg/logging"
	"github.com/entrhq/widescreen/pkg/mode"
	"github.com/entrhq/widescreen/pkg/observe"
	"github.com/entrhq/widescreen/pkg/present"
	"github.com/entrhq/widescreen/pkg/relay"
	"github.com/entrhq/widescreen/pkg/site"
)

// Options tune a Tab. Zero durations use the defaults of
// config.DefaultAppConfig, except SidebarObserveDelay where zero watches the
// sidebar right away.
type Options struct {
	ID       string
	Timing   config.TimingConfig
	Messages present.Messages
	Logger   *logging.Logger

	// OnSync is passed through to the controller.
	OnSync func(m mode.Mode, value bool)
}

// Tab is one chat page context.
type Tab struct {
	id      string
	feed    *observe.Feed
	doc     present.Document
	site    *site.Descriptor
	timing  config.TimingConfig
	logger  *logging.Logger
	ctrl    *mode.Controller
	present *present.Presenter
	bridge  *observe.Bridge
}

var _ relay.Handler = (*Tab)(nil)

// NewTab builds the engine for a page. doc must publish its changes to
// feed; the tab takes ownership of feed and closes it in Close.
func NewTab(settings *config.Settings, descriptor *site.Descriptor, doc present.Document, platform mode.Platform, feed *observe.Feed, opts Options) *Tab {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.Messages == nil {
		opts.Messages = present.English
	}
	opts.Timing = withDefaults(opts.Timing)

	logger := opts.Logger.With(descriptor.Name())
	presenter := present.New(doc, descriptor, opts.Messages, logger)
	ctrl := mode.New(settings, descriptor, presenter, platform, mode.Options{
		SyncWindow: opts.Timing.SyncWindow,
		Logger:     logger,
		OnSync:     opts.OnSync,
	})
	bridge := observe.NewBridge(feed, ctrl, presenter, observe.BridgeOptions{
		SidebarDelay:  opts.Timing.SidebarObserveDelay,
		SidebarSettle: descriptor.SidebarSettle,
		Logger:        logger,
	})

	return &Tab{
		id:      opts.ID,
		feed:    feed,
		doc:     doc,
		site:    descriptor,
		timing:  opts.Timing,
		logger:  logger,
		ctrl:    ctrl,
		present: presenter,
		bridge:  bridge,
	}
}

func withDefaults(t config.TimingConfig) config.TimingConfig {
	d := config.DefaultAppConfig().Timing
	if t.SyncWindow <= 0 {
		t.SyncWindow = d.SyncWindow
	}
	if t.ProbeDeadline <= 0 {
		t.ProbeDeadline = d.ProbeDeadline
	}
	if t.ReadinessDeadline <= 0 {
		t.ReadinessDeadline = d.ReadinessDeadline
	}
	if t.SidebarObserveDelay < 0 {
		t.SidebarObserveDelay = 0
	}
	return t
}

// ID returns the relay id of the tab.
func (t *Tab) ID() string { return t.id }

// Controller exposes the tab's mode controller.
func (t *Tab) Controller() *mode.Controller { return t.ctrl }

// Presenter exposes the tab's presenter.
func (t *Tab) Presenter() *present.Presenter { return t.present }

// Site returns the capability view in effect after Init.
func (t *Tab) Site() site.Adapter { return t.ctrl.Site() }

// Init runs the startup sequence: wait for the chat input, check whether
// the logged-in sidebar and the footer exist, restore the saved modes and
// start observing. A page that never becomes ready is initialized anyway.
func (t *Tab) Init(ctx context.Context) error {
	sel := t.site.Selectors()

	if sel.Input != "" {
		if _, ok := t.waitFor(ctx, sel.Input, t.timing.ReadinessDeadline); !ok {
			t.logger.Debugf("chat input %q not ready after %v", sel.Input, t.timing.ReadinessDeadline)
		}
	}

	adapter := t.site
	if adapter.HasNativeFullWindowToggle() && sel.Login != "" {
		has := t.probeSidebar(ctx)
		adapter = adapter.WithSidebar(has)
		t.logger.Debugf("sidebar probe: %t", has)
	}

	// the footer renders late or not at all; hiding a missing one would
	// leave a stale rule in the tweaks stylesheet
	if sel.Footer != "" {
		if _, ok := t.waitFor(ctx, sel.Footer, t.timing.ProbeDeadline); !ok {
			adapter = adapter.WithFooter("")
			t.logger.Debugf("footer %q not found after %v", sel.Footer, t.timing.ProbeDeadline)
		}
	}

	if adapter != t.site {
		t.site = adapter
		t.ctrl.SetSite(adapter)
		t.present.SetSite(adapter)
	}

	if err := t.ctrl.Restore(ctx); err != nil {
		return fmt.Errorf("failed to restore modes: %w", err)
	}
	t.bridge.Start(ctx)
	return nil
}

func (t *Tab) waitFor(ctx context.Context, selector string, deadline time.Duration) (struct{}, bool) {
	return observe.WaitFor(ctx, t.feed, deadline, func() (struct{}, bool) {
		return struct{}{}, t.doc.Exists(selector)
	})
}

// probeSidebar races the native sidebar toggle against the login button.
// Neither appearing in time counts as no sidebar.
func (t *Tab) probeSidebar(ctx context.Context) bool {
	sel := t.site.Selectors()
	deadline := t.timing.ReadinessDeadline
	appears := func(selector string, result bool) observe.Contender[bool] {
		return func(ctx context.Context) (bool, bool) {
			if _, ok := t.waitFor(ctx, selector, deadline); !ok {
				return false, false
			}
			return result, true
		}
	}
	has, _ := observe.Race(ctx, deadline, appears(sel.NativeToggle, true), appears(sel.Login, false))
	return has
}

// Serve answers relayed commands until ctx is done or ep is closed.
func (t *Tab) Serve(ctx context.Context, ep *relay.Endpoint) {
	relay.Serve(ctx, ep, t, t.logger)
}

// Notify shows a toast relayed from another context.
func (t *Tab) Notify(_ context.Context, opts relay.NotifyOptions) {
	t.present.Notify(present.Notification{
		Message:  opts.Msg,
		Position: opts.Pos,
		Duration: time.Duration(opts.NotifDuration * float64(time.Second)),
		Shadow:   opts.Shadow != "",
	})
}

// Alert shows a modal relayed from another context.
func (t *Tab) Alert(_ context.Context, opts relay.AlertOptions) {
	t.present.Alert(present.AlertOptions{
		Title:    opts.Title,
		Message:  opts.Msg,
		Buttons:  opts.Btns,
		Checkbox: opts.Checkbox,
		Width:    opts.Width,
	})
}

// ShowAbout shows the about modal.
func (t *Tab) ShowAbout(context.Context) {
	msgs := t.present.Messages()
	t.present.Alert(present.AlertOptions{
		Title:   msgs.Get(present.KeyAppSymbol) + " " + msgs.Get(present.KeyAppName),
		Message: msgs.Get(present.KeyAbout),
		Buttons: []string{"OK"},
	})
}

// SyncConfigToUI re-reads the settings, which another context may have
// changed, and applies them to the page.
func (t *Tab) SyncConfigToUI(ctx context.Context) {
	if err := t.ctrl.ConfigToUI(ctx); err != nil {
		t.logger.Warnf("failed to sync settings: %v", err)
	}
}

// Close stops observing and drops the tab's state.
func (t *Tab) Close() {
	t.bridge.Stop()
	t.ctrl.Close()
	t.feed.Close()
}
