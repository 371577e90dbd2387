package observe

import (
	"context"
	"sync"
	"time"

	"github.com/entrhq/widescreen/pkg/logging"
	"github.com/entrhq/widescreen/pkg/mode"
	"github.com/entrhq/widescreen/pkg/present"
)

// BridgeOptions tune a Bridge.
type BridgeOptions struct {
	// SidebarDelay postpones watching the sidebar so the page's own startup
	// churn is not mistaken for user toggles.
	SidebarDelay time.Duration
	// SidebarSettle waits before reading the sidebar after a change, for
	// hosts that animate it. Changes inside the wait restart it.
	SidebarSettle time.Duration
	Logger        *logging.Logger
}

// Bridge turns page and platform records into controller calls.
type Bridge struct {
	feed      *Feed
	ctrl      *mode.Controller
	presenter *present.Presenter
	opts      BridgeOptions
	logger    *logging.Logger

	mu      sync.Mutex
	ctx     context.Context
	subs    []*Subscription
	timer   *time.Timer
	settle  *time.Timer
	stopped bool
}

// NewBridge wires a bridge for one tab. Start begins observing.
func NewBridge(feed *Feed, ctrl *mode.Controller, presenter *present.Presenter, opts BridgeOptions) *Bridge {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Bridge{
		feed:      feed,
		ctrl:      ctrl,
		presenter: presenter,
		opts:      opts,
		logger:    opts.Logger,
	}
}

func isNodeChange(r Record) bool {
	return (r.Kind == KindChildList || r.Kind == KindAttributes) && r.Target != TargetSidebar
}

func isSidebarChange(r Record) bool {
	return r.Target == TargetSidebar
}

// Start subscribes every handler. The sidebar handler is added after
// SidebarDelay, and only for hosts with a native full-window control.
func (b *Bridge) Start(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.ctx = ctx
	b.stopped = false
	b.subs = append(b.subs,
		b.feed.Subscribe(isNodeChange, b.handleNodes),
		b.feed.Subscribe(OfKind(KindResize, KindFullscreen), b.handleFullscreen),
		b.feed.Subscribe(OfKind(KindKeyDown), b.handleKey),
		b.feed.Subscribe(OfKind(KindClick), b.handleClick),
	)

	adapter := b.ctrl.Site()
	if !adapter.HasSidebar() || !adapter.HasNativeFullWindowToggle() {
		return
	}
	if b.opts.SidebarDelay <= 0 {
		b.subs = append(b.subs, b.feed.Subscribe(isSidebarChange, b.handleSidebar))
		return
	}
	b.timer = time.AfterFunc(b.opts.SidebarDelay, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.stopped {
			return
		}
		b.subs = append(b.subs, b.feed.Subscribe(isSidebarChange, b.handleSidebar))
		b.logger.Debugf("watching sidebar")
	})
}

// Stop cancels every subscription.
func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopped = true
	if b.timer != nil {
		b.timer.Stop()
	}
	if b.settle != nil {
		b.settle.Stop()
	}
	for _, s := range b.subs {
		s.Cancel()
	}
	b.subs = nil
}

func (b *Bridge) context() context.Context {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ctx == nil {
		return context.Background()
	}
	return b.ctx
}

// handleNodes keeps the buttons in the page and their color in line with
// the host scheme. It never reconciles mode state.
func (b *Bridge) handleNodes(batch []Record) {
	if b.ctrl.Disabled() {
		return
	}
	if !b.presenter.ButtonsPresent() {
		b.presenter.InsertButtons()
	}
	if first := batch[0]; first.Target == TargetRoot && (first.Attribute == "class" || first.Attribute == "data-color-scheme") {
		b.presenter.RefreshColor()
	}
}

func (b *Bridge) handleSidebar(batch []Record) {
	if b.ctrl.ModeSynced() {
		return
	}
	b.logger.Debugf("sidebar changed by host (%s)", batch[0].Attribute)
	if b.opts.SidebarSettle <= 0 {
		b.syncSidebar()
		return
	}

	// read the sidebar once it stops moving, off the feed goroutine
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	if b.settle != nil {
		b.settle.Stop()
	}
	b.settle = time.AfterFunc(b.opts.SidebarSettle, func() {
		b.mu.Lock()
		stopped := b.stopped
		b.mu.Unlock()
		if !stopped {
			b.syncSidebar()
		}
	})
}

func (b *Bridge) syncSidebar() {
	if b.ctrl.ModeSynced() || !b.ctrl.Diverged(mode.FullWindow) {
		return
	}
	b.ctrl.Sync(b.context(), mode.FullWindow)
}

func (b *Bridge) handleFullscreen([]Record) {
	if b.ctrl.ModeSynced() || !b.ctrl.Diverged(mode.FullScreen) {
		return
	}
	b.ctrl.Sync(b.context(), mode.FullScreen)
}

func (b *Bridge) handleKey(batch []Record) {
	if batch[0].Key == "F11" {
		b.ctrl.NoteF11Pressed()
	}
}

// handleClick routes presses of the injected buttons.
func (b *Bridge) handleClick(batch []Record) {
	btn, ok := present.ButtonFromID(batch[0].Target)
	if !ok {
		return
	}
	if btn == present.ButtonNewChat {
		b.presenter.ClickNewChat()
		return
	}
	m, err := mode.Parse(string(btn))
	if err != nil {
		return
	}
	b.ctrl.Toggle(b.context(), m)
}
