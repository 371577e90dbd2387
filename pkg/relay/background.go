package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/entrhq/widescreen/pkg/logging"
)

// TabOpener opens a chat page and returns the id its tab registers under.
type TabOpener interface {
	OpenTab(ctx context.Context, url string) (string, error)
}

// DesktopNotifier shows notifications outside any page.
type DesktopNotifier interface {
	Notify(title, message string) error
}

// BackgroundOptions configure the background context.
type BackgroundOptions struct {
	StartURL string
	// AboutDelay is how long a freshly opened tab gets to initialize before
	// showAbout is forwarded to it.
	AboutDelay time.Duration
	Notifier   DesktopNotifier
	Logger     *logging.Logger
}

// Background is the service context: it follows tab activation and forwards
// popup commands to the active chat tab.
type Background struct {
	hub    *Hub
	ep     *Endpoint
	opener TabOpener
	opts   BackgroundOptions
	logger *logging.Logger
}

var _ Handler = (*Background)(nil)

// NewBackground registers the background endpoint on hub.
func NewBackground(hub *Hub, opener TabOpener, opts BackgroundOptions) (*Background, error) {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	ep, err := hub.Register(BackgroundID, KindBackground)
	if err != nil {
		return nil, fmt.Errorf("failed to register background: %w", err)
	}
	return &Background{hub: hub, ep: ep, opener: opener, opts: opts, logger: opts.Logger}, nil
}

// Run serves the background inbox until ctx is done.
func (b *Background) Run(ctx context.Context) {
	Serve(ctx, b.ep, b, b.logger)
}

// Close unregisters the background endpoint.
func (b *Background) Close() {
	b.ep.Close()
}

// Installed runs the first-run hook: open the start page.
func (b *Background) Installed(ctx context.Context) error {
	if b.opener == nil || b.opts.StartURL == "" {
		return nil
	}
	if _, err := b.opener.OpenTab(ctx, b.opts.StartURL); err != nil {
		return fmt.Errorf("failed to open start page: %w", err)
	}
	return nil
}

// TabActivated makes id the active tab and asks it to re-read settings,
// which may have been changed from another tab meanwhile.
func (b *Background) TabActivated(id string) {
	b.hub.SetActiveTab(id)
	b.forward(ActionSyncConfigToUI, id, nil)
}

func (b *Background) forward(action Action, to string, options any) bool {
	msg, err := NewMessage(action, to, options)
	if err != nil {
		b.logger.Warnf("%v", err)
		return false
	}
	return b.ep.Send(msg) == nil
}

func (b *Background) Notify(_ context.Context, opts NotifyOptions) {
	if b.forward(ActionNotify, ToActiveTab, opts) {
		return
	}
	b.desktop("", opts.Msg)
}

func (b *Background) Alert(_ context.Context, opts AlertOptions) {
	if b.forward(ActionAlert, ToActiveTab, opts) {
		return
	}
	b.desktop(opts.Title, opts.Msg)
}

func (b *Background) desktop(title, msg string) {
	if b.opts.Notifier == nil {
		return
	}
	if err := b.opts.Notifier.Notify(title, msg); err != nil {
		b.logger.Debugf("desktop fallback failed: %v", err)
	}
}

// ShowAbout forwards to the active tab, opening a chat tab first when none
// is active.
func (b *Background) ShowAbout(ctx context.Context) {
	if b.hub.ActiveTab() != "" {
		b.forward(ActionShowAbout, ToActiveTab, nil)
		return
	}
	if b.opener == nil || b.opts.StartURL == "" {
		b.logger.Debugf("showAbout dropped: no chat tab")
		return
	}

	go func() {
		id, err := b.opener.OpenTab(ctx, b.opts.StartURL)
		if err != nil {
			b.logger.Warnf("failed to open chat tab for about: %v", err)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(b.opts.AboutDelay):
		}
		b.forward(ActionShowAbout, id, nil)
	}()
}

// SyncConfigToUI forwards a settings push to the active tab.
func (b *Background) SyncConfigToUI(context.Context) {
	b.forward(ActionSyncConfigToUI, ToActiveTab, nil)
}
