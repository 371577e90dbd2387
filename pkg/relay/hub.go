package relay

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/entrhq/widescreen/pkg/logging"
)

var (
	// ErrNoRoute means the destination is not registered.
	ErrNoRoute = errors.New("no route to endpoint")
	// ErrInboxFull means the destination did not keep up; the message was dropped.
	ErrInboxFull = errors.New("inbox full")
	// ErrDuplicateEndpoint is returned when an id is registered twice.
	ErrDuplicateEndpoint = errors.New("endpoint already registered")
)

// Kind is the kind of context behind an endpoint.
type Kind string

const (
	KindBackground Kind = "background"
	KindTab        Kind = "tab"
	KindPopup      Kind = "popup"
)

// DefaultInboxSize is the buffer of each endpoint inbox.
const DefaultInboxSize = 32

// Sender is anything that can put a message on the relay.
type Sender interface {
	Send(msg Message) error
}

// Endpoint is a registered context.
type Endpoint struct {
	id    string
	kind  Kind
	hub   *Hub
	inbox chan Message
	once  sync.Once
}

func (e *Endpoint) ID() string            { return e.id }
func (e *Endpoint) Kind() Kind            { return e.kind }
func (e *Endpoint) Inbox() <-chan Message { return e.inbox }

// Send relays msg from this endpoint.
func (e *Endpoint) Send(msg Message) error {
	msg.From = e.id
	return e.hub.Send(msg)
}

// Close unregisters the endpoint and closes its inbox.
func (e *Endpoint) Close() {
	e.hub.Unregister(e.id)
}

// Hub routes messages between endpoints of one process. Delivery is
// best-effort: sends never block, unknown destinations and full inboxes
// drop the message.
type Hub struct {
	mu        sync.RWMutex
	endpoints map[string]*Endpoint
	activeTab string
	inboxSize int
	logger    *logging.Logger
}

// NewHub creates a hub. inboxSize <= 0 uses DefaultInboxSize.
func NewHub(inboxSize int, logger *logging.Logger) *Hub {
	if inboxSize <= 0 {
		inboxSize = DefaultInboxSize
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Hub{
		endpoints: make(map[string]*Endpoint),
		inboxSize: inboxSize,
		logger:    logger,
	}
}

// Register adds an endpoint.
func (h *Hub) Register(id string, kind Kind) (*Endpoint, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.endpoints[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateEndpoint, id)
	}
	ep := &Endpoint{id: id, kind: kind, hub: h, inbox: make(chan Message, h.inboxSize)}
	h.endpoints[id] = ep
	h.logger.Debugf("registered %s endpoint %s", kind, id)
	return ep, nil
}

// Unregister removes an endpoint and closes its inbox.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	ep, ok := h.endpoints[id]
	delete(h.endpoints, id)
	if h.activeTab == id {
		h.activeTab = ""
	}
	h.mu.Unlock()

	if ok {
		ep.once.Do(func() { close(ep.inbox) })
	}
}

// SetActiveTab records which tab ToActiveTab resolves to.
func (h *Hub) SetActiveTab(id string) {
	h.mu.Lock()
	h.activeTab = id
	h.mu.Unlock()
}

// ActiveTab returns the active tab id, or "" when none is registered.
func (h *Hub) ActiveTab() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.endpoints[h.activeTab]; !ok {
		return ""
	}
	return h.activeTab
}

// Tabs lists the registered tab endpoints.
func (h *Hub) Tabs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var ids []string
	for id, ep := range h.endpoints {
		if ep.kind == KindTab {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Send delivers msg without blocking.
func (h *Hub) Send(msg Message) error {
	h.mu.RLock()
	to := msg.To
	if to == ToActiveTab {
		to = h.activeTab
	}
	ep, ok := h.endpoints[to]
	if !ok {
		h.mu.RUnlock()
		h.logger.Debugf("dropped %s from %s: no endpoint %q", msg.Action, msg.From, msg.To)
		return fmt.Errorf("%w: %s", ErrNoRoute, msg.To)
	}

	// RLock is held so Unregister cannot close the inbox mid-send.
	select {
	case ep.inbox <- msg:
		h.mu.RUnlock()
		return nil
	default:
		h.mu.RUnlock()
		h.logger.Warnf("dropped %s to %s: inbox full", msg.Action, to)
		return fmt.Errorf("%w: %s", ErrInboxFull, to)
	}
}

// Broadcast sends msg to every tab. Failures are logged and skipped.
func (h *Hub) Broadcast(msg Message) {
	for _, id := range h.Tabs() {
		m := msg
		m.To = id
		_ = h.Send(m)
	}
}

// Handler receives the decoded commands of one context.
type Handler interface {
	Notify(ctx context.Context, opts NotifyOptions)
	Alert(ctx context.Context, opts AlertOptions)
	ShowAbout(ctx context.Context)
	SyncConfigToUI(ctx context.Context)
}

// Dispatch decodes msg and calls the matching handler method.
func Dispatch(ctx context.Context, msg Message, h Handler) error {
	switch msg.Action {
	case ActionNotify:
		var opts NotifyOptions
		if err := msg.Decode(&opts); err != nil {
			return err
		}
		h.Notify(ctx, opts)
	case ActionAlert:
		var opts AlertOptions
		if err := msg.Decode(&opts); err != nil {
			return err
		}
		h.Alert(ctx, opts)
	case ActionShowAbout:
		h.ShowAbout(ctx)
	case ActionSyncConfigToUI:
		h.SyncConfigToUI(ctx)
	default:
		return fmt.Errorf("unknown action %q", msg.Action)
	}
	return nil
}

// Serve dispatches the endpoint's inbox to h until ctx is done or the
// endpoint is closed.
func Serve(ctx context.Context, ep *Endpoint, h Handler, logger *logging.Logger) {
	if logger == nil {
		logger = logging.Discard()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ep.Inbox():
			if !ok {
				return
			}
			if err := Dispatch(ctx, msg, h); err != nil {
				logger.Warnf("%s: %v", ep.ID(), err)
			}
		}
	}
}
