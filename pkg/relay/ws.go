package relay

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/entrhq/widescreen/pkg/logging"
)

// WSServer exposes a hub over websocket so contexts in other processes, such
// as a popup started from a terminal, can register endpoints on it.
//
// Clients connect with ?id=<endpoint>&kind=<tab|popup>. Every JSON message
// read from the socket is relayed from that endpoint; every message routed
// to it is written back.
type WSServer struct {
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *logging.Logger
}

// NewWSServer creates a websocket bridge for hub.
func NewWSServer(hub *Hub, logger *logging.Logger) *WSServer {
	if logger == nil {
		logger = logging.Discard()
	}
	return &WSServer{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// local bridge only; listen address is loopback by default
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

func (s *WSServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		http.Error(w, "missing endpoint id", http.StatusBadRequest)
		return
	}
	kind := Kind(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = KindPopup
	}

	ep, err := s.hub.Register(id, kind)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		ep.Close()
		s.logger.Warnf("websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	defer ep.Close()

	go func() {
		for msg := range ep.Inbox() {
			if err := conn.WriteJSON(msg); err != nil {
				s.logger.Debugf("write to %s failed: %v", id, err)
				return
			}
		}
	}()

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warnf("websocket %s closed: %v", id, err)
			}
			return
		}
		if err := ep.Send(msg); err != nil {
			s.logger.Debugf("relay from %s: %v", id, err)
		}
	}
}

// WSClient is the remote side of a WSServer endpoint.
type WSClient struct {
	id       string
	conn     *websocket.Conn
	writeMu  sync.Mutex
	messages chan Message
	logger   *logging.Logger
}

var _ Sender = (*WSClient)(nil)

// DialWS connects to a WSServer at base (ws://host:port/path) as endpoint id.
func DialWS(ctx context.Context, base, id string, kind Kind, logger *logging.Logger) (*WSClient, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid relay url: %w", err)
	}
	q := u.Query()
	q.Set("id", id)
	q.Set("kind", string(kind))
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial relay: %w", err)
	}

	c := &WSClient{
		id:       id,
		conn:     conn,
		messages: make(chan Message, DefaultInboxSize),
		logger:   logger,
	}
	go c.readLoop()
	return c, nil
}

func (c *WSClient) readLoop() {
	defer close(c.messages)
	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warnf("relay connection closed: %v", err)
			}
			return
		}
		select {
		case c.messages <- msg:
		default:
			c.logger.Warnf("dropped %s: client inbox full", msg.Action)
		}
	}
}

// ID returns the endpoint id.
func (c *WSClient) ID() string { return c.id }

// Messages delivers messages routed to this endpoint. Closed on disconnect.
func (c *WSClient) Messages() <-chan Message { return c.messages }

// Send relays msg from this endpoint.
func (c *WSClient) Send(msg Message) error {
	msg.From = c.id
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("failed to send %s: %w", msg.Action, err)
	}
	return nil
}

// Close says goodbye and closes the connection.
func (c *WSClient) Close() error {
	c.writeMu.Lock()
	deadline := time.Now().Add(time.Second)
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	c.writeMu.Unlock()
	return c.conn.Close()
}
