// Package relay carries commands between the background, tab and popup
// contexts. It is transport only: it routes messages and decodes payloads,
// and never interprets mode state.
package relay

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Action names a relayed command.
type Action string

const (
	ActionNotify         Action = "notify"
	ActionAlert          Action = "alert"
	ActionShowAbout      Action = "showAbout"
	ActionSyncConfigToUI Action = "syncConfigToUI"
)

// Reserved destinations.
const (
	// ToActiveTab routes to whichever tab is active when the hub delivers.
	ToActiveTab = "@active"
	// BackgroundID is the endpoint id of the background context.
	BackgroundID = "background"
)

// Message is one relayed command.
type Message struct {
	ID      string          `json:"id"`
	Action  Action          `json:"action"`
	From    string          `json:"from,omitempty"`
	To      string          `json:"to,omitempty"`
	Options json.RawMessage `json:"options,omitempty"`
	SentAt  time.Time       `json:"sentAt"`
}

// NotifyOptions is the payload of ActionNotify.
type NotifyOptions struct {
	Msg           string  `json:"msg"`
	Pos           string  `json:"pos,omitempty"`
	NotifDuration float64 `json:"notifDuration,omitempty"`
	Shadow        string  `json:"shadow,omitempty"`
}

// AlertOptions is the payload of ActionAlert.
type AlertOptions struct {
	Title    string   `json:"title"`
	Msg      string   `json:"msg"`
	Btns     []string `json:"btns,omitempty"`
	Checkbox string   `json:"checkbox,omitempty"`
	Width    int      `json:"width,omitempty"`
}

// NewMessage builds a message to to. options may be nil.
func NewMessage(action Action, to string, options any) (Message, error) {
	msg := Message{
		ID:     uuid.New().String(),
		Action: action,
		To:     to,
		SentAt: time.Now(),
	}
	if options != nil {
		data, err := json.Marshal(options)
		if err != nil {
			return Message{}, fmt.Errorf("failed to encode %s options: %w", action, err)
		}
		msg.Options = data
	}
	return msg, nil
}

// Decode unmarshals the options into v. Empty options leave v untouched.
func (m Message) Decode(v any) error {
	if len(m.Options) == 0 {
		return nil
	}
	if err := json.Unmarshal(m.Options, v); err != nil {
		return fmt.Errorf("failed to decode %s options: %w", m.Action, err)
	}
	return nil
}
