// Package present owns every visual effect the engine puts on a host page.
//
// The Presenter is the only writer of the page: mode stylesheets, injected
// buttons, tooltips, icon colors, notifications and alerts all go through it.
// It talks to the page through the Document port so the same code drives a
// live browser tab and the in-memory document used offline.
package present

import (
	"errors"
	"time"
)

// ErrAnchorMissing reports that a selector or element the operation needs is
// not in the document. Callers treat it as a normal condition.
var ErrAnchorMissing = errors.New("anchor not found")

// ButtonType names an injected button.
type ButtonType string

const (
	ButtonFullScreen ButtonType = "fullScreen"
	ButtonFullWindow ButtonType = "fullWindow"
	ButtonWideScreen ButtonType = "wideScreen"
	ButtonNewChat    ButtonType = "newChat"
)

// ButtonTypes lists the buttons right to left, the order they sit in the chat bar.
var ButtonTypes = []ButtonType{ButtonFullScreen, ButtonFullWindow, ButtonWideScreen, ButtonNewChat}

// ID is the element id of the button, e.g. "wideScreen-btn".
func (b ButtonType) ID() string { return string(b) + "-btn" }

// Toggleable reports whether the button reflects a mode with ON/OFF state.
func (b ButtonType) Toggleable() bool { return b != ButtonNewChat }

// ButtonFromID maps an element id back to its button type.
func ButtonFromID(id string) (ButtonType, bool) {
	for _, b := range ButtonTypes {
		if b.ID() == id {
			return b, true
		}
	}
	return "", false
}

// VisualState is the icon state of a button.
type VisualState string

const (
	On  VisualState = "ON"
	Off VisualState = "OFF"
)

// StateOf converts a boolean mode value.
func StateOf(active bool) VisualState {
	if active {
		return On
	}
	return Off
}

// Button is the data the document needs to render one injected button.
type Button struct {
	ID      string
	Type    ButtonType
	Icon    string
	Tooltip string
	Color   string
}

// Scheme is the host page color scheme.
type Scheme string

const (
	SchemeLight Scheme = "light"
	SchemeDark  Scheme = "dark"
)

// Notification is a transient toast. State carries the ON/OFF word that is
// rendered separately from Message.
type Notification struct {
	Message  string
	State    VisualState
	Position string
	Duration time.Duration
	Shadow   bool
}

// AlertOptions describes a modal alert.
type AlertOptions struct {
	Title    string
	Message  string
	Buttons  []string
	Checkbox string
	Width    int
}

// Document is the narrow DOM port the Presenter drives.
type Document interface {
	// SetStyle creates or replaces the <style> element with the given id in head.
	SetStyle(id, css string) error
	// RemoveElement removes the element with the given id. Absent is not an error.
	RemoveElement(id string) error
	HasElement(id string) bool
	// Exists reports whether selector matches any element.
	Exists(selector string) bool

	// InsertButtons places buttons, in order, after the element matching
	// anchor. Returns ErrAnchorMissing when anchor matches nothing.
	InsertButtons(anchor string, buttons []Button) error
	SetButtonIcon(id, icon string) error
	SetTooltip(id, text string) error
	SetButtonColor(ids []string, color string) error

	// Click dispatches a click on the first element matching selector.
	Click(selector string) error
	ColorScheme() Scheme

	ShowNotification(n Notification) error
	ShowAlert(a AlertOptions) error
}
