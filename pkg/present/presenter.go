package present

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/entrhq/widescreen/pkg/logging"
	"github.com/entrhq/widescreen/pkg/site"
)

// Element ids owned by the presenter.
const (
	WideScreenStyleID = "wideScreen-mode"
	FullWindowStyleID = "fullWindow-mode"
	TweaksStyleID     = "widescreen-tweaks"
)

// StyleID returns the id of the stylesheet that applies a self-managed mode.
func StyleID(mode string) string { return mode + "-mode" }

const (
	darkIconColor  = "white"
	lightIconColor = "#202123"
)

// Tweaks are the cosmetic settings rendered into the tweaks stylesheet.
type Tweaks struct {
	TCBDisabled   bool
	HiddenHeader  bool
	HiddenFooter  bool
	NotifDisabled bool
	NCBDisabled   bool
}

// Presenter applies mode state to a Document.
type Presenter struct {
	doc    Document
	site   site.Adapter
	msgs   Messages
	logger *logging.Logger

	mu     sync.Mutex
	active map[ButtonType]bool
	tweaks Tweaks
	color  string
}

// New creates a presenter for one tab.
func New(doc Document, adapter site.Adapter, msgs Messages, logger *logging.Logger) *Presenter {
	if msgs == nil {
		msgs = English
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Presenter{
		doc:    doc,
		site:   adapter,
		msgs:   msgs,
		logger: logger,
		active: make(map[ButtonType]bool),
	}
}

// SetSite swaps the capability view, used once the sidebar probe settles.
func (p *Presenter) SetSite(adapter site.Adapter) {
	p.mu.Lock()
	p.site = adapter
	p.mu.Unlock()
}

func (p *Presenter) adapter() site.Adapter {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.site
}

// Messages returns the lookup used for rendered text.
func (p *Presenter) Messages() Messages { return p.msgs }

func (p *Presenter) css(mode string) (string, error) {
	adapter := p.adapter()
	styles := adapter.Styles()
	switch mode {
	case string(ButtonWideScreen):
		return styles.WideScreen, nil
	case string(ButtonFullWindow):
		if styles.FullWindow != "" {
			return styles.FullWindow, nil
		}
		if sel := adapter.Selectors().Sidebar; sel != "" {
			return sel + " { display: none }", nil
		}
		return "", fmt.Errorf("site %s has no sidebar selector", adapter.Name())
	default:
		return "", fmt.Errorf("no stylesheet for mode %q", mode)
	}
}

// ApplyStylesheet injects or removes the stylesheet of a self-managed mode.
// Applying an already present sheet replaces it in place.
func (p *Presenter) ApplyStylesheet(mode string, on bool) {
	id := StyleID(mode)
	if !on {
		if err := p.doc.RemoveElement(id); err != nil {
			p.logger.Warnf("failed to remove %s: %v", id, err)
		}
		return
	}

	css, err := p.css(mode)
	if err != nil {
		p.logger.Warnf("cannot apply %s: %v", id, err)
		return
	}
	if err := p.doc.SetStyle(id, css); err != nil {
		p.logger.Warnf("failed to apply %s: %v", id, err)
	}
}

// HasStylesheet reads the DOM marker of a mode. It is a detection signal
// only; the store stays canonical.
func (p *Presenter) HasStylesheet(mode string) bool {
	return p.doc.HasElement(StyleID(mode))
}

func iconName(b ButtonType, s VisualState) string {
	if !b.Toggleable() {
		return string(b)
	}
	return string(b) + "-" + strings.ToLower(string(s))
}

// UpdateButtonIcon records the visual state of a button and renders it when
// the button is in the page.
func (p *Presenter) UpdateButtonIcon(b ButtonType, s VisualState) {
	p.mu.Lock()
	p.active[b] = s == On
	p.mu.Unlock()

	if !p.doc.HasElement(b.ID()) {
		return
	}
	if err := p.doc.SetButtonIcon(b.ID(), iconName(b, s)); err != nil {
		p.logger.Debugf("icon update for %s skipped: %v", b, err)
	}
}

// UpdateTooltip sets the label of a button for the given mode value.
func (p *Presenter) UpdateTooltip(b ButtonType, active bool) {
	if !p.doc.HasElement(b.ID()) {
		return
	}
	if err := p.doc.SetTooltip(b.ID(), p.msgs.Get(TooltipKey(b, active))); err != nil {
		p.logger.Debugf("tooltip update for %s skipped: %v", b, err)
	}
}

// VisibleButtons returns the button types shown for the current site,
// right to left.
func (p *Presenter) VisibleButtons() []ButtonType {
	hasSidebar := p.adapter().HasSidebar()

	types := make([]ButtonType, 0, len(ButtonTypes))
	for _, b := range ButtonTypes {
		if b == ButtonFullWindow && !hasSidebar {
			continue
		}
		types = append(types, b)
	}
	return types
}

// ButtonsPresent reports whether the anchor button is in the page.
func (p *Presenter) ButtonsPresent() bool {
	return p.doc.HasElement(ButtonWideScreen.ID())
}

// InsertButtons adds the buttons next to the chat input. It is a no-op when
// they are already present or the input is not rendered.
func (p *Presenter) InsertButtons() {
	if p.ButtonsPresent() {
		return
	}

	anchor := p.adapter().Selectors().Input
	if anchor == "" {
		return
	}

	color := p.schemeColor()
	visible := p.VisibleButtons()
	buttons := make([]Button, 0, len(visible))
	// inserted left to right
	for i := len(visible) - 1; i >= 0; i-- {
		b := visible[i]
		p.mu.Lock()
		active := p.active[b]
		p.mu.Unlock()
		buttons = append(buttons, Button{
			ID:      b.ID(),
			Type:    b,
			Icon:    iconName(b, StateOf(active)),
			Tooltip: p.msgs.Get(TooltipKey(b, active)),
			Color:   color,
		})
	}

	err := p.doc.InsertButtons(anchor, buttons)
	if errors.Is(err, ErrAnchorMissing) {
		p.logger.Debugf("chat input not rendered, buttons not inserted")
		return
	}
	if err != nil {
		p.logger.Warnf("failed to insert buttons: %v", err)
		return
	}

	p.mu.Lock()
	p.color = color
	p.mu.Unlock()
}

// RemoveButtons takes every injected button out of the page.
func (p *Presenter) RemoveButtons() {
	for _, b := range ButtonTypes {
		if err := p.doc.RemoveElement(b.ID()); err != nil {
			p.logger.Warnf("failed to remove %s: %v", b.ID(), err)
		}
	}
	p.mu.Lock()
	p.color = ""
	p.mu.Unlock()
}

func (p *Presenter) schemeColor() string {
	if p.doc.ColorScheme() == SchemeDark {
		return darkIconColor
	}
	return lightIconColor
}

// RefreshColor recolors the buttons after a scheme change. This is a
// presentational refresh and never touches mode state.
func (p *Presenter) RefreshColor() {
	if !p.ButtonsPresent() {
		return
	}
	color := p.schemeColor()

	p.mu.Lock()
	unchanged := color == p.color
	p.mu.Unlock()
	if unchanged {
		return
	}

	var ids []string
	for _, b := range p.VisibleButtons() {
		ids = append(ids, b.ID())
	}
	if err := p.doc.SetButtonColor(ids, color); err != nil {
		p.logger.Warnf("failed to recolor buttons: %v", err)
		return
	}
	p.mu.Lock()
	p.color = color
	p.mu.Unlock()
}

// TweaksCSS renders the tweaks stylesheet for the current site.
func (p *Presenter) TweaksCSS(t Tweaks) string {
	sel := p.adapter().Selectors()
	var b strings.Builder

	if !t.TCBDisabled && sel.Input != "" {
		b.WriteString(sel.Input + " { max-height: 68vh }\n")
	}
	if t.HiddenHeader && sel.Header != "" {
		b.WriteString(sel.Header + " { display: none !important }\n")
	}
	if t.HiddenFooter && sel.Footer != "" {
		b.WriteString(sel.Footer + " { visibility: hidden; height: 3px; overflow: clip }\n")
	}
	display := "flex"
	if t.NCBDisabled {
		display = "none"
	}
	fmt.Fprintf(&b, "#%s { display: %s }\n", ButtonNewChat.ID(), display)
	return b.String()
}

// UpdateTweaks stores the tweak settings and rewrites the tweaks stylesheet.
func (p *Presenter) UpdateTweaks(t Tweaks) {
	p.mu.Lock()
	p.tweaks = t
	p.mu.Unlock()

	if err := p.doc.SetStyle(TweaksStyleID, p.TweaksCSS(t)); err != nil {
		p.logger.Warnf("failed to apply tweaks: %v", err)
	}
}

// NotifyMode reports a mode transition, e.g. "Wide screen ON".
func (p *Presenter) NotifyMode(mode string, active bool) {
	p.Notify(Notification{
		Message: p.msgs.Get(ModeKey(mode)),
		State:   StateOf(active),
	})
}

// Notify shows a toast. While notifications are disabled only messages
// about the notification setting itself get through. A trailing ON/OFF word
// in Message is moved to State so the document can style it.
func (p *Presenter) Notify(n Notification) {
	p.mu.Lock()
	disabled := p.tweaks.NotifDisabled
	p.mu.Unlock()
	if disabled && !strings.Contains(n.Message, p.msgs.Get(KeyModeNotifs)) {
		return
	}

	if n.State == "" {
		for _, word := range []VisualState{On, Off} {
			w := strings.ToUpper(p.msgs.Get("state_" + strings.ToLower(string(word))))
			if strings.Contains(n.Message, w) {
				n.Message = strings.TrimSpace(strings.Replace(n.Message, w, "", 1))
				n.State = word
				break
			}
		}
	}
	n.Message = strings.TrimSpace(p.msgs.Get(KeyAppSymbol) + " " + n.Message)

	if err := p.doc.ShowNotification(n); err != nil {
		p.logger.Warnf("failed to show notification: %v", err)
	}
}

// Alert shows a modal alert.
func (p *Presenter) Alert(a AlertOptions) {
	if err := p.doc.ShowAlert(a); err != nil {
		p.logger.Warnf("failed to show alert: %v", err)
	}
}

// ClickNativeToggle clicks the host page's own sidebar control. It reports
// false when the site has none or it is not rendered.
func (p *Presenter) ClickNativeToggle() bool {
	sel := p.adapter().Selectors().NativeToggle
	if sel == "" {
		return false
	}
	if err := p.doc.Click(sel); err != nil {
		p.logger.Debugf("native sidebar toggle not clicked: %v", err)
		return false
	}
	return true
}

// ClickNewChat forwards a newChat button press to the host's own control.
func (p *Presenter) ClickNewChat() {
	sel := p.adapter().Selectors().NewChat
	if sel == "" {
		return
	}
	if err := p.doc.Click(sel); err != nil {
		p.logger.Debugf("new chat control not clicked: %v", err)
	}
}

// Reset removes every presentational effect: mode stylesheets, tweaks and
// buttons. Stored settings are not touched.
func (p *Presenter) Reset() {
	for _, id := range []string{WideScreenStyleID, FullWindowStyleID, TweaksStyleID} {
		if err := p.doc.RemoveElement(id); err != nil {
			p.logger.Warnf("failed to remove %s: %v", id, err)
		}
	}
	p.RemoveButtons()
}
