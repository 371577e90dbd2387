package browser

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/widescreen/pkg/logging"
	"github.com/entrhq/widescreen/pkg/mode"
	"github.com/entrhq/widescreen/pkg/observe"
	"github.com/entrhq/widescreen/pkg/present"
	"github.com/entrhq/widescreen/pkg/site"
)

// Engine is what a PageFunc starts on a loaded chat page. It lives until
// the next navigation or until the page closes.
type Engine interface {
	// Focus runs when the page becomes the visible tab.
	Focus()
	Close()
}

// Page is a browser tab. While it shows a supported chat site it is the
// engine's Document and Platform, and publishes the page's changes to its
// Feed. Every load gets a fresh Feed and Engine.
type Page struct {
	id      string
	page    playwright.Page
	timeout time.Duration
	logger  *logging.Logger

	mu     sync.Mutex
	site   *site.Descriptor
	feed   *observe.Feed
	engine Engine

	// navs counts main-frame loads; loaded is the last one served
	navs   atomic.Uint64
	loadMu sync.Mutex
	loaded uint64
}

var (
	_ present.Document = (*Page)(nil)
	_ mode.Platform    = (*Page)(nil)
)

func newPage(id string, page playwright.Page, timeout time.Duration, logger *logging.Logger) *Page {
	return &Page{
		id:      id,
		page:    page,
		feed:    observe.NewFeed(logger),
		timeout: timeout,
		logger:  logger,
	}
}

func (p *Page) publish(records ...observe.Record) {
	p.mu.Lock()
	feed := p.feed
	p.mu.Unlock()
	feed.Publish(records...)
}

func (p *Page) focus() {
	p.mu.Lock()
	engine := p.engine
	p.mu.Unlock()
	if engine != nil {
		engine.Focus()
	}
}

// renew points the page at descriptor with a fresh feed. The previous feed
// belongs to the previous engine and is closed.
func (p *Page) renew(descriptor *site.Descriptor) {
	p.mu.Lock()
	old := p.feed
	p.feed = observe.NewFeed(p.logger)
	p.site = descriptor
	p.mu.Unlock()
	old.Close()
}

func (p *Page) setEngine(e Engine) {
	p.mu.Lock()
	p.engine = e
	p.mu.Unlock()
}

// stop closes the running engine, if any, and its feed.
func (p *Page) stop() {
	p.mu.Lock()
	engine := p.engine
	feed := p.feed
	p.engine = nil
	p.mu.Unlock()
	if engine != nil {
		engine.Close()
	}
	feed.Close()
}

// reload serves the nav-th load of the page. The previous engine and its
// feed are dropped; when resolve finds a chat site, start builds the next
// engine on a fresh feed. Loads a newer one has already served are skipped.
func (p *Page) reload(nav uint64, resolve func() *site.Descriptor, start func(*Page) (Engine, error)) error {
	p.loadMu.Lock()
	defer p.loadMu.Unlock()
	if nav <= p.loaded {
		return nil
	}
	p.loaded = nav
	p.stop()

	descriptor := resolve()
	p.renew(descriptor)
	if descriptor == nil {
		return nil
	}
	engine, err := start(p)
	if err != nil {
		return err
	}
	p.setEngine(engine)
	return nil
}

// retire stops the engine for good once a running load has finished.
func (p *Page) retire() {
	p.loadMu.Lock()
	p.loaded = math.MaxUint64
	p.loadMu.Unlock()
	p.stop()
	p.logger.Debugf("closed")
}

// setAliases tells the observer script which nodes are the host's sidebar.
func (p *Page) setAliases() error {
	aliases := []Alias{}
	if sel := p.Site().Selectors().Sidebar; sel != "" {
		aliases = append(aliases, Alias{Selector: sel, Target: observe.TargetSidebar})
	}
	_, err := p.eval(jsSetAliases, aliases)
	return err
}

// ID returns the relay id of the page.
func (p *Page) ID() string { return p.id }

// Site returns the descriptor of the current load, nil when the page is not
// on a supported chat site.
func (p *Page) Site() *site.Descriptor {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.site
}

// Feed returns the change feed of the current load.
func (p *Page) Feed() *observe.Feed {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.feed
}

// URL returns the current location.
func (p *Page) URL() string { return p.page.URL() }

func (p *Page) millis() *float64 {
	return playwright.Float(float64(p.timeout.Milliseconds()))
}

func (p *Page) eval(script string, arg ...interface{}) (interface{}, error) {
	v, err := p.page.Evaluate(script, arg...)
	if err != nil {
		return nil, fmt.Errorf("page script failed: %w", err)
	}
	return v, nil
}

func (p *Page) evalBool(script string, arg ...interface{}) bool {
	v, err := p.eval(script, arg...)
	if err != nil {
		p.logger.Debugf("%v", err)
		return false
	}
	b, _ := v.(bool)
	return b
}

func (p *Page) SetStyle(id, css string) error {
	_, err := p.eval(jsSetStyle, []interface{}{id, css})
	return err
}

func (p *Page) RemoveElement(id string) error {
	_, err := p.eval(jsRemoveElement, id)
	return err
}

func (p *Page) HasElement(id string) bool {
	return p.evalBool(jsHasElement, id)
}

func (p *Page) Exists(selector string) bool {
	return p.evalBool(jsExists, selector)
}

func (p *Page) InsertButtons(anchor string, buttons []present.Button) error {
	arg := make([]map[string]interface{}, 0, len(buttons))
	for _, b := range buttons {
		arg = append(arg, map[string]interface{}{
			"id":      b.ID,
			"type":    string(b.Type),
			"icon":    b.Icon,
			"tooltip": b.Tooltip,
			"color":   b.Color,
		})
	}
	v, err := p.eval(jsInsertButtons, []interface{}{anchor, arg})
	if err != nil {
		return err
	}
	if ok, _ := v.(bool); !ok {
		return fmt.Errorf("%w: %s", present.ErrAnchorMissing, anchor)
	}
	return nil
}

func (p *Page) setAttribute(id, name, value string) error {
	v, err := p.eval(jsSetAttribute, []interface{}{id, name, value})
	if err != nil {
		return err
	}
	if ok, _ := v.(bool); !ok {
		return fmt.Errorf("element %s not found", id)
	}
	return nil
}

func (p *Page) SetButtonIcon(id, icon string) error {
	return p.setAttribute(id, "data-icon", icon)
}

func (p *Page) SetTooltip(id, text string) error {
	return p.setAttribute(id, "title", text)
}

func (p *Page) SetButtonColor(ids []string, color string) error {
	_, err := p.eval(jsSetColor, []interface{}{ids, color})
	return err
}

// Click performs a real click, so the host page's own handlers run.
func (p *Page) Click(selector string) error {
	if err := p.page.Click(selector, playwright.PageClickOptions{Timeout: p.millis()}); err != nil {
		return fmt.Errorf("click failed: %w", err)
	}
	return nil
}

func (p *Page) ColorScheme() present.Scheme {
	v, err := p.eval(jsColorScheme)
	if err != nil {
		return present.SchemeLight
	}
	if s, _ := v.(string); s == string(present.SchemeDark) {
		return present.SchemeDark
	}
	return present.SchemeLight
}

func (p *Page) ShowNotification(n present.Notification) error {
	duration := n.Duration
	if duration <= 0 {
		duration = 1750 * time.Millisecond
	}
	_, err := p.eval(jsNotify, []interface{}{n.Message, string(n.State), n.Position, duration.Milliseconds(), n.Shadow})
	return err
}

func (p *Page) ShowAlert(a present.AlertOptions) error {
	_, err := p.eval(jsAlert, []interface{}{a.Title, a.Message, a.Buttons, a.Checkbox, a.Width})
	return err
}

func (p *Page) IsFullScreen() bool {
	return p.evalBool(jsIsFullScreen)
}

// RequestFullScreen asks the page for fullscreen. Browsers only honor it
// during a user gesture, which a click on the injected button is.
func (p *Page) RequestFullScreen(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.eval(jsRequestFullScreen)
	return err
}

func (p *Page) ExitFullScreen(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := p.eval(jsExitFullScreen)
	return err
}

// SidebarHidden reports the host sidebar as hidden when it is absent or
// collapsed below a usable width.
func (p *Page) SidebarHidden() bool {
	d := p.Site()
	if d == nil || d.Selectors().Sidebar == "" {
		return false
	}
	return p.evalBool(jsSidebarHidden, d.Selectors().Sidebar)
}

// Close stops the engine and closes the tab.
func (p *Page) Close() error {
	p.retire()
	if err := p.page.Close(); err != nil {
		return fmt.Errorf("failed to close page: %w", err)
	}
	return nil
}
