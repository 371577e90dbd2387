// Package browser drives real chat pages through Playwright. A Session owns
// one browser and its context; every chat tab it opens is a Page that acts
// as the engine's Document and Platform and feeds the page's mutations back
// through an exposed binding.
package browser

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/widescreen/pkg/logging"
	"github.com/entrhq/widescreen/pkg/relay"
	"github.com/entrhq/widescreen/pkg/site"
)

// Defaults for Options.
const (
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720
	DefaultTimeout        = 500 * time.Millisecond
)

// Options configure a Session.
type Options struct {
	Headless bool
	Width    int
	Height   int

	// Timeout bounds element actions such as clicks on the host's controls
	Timeout time.Duration

	Logger *logging.Logger
}

// PageFunc starts the engine on a page that finished loading a supported
// chat site. The engine is closed on the next load and when the page closes.
type PageFunc func(ctx context.Context, page *Page) (Engine, error)

// Session is a running browser. Every tab of its context is tracked, whether
// the engine opened it or the user did.
type Session struct {
	pw       *playwright.Playwright
	browser  playwright.Browser
	context  playwright.BrowserContext
	registry *site.Registry
	opts     Options
	logger   *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	pages  map[string]*Page
	byTab  map[playwright.Page]*Page
	nextID int
	onPage PageFunc
}

var _ relay.TabOpener = (*Session)(nil)

// Launch installs the Playwright driver if needed and starts chromium.
// Engines started on the session's pages run until ctx is done or the
// session is closed.
func Launch(ctx context.Context, registry *site.Registry, opts Options) (*Session, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = DefaultViewportWidth, DefaultViewportHeight
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}

	// keep driver output off the terminal the popup draws on
	runOpts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if err := playwright.Install(runOpts); err != nil {
		return nil, fmt.Errorf("failed to install playwright: %w", err)
	}
	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: opts.Width, Height: opts.Height},
	})
	if err != nil {
		browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("failed to create context: %w", err)
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		pw:       pw,
		browser:  browser,
		context:  bctx,
		registry: registry,
		opts:     opts,
		logger:   opts.Logger,
		ctx:      sctx,
		cancel:   cancel,
		pages:    make(map[string]*Page),
		byTab:    make(map[playwright.Page]*Page),
	}
	if err := s.install(); err != nil {
		cancel()
		bctx.Close()
		browser.Close()
		_ = pw.Stop()
		return nil, err
	}
	return s, nil
}

// install adds the observer script and its bindings to every page of the
// context, including tabs the user opens.
func (s *Session) install() error {
	script, err := observerScript(nil)
	if err != nil {
		return err
	}
	if err := s.context.AddInitScript(playwright.Script{Content: playwright.String(script)}); err != nil {
		return fmt.Errorf("failed to add observer script: %w", err)
	}

	err = s.context.ExposeBinding(recordBinding, func(source *playwright.BindingSource, args ...interface{}) interface{} {
		page := s.pageOf(source.Page)
		if page == nil || len(args) == 0 {
			return nil
		}
		payload, ok := args[0].(string)
		if !ok {
			return nil
		}
		records, err := decodeRecords(payload)
		if err != nil {
			page.logger.Debugf("%v", err)
			return nil
		}
		page.publish(records...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to expose record binding: %w", err)
	}

	err = s.context.ExposeBinding(focusBinding, func(source *playwright.BindingSource, _ ...interface{}) interface{} {
		if page := s.pageOf(source.Page); page != nil {
			page.focus()
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to expose focus binding: %w", err)
	}

	s.context.OnPage(func(tab playwright.Page) { s.adopt(tab) })
	return nil
}

func (s *Session) pageOf(tab playwright.Page) *Page {
	if tab == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byTab[tab]
}

// adopt tracks tab and rebuilds its engine on every load. It runs on the
// driver's event goroutine, so page calls are made from another goroutine.
func (s *Session) adopt(tab playwright.Page) *Page {
	s.mu.Lock()
	if page, ok := s.byTab[tab]; ok {
		s.mu.Unlock()
		return page
	}
	s.nextID++
	id := fmt.Sprintf("tab-%d", s.nextID)
	page := newPage(id, tab, s.opts.Timeout, s.logger.With(id))
	s.byTab[tab] = page
	s.pages[id] = page
	s.mu.Unlock()

	tab.SetDefaultTimeout(float64(s.opts.Timeout.Milliseconds()))
	tab.OnDOMContentLoaded(func(playwright.Page) {
		nav := page.navs.Add(1)
		go func() {
			if err := s.load(page, nav); err != nil {
				page.logger.Warnf("%v", err)
			}
		}()
	})
	tab.OnClose(func(playwright.Page) {
		s.mu.Lock()
		delete(s.byTab, tab)
		delete(s.pages, id)
		s.mu.Unlock()
		go page.retire()
	})
	return page
}

// load replaces the engine of page after its nav-th load.
func (s *Session) load(page *Page, nav uint64) error {
	if s.ctx.Err() != nil {
		return nil
	}
	return page.reload(nav, func() *site.Descriptor { return s.resolve(page) }, s.start)
}

// resolve matches the page's location to a site, nil when unsupported.
func (s *Session) resolve(page *Page) *site.Descriptor {
	rawURL := page.URL()
	u, err := url.Parse(rawURL)
	if err != nil {
		page.logger.Debugf("ignoring %q: %v", rawURL, err)
		return nil
	}
	descriptor, err := s.registry.Lookup(u.Hostname())
	if err != nil {
		page.logger.Debugf("no engine on %s: %v", rawURL, err)
		return nil
	}
	return descriptor
}

func (s *Session) start(page *Page) (Engine, error) {
	if err := page.setAliases(); err != nil {
		page.logger.Debugf("sidebar alias not set: %v", err)
	}

	s.mu.RLock()
	onPage := s.onPage
	s.mu.RUnlock()
	if onPage == nil {
		return nil, nil
	}
	engine, err := onPage(s.ctx, page)
	if err != nil {
		return nil, fmt.Errorf("failed to start engine on %s: %w", page.ID(), err)
	}
	page.logger.Infof("engine started on %s (%s)", page.Site().Name(), page.URL())
	return engine, nil
}

// OnPage sets the function that starts the engine on every loaded page.
func (s *Session) OnPage(fn PageFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onPage = fn
}

// OpenTab opens rawURL in a new page and returns the page id once its
// engine runs. The host must be a supported chat site.
func (s *Session) OpenTab(ctx context.Context, rawURL string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	if _, err := s.registry.Lookup(u.Hostname()); err != nil {
		return "", err
	}

	tab, err := s.context.NewPage()
	if err != nil {
		return "", fmt.Errorf("failed to create page: %w", err)
	}
	page := s.adopt(tab)

	if _, err := tab.Goto(rawURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(0),
	}); err != nil {
		_ = page.Close()
		return "", fmt.Errorf("navigation failed: %w", err)
	}

	// serve the first load here so the engine is up on return; the event
	// handler then finds it already served
	nav := page.navs.Load()
	if nav == 0 {
		nav = 1
	}
	if err := s.load(page, nav); err != nil {
		return page.ID(), err
	}
	s.logger.Infof("opened %s (%s)", page.ID(), rawURL)
	return page.ID(), nil
}

// Pages lists the open page ids.
func (s *Session) Pages() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.pages))
	for id := range s.pages {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close stops every engine and closes the browser and the driver.
func (s *Session) Close() error {
	s.cancel()

	s.mu.Lock()
	pages := make([]*Page, 0, len(s.pages))
	for _, p := range s.pages {
		pages = append(pages, p)
	}
	s.pages = make(map[string]*Page)
	s.byTab = make(map[playwright.Page]*Page)
	s.mu.Unlock()

	for _, p := range pages {
		p.retire()
	}

	var errs []error
	if err := s.context.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.browser.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.pw.Stop(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing browser: %v", errs)
	}
	return nil
}
