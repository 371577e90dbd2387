package content

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/widescreen/pkg/config"
	"github.com/entrhq/widescreen/pkg/dom"
	"github.com/entrhq/widescreen/pkg/mode"
	"github.com/entrhq/widescreen/pkg/observe"
	"github.com/entrhq/widescreen/pkg/present"
	"github.com/entrhq/widescreen/pkg/relay"
	"github.com/entrhq/widescreen/pkg/site"
)

const (
	loggedIn = `<html class="dark"><head></head><body>
<nav><div class="bg-token-sidebar-surface-primary"></div><button data-testid="close-sidebar-button"></button></nav>
<main><form><div><textarea id="prompt-textarea"></textarea></div></form></main>
</body></html>`

	loggedOut = `<html><head></head><body>
<header><button data-testid="login-button">Log in</button></header>
<main><form><div><textarea id="prompt-textarea"></textarea></div></form></main>
</body></html>`

	loading = `<html><head></head><body>
<nav><button data-testid="close-sidebar-button"></button></nav>
<main><form></form></main>
</body></html>`
)

type platform struct {
	mu            sync.Mutex
	sidebarHidden bool
}

func (p *platform) IsFullScreen() bool                      { return false }
func (p *platform) RequestFullScreen(context.Context) error { return nil }
func (p *platform) ExitFullScreen(context.Context) error    { return nil }

func (p *platform) SidebarHidden() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sidebarHidden
}

type fixture struct {
	doc      *dom.Document
	feed     *observe.Feed
	settings *config.Settings
	tab      *Tab
}

func newFixture(t *testing.T, markup string, stored map[config.Setting]bool, timing config.TimingConfig) *fixture {
	t.Helper()

	descriptor, err := site.DefaultRegistry().Lookup("chatgpt.com")
	require.NoError(t, err)

	feed := observe.NewFeed(nil)
	doc, err := dom.Parse(markup, feed)
	require.NoError(t, err)

	settings := config.NewSettings(config.NewMemoryStore(nil), "")
	for name, v := range stored {
		require.NoError(t, settings.Save(context.Background(), name, v))
	}

	tab := NewTab(settings, descriptor, doc, &platform{}, feed, Options{ID: "tab-1", Timing: timing})
	t.Cleanup(tab.Close)
	return &fixture{doc: doc, feed: feed, settings: settings, tab: tab}
}

func (f *fixture) settle(t *testing.T) {
	t.Helper()
	require.True(t, f.feed.Settle(2*time.Second))
}

func TestInitLoggedIn(t *testing.T) {
	f := newFixture(t, loggedIn, map[config.Setting]bool{config.WideScreen: true}, config.TimingConfig{})

	require.NoError(t, f.tab.Init(context.Background()))
	f.settle(t)

	assert.True(t, f.tab.Site().HasSidebar())
	assert.True(t, f.doc.HasElement(present.WideScreenStyleID))
	assert.ElementsMatch(t,
		[]string{"fullScreen-btn", "fullWindow-btn", "wideScreen-btn", "newChat-btn"},
		f.doc.ButtonIDs())
	assert.True(t, f.tab.Controller().IsActive(mode.WideScreen))
	assert.Equal(t, "tab-1", f.tab.ID())
}

func TestInitLoggedOutHasNoSidebar(t *testing.T) {
	f := newFixture(t, loggedOut, map[config.Setting]bool{config.FullWindow: true}, config.TimingConfig{})

	require.NoError(t, f.tab.Init(context.Background()))
	f.settle(t)

	assert.False(t, f.tab.Site().HasSidebar())
	assert.False(t, f.tab.Site().HasNativeFullWindowToggle())
	assert.NotContains(t, f.doc.ButtonIDs(), "fullWindow-btn")
	assert.False(t, f.tab.Controller().IsActive(mode.FullWindow))
}

func TestInitHidesFooterOnlyWhenRendered(t *testing.T) {
	stored := map[config.Setting]bool{config.HiddenFooter: true}
	timing := config.TimingConfig{ProbeDeadline: 50 * time.Millisecond}

	// no disclaimer under the chat form
	f := newFixture(t, loggedIn, stored, timing)
	require.NoError(t, f.tab.Init(context.Background()))
	f.settle(t)
	assert.Empty(t, f.tab.Site().Selectors().Footer)
	css, ok := f.doc.StyleText(present.TweaksStyleID)
	require.True(t, ok)
	assert.NotContains(t, css, "visibility: hidden")

	withFooter := strings.Replace(loggedIn, "</form>", "</form><div>disclaimer</div>", 1)
	f = newFixture(t, withFooter, stored, timing)
	require.NoError(t, f.tab.Init(context.Background()))
	f.settle(t)
	assert.Equal(t, "main form ~ div", f.tab.Site().Selectors().Footer)
	css, ok = f.doc.StyleText(present.TweaksStyleID)
	require.True(t, ok)
	assert.Contains(t, css, "main form ~ div { visibility: hidden")
}

func TestInitWaitsForChatInput(t *testing.T) {
	f := newFixture(t, loading, nil, config.TimingConfig{ReadinessDeadline: 2 * time.Second})

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = f.doc.Append("form", `<div><textarea id="prompt-textarea"></textarea></div>`)
	}()

	require.NoError(t, f.tab.Init(context.Background()))
	f.settle(t)
	assert.Contains(t, f.doc.ButtonIDs(), "wideScreen-btn")
}

func TestInitWithoutReadyPage(t *testing.T) {
	f := newFixture(t, `<html><head></head><body><main></main></body></html>`, nil,
		config.TimingConfig{ReadinessDeadline: 30 * time.Millisecond})

	start := time.Now()
	require.NoError(t, f.tab.Init(context.Background()))
	assert.Less(t, time.Since(start), time.Second)

	// no toggle and no login button: unknown counts as no sidebar
	assert.False(t, f.tab.Site().HasSidebar())
	assert.Empty(t, f.doc.ButtonIDs())
}

func TestRelayedCommands(t *testing.T) {
	f := newFixture(t, loggedIn, nil, config.TimingConfig{})
	require.NoError(t, f.tab.Init(context.Background()))
	f.settle(t)

	hub := relay.NewHub(0, nil)
	ep, err := hub.Register(f.tab.ID(), relay.KindTab)
	require.NoError(t, err)
	hub.SetActiveTab(f.tab.ID())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.tab.Serve(ctx, ep)

	send := func(action relay.Action, options any) {
		msg, err := relay.NewMessage(action, relay.ToActiveTab, options)
		require.NoError(t, err)
		require.NoError(t, hub.Send(msg))
	}

	send(relay.ActionNotify, relay.NotifyOptions{Msg: "Full-window ON", NotifDuration: 1.5, Shadow: "chatgpt"})
	require.Eventually(t, func() bool { return len(f.doc.Notifications()) == 1 }, 2*time.Second, 5*time.Millisecond)
	n := f.doc.Notifications()[0]
	assert.Equal(t, present.On, n.State)
	assert.Contains(t, n.Message, "Full-window")
	assert.Equal(t, 1500*time.Millisecond, n.Duration)
	assert.True(t, n.Shadow)

	send(relay.ActionAlert, relay.AlertOptions{Title: "Update", Msg: "v2", Btns: []string{"OK"}})
	send(relay.ActionShowAbout, nil)
	require.Eventually(t, func() bool { return len(f.doc.Alerts()) == 2 }, 2*time.Second, 5*time.Millisecond)
	alerts := f.doc.Alerts()
	assert.Equal(t, "Update", alerts[0].Title)
	assert.Contains(t, alerts[1].Title, "Widescreen")

	// another context turned wide screen on
	require.NoError(t, f.settings.Save(context.Background(), config.WideScreen, true))
	send(relay.ActionSyncConfigToUI, nil)
	require.Eventually(t, func() bool { return f.doc.HasElement(present.WideScreenStyleID) }, 2*time.Second, 5*time.Millisecond)

	// and then disabled the extension
	require.NoError(t, f.settings.Save(context.Background(), config.ExtensionDisabled, true))
	send(relay.ActionSyncConfigToUI, nil)
	require.Eventually(t, func() bool { return len(f.doc.ButtonIDs()) == 0 }, 2*time.Second, 5*time.Millisecond)
	assert.False(t, f.doc.HasElement(present.WideScreenStyleID))

	stored, err := f.settings.Load(context.Background(), config.WideScreen)
	require.NoError(t, err)
	assert.True(t, stored[config.WideScreen], "disabling keeps stored modes")
}

func TestButtonClickAfterInit(t *testing.T) {
	f := newFixture(t, loggedIn, nil, config.TimingConfig{})
	require.NoError(t, f.tab.Init(context.Background()))
	f.settle(t)

	require.NoError(t, f.doc.Click("#wideScreen-btn"))
	f.settle(t)
	assert.True(t, f.tab.Controller().IsActive(mode.WideScreen))
	assert.True(t, f.doc.HasElement(present.WideScreenStyleID))

	stored, err := f.settings.Load(context.Background(), config.WideScreen)
	require.NoError(t, err)
	assert.True(t, stored[config.WideScreen])
}

func TestCloseStopsObserving(t *testing.T) {
	f := newFixture(t, loggedIn, nil, config.TimingConfig{})
	require.NoError(t, f.tab.Init(context.Background()))
	f.settle(t)

	f.tab.Close()
	require.NoError(t, f.doc.Click("#wideScreen-btn"))
	time.Sleep(20 * time.Millisecond)
	assert.False(t, f.tab.Controller().IsActive(mode.WideScreen))
}
