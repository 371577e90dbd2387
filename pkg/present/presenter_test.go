package present_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/widescreen/pkg/dom"
	"github.com/entrhq/widescreen/pkg/present"
	"github.com/entrhq/widescreen/pkg/site"
)

const chatPage = `<html class="light"><head></head><body>
<nav><div class="bg-token-sidebar-surface-primary"></div><button data-testid="open-sidebar-button"></button></nav>
<main><div class="sticky"></div><form><div><textarea id="prompt-textarea"></textarea><button data-testid="send-button"></button></div></form><div>footer</div>
<a href="/">new</a></main>
</body></html>`

func chatgpt(t *testing.T) *site.Descriptor {
	t.Helper()
	d, err := site.DefaultRegistry().Lookup("chatgpt.com")
	require.NoError(t, err)
	return d
}

func newPresenter(t *testing.T, adapter site.Adapter) (*present.Presenter, *dom.Document) {
	t.Helper()
	doc, err := dom.Parse(chatPage, nil)
	require.NoError(t, err)
	return present.New(doc, adapter, present.English, nil), doc
}

func TestApplyStylesheet(t *testing.T) {
	p, doc := newPresenter(t, chatgpt(t))

	p.ApplyStylesheet("wideScreen", true)
	assert.True(t, p.HasStylesheet("wideScreen"))
	css, _ := doc.StyleText(present.WideScreenStyleID)
	assert.Contains(t, css, ".text-base")

	p.ApplyStylesheet("wideScreen", true)
	assert.Equal(t, []string{present.WideScreenStyleID}, doc.StyleIDs(), "re-applying does not duplicate")

	p.ApplyStylesheet("fullWindow", true)
	css, _ = doc.StyleText(present.FullWindowStyleID)
	assert.Contains(t, css, "display: none")

	p.ApplyStylesheet("wideScreen", false)
	p.ApplyStylesheet("fullWindow", false)
	assert.Empty(t, doc.StyleIDs())

	p.ApplyStylesheet("fullScreen", true)
	assert.Empty(t, doc.StyleIDs(), "full screen has no stylesheet")
}

func TestInsertButtonsIdempotent(t *testing.T) {
	p, doc := newPresenter(t, chatgpt(t))

	assert.False(t, p.ButtonsPresent())
	p.InsertButtons()
	p.InsertButtons()
	assert.True(t, p.ButtonsPresent())
	assert.Equal(t, []string{"newChat-btn", "wideScreen-btn", "fullWindow-btn", "fullScreen-btn"}, doc.ButtonIDs())

	icon, _ := doc.Attribute("#wideScreen-btn", "data-icon")
	assert.Equal(t, "wideScreen-off", icon)
	title, _ := doc.Attribute("#wideScreen-btn", "title")
	assert.Equal(t, "Wide screen", title)

	p.RemoveButtons()
	assert.Empty(t, doc.ButtonIDs())
	assert.False(t, p.ButtonsPresent())
}

func TestInsertButtonsWithoutSidebar(t *testing.T) {
	p, doc := newPresenter(t, chatgpt(t).WithSidebar(false))
	p.InsertButtons()
	assert.Equal(t, []string{"newChat-btn", "wideScreen-btn", "fullScreen-btn"}, doc.ButtonIDs())
}

func TestInsertButtonsMissingAnchor(t *testing.T) {
	doc, err := dom.Parse("<html><head></head><body></body></html>", nil)
	require.NoError(t, err)
	p := present.New(doc, chatgpt(t), nil, nil)

	p.InsertButtons()
	assert.False(t, p.ButtonsPresent())
}

func TestIconAndTooltip(t *testing.T) {
	p, doc := newPresenter(t, chatgpt(t))

	// state recorded before insertion is rendered on insert
	p.UpdateButtonIcon(present.ButtonWideScreen, present.On)
	p.InsertButtons()
	icon, _ := doc.Attribute("#wideScreen-btn", "data-icon")
	assert.Equal(t, "wideScreen-on", icon)
	title, _ := doc.Attribute("#wideScreen-btn", "title")
	assert.Equal(t, "Exit wide screen", title)

	p.UpdateButtonIcon(present.ButtonWideScreen, present.Off)
	p.UpdateTooltip(present.ButtonWideScreen, false)
	icon, _ = doc.Attribute("#wideScreen-btn", "data-icon")
	assert.Equal(t, "wideScreen-off", icon)
	title, _ = doc.Attribute("#wideScreen-btn", "title")
	assert.Equal(t, "Wide screen", title)

	title, _ = doc.Attribute("#newChat-btn", "title")
	assert.Equal(t, "New chat", title)
}

func TestTooltipKey(t *testing.T) {
	assert.Equal(t, "tooltip_fullScreenOFF", present.TooltipKey(present.ButtonFullScreen, true))
	assert.Equal(t, "tooltip_fullScreenON", present.TooltipKey(present.ButtonFullScreen, false))
	assert.Equal(t, "tooltip_newChat", present.TooltipKey(present.ButtonNewChat, true))
	assert.Equal(t, "unknown", present.English.Get("unknown"))
}

func TestRefreshColor(t *testing.T) {
	p, doc := newPresenter(t, chatgpt(t))
	p.InsertButtons()

	style, _ := doc.Attribute("#fullScreen-btn", "style")
	assert.Contains(t, style, "#202123")

	require.NoError(t, doc.SetColorScheme(present.SchemeDark))
	p.RefreshColor()
	style, _ = doc.Attribute("#fullScreen-btn", "style")
	assert.Contains(t, style, "fill: white")
}

func TestTweaks(t *testing.T) {
	p, doc := newPresenter(t, chatgpt(t))

	p.UpdateTweaks(present.Tweaks{HiddenHeader: true, NCBDisabled: true})
	css, ok := doc.StyleText(present.TweaksStyleID)
	require.True(t, ok)
	assert.Contains(t, css, "#prompt-textarea { max-height: 68vh }")
	assert.Contains(t, css, "main .sticky { display: none !important }")
	assert.Contains(t, css, "#newChat-btn { display: none }")
	assert.NotContains(t, css, "visibility: hidden")

	p.UpdateTweaks(present.Tweaks{TCBDisabled: true, HiddenFooter: true})
	css, _ = doc.StyleText(present.TweaksStyleID)
	assert.NotContains(t, css, "68vh")
	assert.Contains(t, css, "visibility: hidden")
	assert.Contains(t, css, "#newChat-btn { display: flex }")
}

func TestNotify(t *testing.T) {
	p, doc := newPresenter(t, chatgpt(t))

	p.NotifyMode("wideScreen", true)
	p.Notify(present.Notification{Message: "Full-window OFF"})

	notes := doc.Notifications()
	require.Len(t, notes, 2)
	assert.Equal(t, "↔️ Wide screen", notes[0].Message)
	assert.Equal(t, present.On, notes[0].State)
	assert.Equal(t, "↔️ Full-window", notes[1].Message)
	assert.Equal(t, present.Off, notes[1].State)

	p.UpdateTweaks(present.Tweaks{NotifDisabled: true})
	p.NotifyMode("fullScreen", true)
	p.Notify(present.Notification{Message: "Mode notifications OFF"})
	notes = doc.Notifications()
	require.Len(t, notes, 3, "only the notification setting itself gets through")
	assert.Equal(t, "↔️ Mode notifications", notes[2].Message)
}

func TestAlertAndClicks(t *testing.T) {
	p, doc := newPresenter(t, chatgpt(t))

	p.Alert(present.AlertOptions{Title: "Press F11"})
	require.Len(t, doc.Alerts(), 1)

	toggled := 0
	require.NoError(t, doc.OnClick("button[data-testid*=sidebar-button]", func() { toggled++ }))
	assert.True(t, p.ClickNativeToggle())
	assert.Equal(t, 1, toggled)

	newChats := 0
	require.NoError(t, doc.OnClick("a[href='/']", func() { newChats++ }))
	p.ClickNewChat()
	assert.Equal(t, 1, newChats)

	poe, err := site.DefaultRegistry().Lookup("poe.com")
	require.NoError(t, err)
	p.SetSite(poe)
	assert.False(t, p.ClickNativeToggle(), "poe has no native toggle")
}

func TestReset(t *testing.T) {
	p, doc := newPresenter(t, chatgpt(t))
	p.ApplyStylesheet("wideScreen", true)
	p.ApplyStylesheet("fullWindow", true)
	p.UpdateTweaks(present.Tweaks{})
	p.InsertButtons()

	p.Reset()
	assert.Empty(t, doc.StyleIDs())
	assert.Empty(t, doc.ButtonIDs())
}
