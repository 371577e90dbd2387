// Package popup is the terminal settings popup. It edits the stored settings
// and tells the active chat tab to re-read them.
package popup

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/entrhq/widescreen/pkg/config"
	"github.com/entrhq/widescreen/pkg/present"
	"github.com/entrhq/widescreen/pkg/relay"
)

// writeClipboard is swapped in tests.
var writeClipboard = clipboard.WriteAll

// entry is one toggle row. Inverted rows store the negation of what they
// show, e.g. "Mode notifications" is on while notifDisabled is false.
type entry struct {
	setting  config.Setting
	label    string
	inverted bool
}

var entries = []entry{
	{setting: config.ExtensionDisabled, label: "Extension", inverted: true},
	{setting: config.FullerWindows, label: "Fuller windows"},
	{setting: config.TCBDisabled, label: "Taller chatbox", inverted: true},
	{setting: config.HiddenHeader, label: "Hide header"},
	{setting: config.HiddenFooter, label: "Hide footer"},
	{setting: config.NotifDisabled, label: "Mode notifications", inverted: true},
	{setting: config.NCBDisabled, label: "New chat button", inverted: true},
}

type keyMap struct {
	Up     key.Binding
	Down   key.Binding
	Toggle key.Binding
	About  key.Binding
	Copy   key.Binding
	Quit   key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Toggle, k.About, k.Copy, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var keys = keyMap{
	Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Toggle: key.NewBinding(key.WithKeys(" ", "enter"), key.WithHelp("space", "toggle")),
	About:  key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "about")),
	Copy:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "copy settings")),
	Quit:   key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
}

type loadedMsg struct {
	values map[config.Setting]bool
	err    error
}

type savedMsg struct {
	setting config.Setting
	value   bool
	err     error
}

type statusMsg string

// Model is the bubbletea model of the popup.
type Model struct {
	ctx      context.Context
	settings *config.Settings
	sender   relay.Sender
	msgs     present.Messages

	values map[config.Setting]bool
	cursor int
	status string
	help   help.Model
	width  int
	ready  bool
}

// New creates the popup. sender reaches the background context.
func New(ctx context.Context, settings *config.Settings, sender relay.Sender, msgs present.Messages) Model {
	if msgs == nil {
		msgs = present.English
	}
	return Model{
		ctx:      ctx,
		settings: settings,
		sender:   sender,
		msgs:     msgs,
		values:   make(map[config.Setting]bool),
		help:     help.New(),
	}
}

func (m Model) Init() tea.Cmd {
	return m.load
}

func (m Model) load() tea.Msg {
	values, err := m.settings.Load(m.ctx, config.AllSettings...)
	return loadedMsg{values: values, err: err}
}

// shown is the value the row displays.
func (m Model) shown(e entry) bool {
	return m.values[e.setting] != e.inverted
}

func (m Model) disabled() bool {
	return m.values[config.ExtensionDisabled]
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case loadedMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("failed to load settings: %v", msg.err)
			return m, nil
		}
		m.values = msg.values
		m.ready = true
		return m, nil

	case savedMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("failed to save %s: %v", msg.setting, msg.err)
			return m, nil
		}
		m.values[msg.setting] = msg.value
		return m, m.announce(msg.setting)

	case statusMsg:
		m.status = string(msg)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, keys.Down):
		if m.cursor < len(entries)-1 {
			m.cursor++
		}
	case key.Matches(msg, keys.Toggle):
		if !m.ready {
			return m, nil
		}
		e := entries[m.cursor]
		if m.disabled() && e.setting != config.ExtensionDisabled {
			return m, nil
		}
		return m, m.save(e.setting, !m.values[e.setting])
	case key.Matches(msg, keys.About):
		return m, m.send(relay.ActionShowAbout, nil, "about sent to chat tab")
	case key.Matches(msg, keys.Copy):
		return m, m.copySettings
	}
	return m, nil
}

func (m Model) save(setting config.Setting, value bool) tea.Cmd {
	return func() tea.Msg {
		err := m.settings.Save(m.ctx, setting, value)
		return savedMsg{setting: setting, value: value, err: err}
	}
}

// announce pushes the new settings to the active tab and, for toggles that
// change what the tab shows, a notification naming the new state.
func (m Model) announce(setting config.Setting) tea.Cmd {
	cmds := []tea.Cmd{m.send(relay.ActionSyncConfigToUI, nil, "")}
	for _, e := range entries {
		if e.setting != setting || setting == config.ExtensionDisabled {
			continue
		}
		word := m.msgs.Get(present.KeyStateOff)
		if m.shown(e) {
			word = m.msgs.Get(present.KeyStateOn)
		}
		label := e.label
		if setting == config.NotifDisabled {
			label = m.msgs.Get(present.KeyModeNotifs)
		}
		cmds = append(cmds, m.send(relay.ActionNotify,
			relay.NotifyOptions{Msg: label + " " + strings.ToUpper(word), Pos: "bottom-right"}, ""))
	}
	return tea.Batch(cmds...)
}

func (m Model) send(action relay.Action, options any, ok string) tea.Cmd {
	return func() tea.Msg {
		msg, err := relay.NewMessage(action, relay.BackgroundID, options)
		if err == nil {
			err = m.sender.Send(msg)
		}
		if err != nil {
			return statusMsg(fmt.Sprintf("%s not delivered: %v", action, err))
		}
		return statusMsg(ok)
	}
}

func (m Model) copySettings() tea.Msg {
	if err := writeClipboard(m.summary()); err != nil {
		return statusMsg(fmt.Sprintf("copy failed: %v", err))
	}
	return statusMsg("settings copied to clipboard")
}

// summary renders the stored settings one per line.
func (m Model) summary() string {
	var b strings.Builder
	for _, s := range config.AllSettings {
		fmt.Fprintf(&b, "%s: %t\n", m.settings.Key(s), m.values[s])
	}
	return b.String()
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.msgs.Get(present.KeyAppSymbol)+" "+m.msgs.Get(present.KeyAppName)) + "\n\n")

	if !m.ready {
		b.WriteString(statusStyle.Render("loading settings...") + "\n")
	} else {
		for i, e := range entries {
			state := offStyle.Render("OFF")
			if m.shown(e) {
				state = onStyle.Render("ON ")
			}
			line := fmt.Sprintf("%s  %s", state, e.label)

			switch {
			case i == m.cursor:
				line = selectedStyle.Render("> " + line)
			case m.disabled() && e.setting != config.ExtensionDisabled:
				line = itemStyle.Render(dimStyle.Render(line))
			default:
				line = itemStyle.Render(line)
			}
			b.WriteString(line + "\n")
		}
	}

	if m.status != "" {
		b.WriteString("\n" + statusStyle.Render(m.status) + "\n")
	}
	b.WriteString("\n" + m.help.View(keys))
	return boxStyle.Render(b.String())
}

// Run shows the popup until the user quits.
func Run(ctx context.Context, settings *config.Settings, sender relay.Sender, msgs present.Messages) error {
	p := tea.NewProgram(New(ctx, settings, sender, msgs), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("popup failed: %w", err)
	}
	return nil
}
