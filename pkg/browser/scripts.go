package browser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/entrhq/widescreen/pkg/observe"
)

// Names of the functions exposed to page scripts.
const (
	recordBinding = "__widescreenRecord"
	focusBinding  = "__widescreenFocus"
)

// aliasesVar holds the aliases of the current site once the page is matched.
const aliasesVar = "__widescreenAliases"

// observedAttributes limits attribute records to the ones the engine reads:
// color scheme on the root, sidebar state and geometry.
var observedAttributes = []string{"class", "style", "data-state", "data-color-scheme", "width"}

// Alias names nodes matching Selector as Target in published records.
type Alias struct {
	Selector string `json:"selector"`
	Target   string `json:"target"`
}

// observerScript returns the init script that forwards DOM mutations and the
// window events the engine listens to. It runs in the top frame before any
// page script on every navigation and reports through recordBinding as a
// JSON array of observe.Record. aliases apply until jsSetAliases replaces
// them.
func observerScript(aliases []Alias) (string, error) {
	if aliases == nil {
		aliases = []Alias{}
	}
	aliasJSON, err := json.Marshal(aliases)
	if err != nil {
		return "", fmt.Errorf("failed to encode aliases: %w", err)
	}
	attrJSON, err := json.Marshal(observedAttributes)
	if err != nil {
		return "", fmt.Errorf("failed to encode attribute filter: %w", err)
	}

	r := strings.NewReplacer(
		"$ALIASVAR", aliasesVar,
		"$ALIASES", string(aliasJSON),
		"$ATTRIBUTES", string(attrJSON),
		"$RECORD", recordBinding,
		"$FOCUS", focusBinding,
		"$ROOT", observe.TargetRoot,
		"$HEAD", observe.TargetHead,
		"$BODY", observe.TargetBody,
		"$DOCUMENT", observe.TargetDocument,
		"$RESIZE", string(observe.KindResize),
		"$FULLSCREEN", string(observe.KindFullscreen),
		"$KEYDOWN", string(observe.KindKeyDown),
		"$CLICK", string(observe.KindClick),
	)
	return r.Replace(observerTemplate), nil
}

const observerTemplate = `(() => {
  if (window !== window.top || window.__widescreenObserved) return;
  window.__widescreenObserved = true;

  const defaultAliases = $ALIASES;
  const send = records => {
    if (records.length && typeof window.$RECORD === 'function') window.$RECORD(JSON.stringify(records));
  };
  const targetOf = node => {
    if (node === document.documentElement) return '$ROOT';
    if (node === document.head) return '$HEAD';
    if (node === document.body) return '$BODY';
    for (const a of (window.$ALIASVAR || defaultAliases)) {
      if (node.matches && node.matches(a.selector)) return a.target;
    }
    return node.id || (node.nodeName || '').toLowerCase();
  };
  const elements = list => [...list].filter(n => n.nodeType === 1).map(targetOf);

  const observer = new MutationObserver(mutations => send(mutations.map(m => ({
    kind: m.type,
    target: targetOf(m.target),
    attribute: m.attributeName || undefined,
    added: elements(m.addedNodes),
    removed: elements(m.removedNodes),
  }))));
  const observe = () => observer.observe(document.documentElement, {
    childList: true, subtree: true, attributes: true, attributeFilter: $ATTRIBUTES,
  });
  if (document.documentElement) observe();
  else document.addEventListener('readystatechange', observe, { once: true });

  window.addEventListener('resize', () => send([{ kind: '$RESIZE', target: '$DOCUMENT' }]));
  document.addEventListener('fullscreenchange', () => send([{ kind: '$FULLSCREEN', target: '$DOCUMENT' }]));
  document.addEventListener('keydown', e => send([{ kind: '$KEYDOWN', target: '$DOCUMENT', key: e.key }]), true);
  document.addEventListener('click', e => {
    const btn = e.target.closest && e.target.closest('[data-type][id$="-btn"]');
    if (btn) send([{ kind: '$CLICK', target: btn.id }]);
  }, true);

  const focused = () => {
    if (document.visibilityState === 'visible' && typeof window.$FOCUS === 'function') window.$FOCUS();
  };
  document.addEventListener('visibilitychange', focused);
  window.addEventListener('focus', focused);
})();`

// decodeRecords parses a payload sent by the observer script.
func decodeRecords(payload string) ([]observe.Record, error) {
	var records []observe.Record
	if err := json.Unmarshal([]byte(payload), &records); err != nil {
		return nil, fmt.Errorf("invalid record payload: %w", err)
	}
	return records, nil
}

// Page-side snippets evaluated by Page. Each takes a single argument.
const (
	jsSetAliases = `aliases => { window.` + aliasesVar + ` = aliases; }`

	jsSetStyle = `([id, css]) => {
  let style = document.getElementById(id);
  if (!style) {
    style = document.createElement('style');
    style.id = id;
    document.head.append(style);
  }
  style.textContent = css;
}`

	jsRemoveElement = `id => { const el = document.getElementById(id); if (el) el.remove(); }`

	jsHasElement = `id => !!document.getElementById(id)`

	jsExists = `selector => !!document.querySelector(selector)`

	jsInsertButtons = `([anchor, buttons]) => {
  const target = document.querySelector(anchor);
  if (!target) return false;
  let prev = target;
  for (const b of buttons) {
    const el = document.createElement('div');
    el.id = b.id;
    el.dataset.type = b.type;
    el.dataset.icon = b.icon;
    el.title = b.tooltip;
    el.style.cssText = 'cursor: pointer; fill: ' + b.color + '; stroke: ' + b.color;
    prev.after(el);
    prev = el;
  }
  return true;
}`

	jsSetAttribute = `([id, name, value]) => {
  const el = document.getElementById(id);
  if (!el) return false;
  el.setAttribute(name, value);
  return true;
}`

	jsSetColor = `([ids, color]) => {
  for (const id of ids) {
    const el = document.getElementById(id);
    if (el) { el.style.fill = color; el.style.stroke = color; }
  }
}`

	jsColorScheme = `() => {
  const root = document.documentElement;
  return root.classList.contains('dark') || root.dataset.colorScheme === 'dark' ? 'dark' : 'light';
}`

	jsNotify = `([msg, state, pos, ms, shadow]) => {
  const note = document.createElement('div');
  note.className = 'widescreen-notif';
  note.dataset.pos = pos || 'top-right';
  note.textContent = msg;
  if (state) {
    const word = document.createElement('span');
    word.className = 'widescreen-notif-' + state.toLowerCase();
    word.textContent = ' ' + state;
    note.append(word);
  }
  if (shadow) note.style.boxShadow = '0 4px 18px rgba(0, 0, 0, .35)';
  document.body.append(note);
  setTimeout(() => note.remove(), ms);
}`

	jsAlert = `([title, msg, buttons, checkbox, width]) => {
  const modal = document.createElement('div');
  modal.className = 'widescreen-alert';
  if (width) modal.style.width = width + 'px';
  const h = document.createElement('h2');
  h.textContent = title;
  const p = document.createElement('p');
  p.textContent = msg;
  modal.append(h, p);
  if (checkbox) {
    const label = document.createElement('label');
    const box = document.createElement('input');
    box.type = 'checkbox';
    label.append(box, ' ' + checkbox);
    modal.append(label);
  }
  for (const text of (buttons && buttons.length ? buttons : ['OK'])) {
    const btn = document.createElement('button');
    btn.textContent = text;
    btn.onclick = () => modal.remove();
    modal.append(btn);
  }
  document.body.append(modal);
}`

	jsIsFullScreen = `() => !!document.fullscreenElement || window.innerHeight === screen.height`

	jsRequestFullScreen = `() => document.documentElement.requestFullscreen()`

	jsExitFullScreen = `() => document.exitFullscreen()`

	jsSidebarHidden = `selector => {
  const el = document.querySelector(selector);
  return !el || el.getBoundingClientRect().width < 100;
}`
)
