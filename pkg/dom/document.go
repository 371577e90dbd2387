// Package dom is an in-memory HTML document implementing present.Document.
//
// It backs the engine when no browser is attached and in tests. Mutations
// made through the port, and the host page simulation helpers, are published
// to an observe.Feed the same way a live page reports them.
package dom

import (
	"fmt"
	"strings"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/entrhq/widescreen/pkg/observe"
	"github.com/entrhq/widescreen/pkg/present"
)

type clickHandler struct {
	sel cascadia.Selector
	fn  func()
}

type alias struct {
	sel  cascadia.Selector
	name string
}

// Document is a parsed HTML tree guarded by a mutex.
type Document struct {
	mu   sync.Mutex
	root *html.Node
	head *html.Node
	body *html.Node

	feed    *observe.Feed
	clicks  []clickHandler
	aliases []alias

	notifications []present.Notification
	alerts        []present.AlertOptions
}

var _ present.Document = (*Document)(nil)

// Parse builds a document from markup. feed may be nil.
func Parse(markup string, feed *observe.Feed) (*Document, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	d := &Document{root: root, feed: feed}
	d.head = cascadia.Query(root, cascadia.MustCompile("head"))
	d.body = cascadia.Query(root, cascadia.MustCompile("body"))
	if d.head == nil || d.body == nil {
		return nil, fmt.Errorf("document has no head or body")
	}
	return d, nil
}

// MustParse is Parse for fixed markup.
func MustParse(markup string, feed *observe.Feed) *Document {
	d, err := Parse(markup, feed)
	if err != nil {
		panic(err)
	}
	return d
}

func (d *Document) publish(records ...observe.Record) {
	if d.feed != nil {
		d.feed.Publish(records...)
	}
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func (d *Document) byID(id string) *html.Node {
	if id == "" {
		return nil
	}
	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode {
			if v, ok := attr(n, "id"); ok && v == id {
				found = n
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(d.root)
	return found
}

func (d *Document) query(selector string) (*html.Node, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	return sel.MatchFirst(d.root), nil
}

// target names a node in published records: an alias, its id, or its tag.
func (d *Document) target(n *html.Node) string {
	for _, a := range d.aliases {
		if a.sel.Match(n) {
			return a.name
		}
	}
	if id, ok := attr(n, "id"); ok && id != "" {
		return id
	}
	return n.Data
}

func textOf(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

func setText(n *html.Node, text string) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

// SetStyle creates or replaces a <style> element in head.
func (d *Document) SetStyle(id, css string) error {
	d.mu.Lock()
	n := d.byID(id)
	added := n == nil
	if added {
		n = &html.Node{
			Type:     html.ElementNode,
			Data:     "style",
			DataAtom: atom.Style,
			Attr:     []html.Attribute{{Key: "id", Val: id}},
		}
		d.head.AppendChild(n)
	}
	setText(n, css)
	d.mu.Unlock()

	if added {
		d.publish(observe.Record{Kind: observe.KindChildList, Target: observe.TargetHead, Added: []string{id}})
	} else {
		d.publish(observe.Record{Kind: observe.KindChildList, Target: id})
	}
	return nil
}

// RemoveElement detaches the element with id. Absent elements are ignored.
func (d *Document) RemoveElement(id string) error {
	d.mu.Lock()
	n := d.byID(id)
	if n == nil || n.Parent == nil {
		d.mu.Unlock()
		return nil
	}
	parent := n.Parent
	parent.RemoveChild(n)
	target := d.target(parent)
	d.mu.Unlock()

	d.publish(observe.Record{Kind: observe.KindChildList, Target: target, Removed: []string{id}})
	return nil
}

func (d *Document) HasElement(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.byID(id) != nil
}

func (d *Document) Exists(selector string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.query(selector)
	return err == nil && n != nil
}

func buttonNode(b present.Button) *html.Node {
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
		Attr: []html.Attribute{
			{Key: "id", Val: b.ID},
			{Key: "data-type", Val: string(b.Type)},
			{Key: "data-icon", Val: b.Icon},
			{Key: "title", Val: b.Tooltip},
			{Key: "style", Val: colorStyle(b.Color)},
		},
	}
	n.AppendChild(&html.Node{
		Type:     html.ElementNode,
		Data:     "svg",
		DataAtom: atom.Svg,
		Attr:     []html.Attribute{{Key: "height", Val: "18"}},
	})
	return n
}

func colorStyle(color string) string {
	if color == "" {
		return "cursor: pointer"
	}
	return fmt.Sprintf("cursor: pointer; fill: %s; stroke: %s", color, color)
}

// InsertButtons inserts the buttons as siblings right after the anchor.
func (d *Document) InsertButtons(anchor string, buttons []present.Button) error {
	d.mu.Lock()
	a, err := d.query(anchor)
	if err != nil {
		d.mu.Unlock()
		return err
	}
	if a == nil || a.Parent == nil {
		d.mu.Unlock()
		return present.ErrAnchorMissing
	}

	parent, next := a.Parent, a.NextSibling
	ids := make([]string, 0, len(buttons))
	for _, b := range buttons {
		parent.InsertBefore(buttonNode(b), next)
		ids = append(ids, b.ID)
	}
	target := d.target(parent)
	d.mu.Unlock()

	d.publish(observe.Record{Kind: observe.KindChildList, Target: target, Added: ids})
	return nil
}

func (d *Document) setElementAttr(id, key, val string) error {
	d.mu.Lock()
	n := d.byID(id)
	if n == nil {
		d.mu.Unlock()
		return present.ErrAnchorMissing
	}
	setAttr(n, key, val)
	d.mu.Unlock()

	d.publish(observe.Record{Kind: observe.KindAttributes, Target: id, Attribute: key})
	return nil
}

func (d *Document) SetButtonIcon(id, icon string) error {
	return d.setElementAttr(id, "data-icon", icon)
}

func (d *Document) SetTooltip(id, text string) error {
	return d.setElementAttr(id, "title", text)
}

func (d *Document) SetButtonColor(ids []string, color string) error {
	for _, id := range ids {
		if err := d.setElementAttr(id, "style", colorStyle(color)); err != nil {
			return fmt.Errorf("failed to color %s: %w", id, err)
		}
	}
	return nil
}

// Click runs the handlers registered for the first element matching
// selector and publishes a click record for it.
func (d *Document) Click(selector string) error {
	d.mu.Lock()
	n, err := d.query(selector)
	if err != nil {
		d.mu.Unlock()
		return err
	}
	if n == nil {
		d.mu.Unlock()
		return present.ErrAnchorMissing
	}
	var fns []func()
	for _, h := range d.clicks {
		if h.sel.Match(n) {
			fns = append(fns, h.fn)
		}
	}
	target := d.target(n)
	d.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	d.publish(observe.Record{Kind: observe.KindClick, Target: target})
	return nil
}

// ColorScheme reads the scheme from the root element's class or
// data-color-scheme attribute.
func (d *Document) ColorScheme() present.Scheme {
	d.mu.Lock()
	defer d.mu.Unlock()

	root := d.rootElement()
	if root == nil {
		return present.SchemeLight
	}
	if v, ok := attr(root, "data-color-scheme"); ok && v == string(present.SchemeDark) {
		return present.SchemeDark
	}
	if v, ok := attr(root, "class"); ok {
		for _, c := range strings.Fields(v) {
			if c == "dark" {
				return present.SchemeDark
			}
		}
	}
	return present.SchemeLight
}

func (d *Document) rootElement() *html.Node {
	for c := d.root.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Html {
			return c
		}
	}
	return nil
}

func (d *Document) ShowNotification(n present.Notification) error {
	d.mu.Lock()
	d.notifications = append(d.notifications, n)
	d.mu.Unlock()

	d.publish(observe.Record{Kind: observe.KindChildList, Target: observe.TargetBody, Added: []string{"notification"}})
	return nil
}

func (d *Document) ShowAlert(a present.AlertOptions) error {
	d.mu.Lock()
	d.alerts = append(d.alerts, a)
	d.mu.Unlock()

	d.publish(observe.Record{Kind: observe.KindChildList, Target: observe.TargetBody, Added: []string{"alert"}})
	return nil
}
