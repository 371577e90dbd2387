package dom

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/entrhq/widescreen/pkg/observe"
	"github.com/entrhq/widescreen/pkg/present"
)

// The helpers below act as the host page: they mutate the tree the way the
// chat site's own scripts would and publish the matching records.

// Alias makes records about nodes matching selector carry name as target,
// e.g. Alias(sidebarSelector, observe.TargetSidebar).
func (d *Document) Alias(selector, name string) error {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	d.mu.Lock()
	d.aliases = append(d.aliases, alias{sel: sel, name: name})
	d.mu.Unlock()
	return nil
}

// OnClick registers fn to run when an element matching selector is clicked.
func (d *Document) OnClick(selector string, fn func()) error {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	d.mu.Lock()
	d.clicks = append(d.clicks, clickHandler{sel: sel, fn: fn})
	d.mu.Unlock()
	return nil
}

// SetAttribute sets an attribute on the first element matching selector.
func (d *Document) SetAttribute(selector, name, value string) error {
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
	setAttr(n, name, value)
	target := d.target(n)
	if n == d.rootElement() {
		target = observe.TargetRoot
	}
	d.mu.Unlock()

	d.publish(observe.Record{Kind: observe.KindAttributes, Target: target, Attribute: name})
	return nil
}

// Attribute reads an attribute of the first element matching selector.
func (d *Document) Attribute(selector, name string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.query(selector)
	if err != nil || n == nil {
		return "", false
	}
	return attr(n, name)
}

// SetColorScheme flips the root class the way chat sites switch themes.
func (d *Document) SetColorScheme(s present.Scheme) error {
	return d.SetAttribute("html", "class", string(s))
}

// Append parses markup as children of the first element matching selector.
func (d *Document) Append(selector, markup string) error {
	d.mu.Lock()
	parent, err := d.query(selector)
	if err != nil {
		d.mu.Unlock()
		return err
	}
	if parent == nil {
		d.mu.Unlock()
		return present.ErrAnchorMissing
	}
	nodes, err := html.ParseFragment(strings.NewReader(markup), parent)
	if err != nil {
		d.mu.Unlock()
		return fmt.Errorf("failed to parse fragment: %w", err)
	}
	var added []string
	for _, n := range nodes {
		parent.AppendChild(n)
		if n.Type == html.ElementNode {
			added = append(added, d.target(n))
		}
	}
	target := d.target(parent)
	d.mu.Unlock()

	d.publish(observe.Record{Kind: observe.KindChildList, Target: target, Added: added})
	return nil
}

// Remove detaches the first element matching selector.
func (d *Document) Remove(selector string) error {
	d.mu.Lock()
	n, err := d.query(selector)
	if err != nil {
		d.mu.Unlock()
		return err
	}
	if n == nil || n.Parent == nil {
		d.mu.Unlock()
		return nil
	}
	parent := n.Parent
	removed := d.target(n)
	parent.RemoveChild(n)
	target := d.target(parent)
	d.mu.Unlock()

	d.publish(observe.Record{Kind: observe.KindChildList, Target: target, Removed: []string{removed}})
	return nil
}

// StyleText returns the CSS of the <style> element with id.
func (d *Document) StyleText(id string) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := d.byID(id)
	if n == nil {
		return "", false
	}
	return textOf(n), true
}

// StyleIDs lists the ids of <style> elements in head, in document order.
func (d *Document) StyleIDs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var ids []string
	for c := d.head.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == "style" {
			if id, ok := attr(c, "id"); ok {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// ButtonIDs lists the ids of injected buttons in document order.
func (d *Document) ButtonIDs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var ids []string
	for _, n := range cascadia.MustCompile("[data-type]").MatchAll(d.root) {
		if id, ok := attr(n, "id"); ok {
			if _, isButton := present.ButtonFromID(id); isButton {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// Notifications returns the toasts shown so far.
func (d *Document) Notifications() []present.Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]present.Notification(nil), d.notifications...)
}

// Alerts returns the alerts shown so far.
func (d *Document) Alerts() []present.AlertOptions {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]present.AlertOptions(nil), d.alerts...)
}

// Render serializes the tree.
func (d *Document) Render() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var buf bytes.Buffer
	if err := html.Render(&buf, d.root); err != nil {
		return "", fmt.Errorf("failed to render document: %w", err)
	}
	return buf.String(), nil
}
