// Package dom is a small in-memory page model: an element tree addressed by
// id or class, with innerHTML, form values and click listeners.
//
// Mutations are guarded by the document lock. Listener and channel callbacks
// are serialized through Document.Run, which stands in for the page's single
// UI thread.
package dom

import (
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrElementNotFound is returned when a selector matches nothing.
var ErrElementNotFound = errors.New("element not found")

// Listener handles a dispatched event.
type Listener func(ev *Event)

// Event is passed to listeners.
type Event struct {
	Type   string
	Target *Element

	defaultPrevented bool
}

// PreventDefault marks the event so the default action is skipped.
func (e *Event) PreventDefault() { e.defaultPrevented = true }

// DefaultPrevented reports whether a listener called PreventDefault.
func (e *Event) DefaultPrevented() bool { return e.defaultPrevented }

// Document holds the element tree of one page.
type Document struct {
	mu   sync.Mutex
	ui   sync.Mutex
	body *Element
}

// NewDocument returns an empty page with a body element.
func NewDocument() *Document {
	d := &Document{}
	d.body = &Element{doc: d, tag: "body"}
	return d
}

// Body returns the root element.
func (d *Document) Body() *Element { return d.body }

// Run executes fn on the UI thread. Calls are serialized; fn must not call Run.
func (d *Document) Run(fn func()) {
	d.ui.Lock()
	defer d.ui.Unlock()
	fn()
}

// Mount creates an element and appends it to the body.
func (d *Document) Mount(tag string, opts ...Option) *Element {
	el := d.Create(tag, opts...)
	d.body.AppendChild(el)
	return el
}

// Create returns a detached element owned by d.
func (d *Document) Create(tag string, opts ...Option) *Element {
	el := &Element{doc: d, tag: tag}
	for _, opt := range opts {
		opt(el)
	}
	return el
}

// GetElementByID returns the attached element with the given id, or nil.
func (d *Document) GetElementByID(id string) *Element {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.body.find(func(el *Element) bool { return el.id == id })
}

// QuerySelector supports "#id", ".class" and bare tag selectors and returns
// the first attached match in document order, or nil.
func (d *Document) QuerySelector(sel string) *Element {
	sel = strings.TrimSpace(sel)
	if sel == "" {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	var match func(*Element) bool
	switch sel[0] {
	case '#':
		id := sel[1:]
		match = func(el *Element) bool { return el.id == id }
	case '.':
		class := sel[1:]
		match = func(el *Element) bool { return el.hasClass(class) }
	default:
		match = func(el *Element) bool { return el.tag == sel }
	}

	return d.body.find(match)
}

// MustQuery is like QuerySelector but returns ErrElementNotFound on a miss.
func (d *Document) MustQuery(sel string) (*Element, error) {
	el := d.QuerySelector(sel)
	if el == nil {
		return nil, fmt.Errorf("query %q: %w", sel, ErrElementNotFound)
	}
	return el, nil
}

// Option configures an element at creation.
type Option func(el *Element)

// WithID sets the element id.
func WithID(id string) Option {
	return func(el *Element) { el.id = id }
}

// WithClass adds classes to the element.
func WithClass(classes ...string) Option {
	return func(el *Element) { el.classes = append(el.classes, classes...) }
}

// WithValue sets the initial form value.
func WithValue(v string) Option {
	return func(el *Element) { el.value = v }
}

// Element is a node of the page.
type Element struct {
	doc       *Document
	parent    *Element
	tag       string
	id        string
	classes   []string
	innerHTML string
	value     string
	children  []*Element
	listeners map[string][]Listener
}

// Tag returns the element name.
func (el *Element) Tag() string { return el.tag }

// ID returns the element id.
func (el *Element) ID() string { return el.id }

// Value returns the current form value.
func (el *Element) Value() string {
	el.doc.mu.Lock()
	defer el.doc.mu.Unlock()
	return el.value
}

// SetValue replaces the form value.
func (el *Element) SetValue(v string) {
	el.doc.mu.Lock()
	defer el.doc.mu.Unlock()
	el.value = v
}

// InnerHTML returns the element markup including its appended children.
func (el *Element) InnerHTML() string {
	el.doc.mu.Lock()
	defer el.doc.mu.Unlock()
	return el.inner()
}

// OuterHTML returns the element's own tag wrapped around InnerHTML.
func (el *Element) OuterHTML() string {
	el.doc.mu.Lock()
	defer el.doc.mu.Unlock()
	return el.outer()
}

// SetInnerHTML replaces the content of the element. Appended children are
// dropped, as in a browser.
func (el *Element) SetInnerHTML(s string) {
	el.doc.mu.Lock()
	defer el.doc.mu.Unlock()

	for _, c := range el.children {
		c.parent = nil
	}
	el.children = nil
	el.innerHTML = s
}

// AppendChild attaches child as the last child of el.
func (el *Element) AppendChild(child *Element) {
	el.doc.mu.Lock()
	defer el.doc.mu.Unlock()

	if child.parent != nil {
		child.parent.removeChild(child)
	}
	child.parent = el
	el.children = append(el.children, child)
}

// Children returns a snapshot of the appended children.
func (el *Element) Children() []*Element {
	el.doc.mu.Lock()
	defer el.doc.mu.Unlock()

	out := make([]*Element, len(el.children))
	copy(out, el.children)
	return out
}

// TextContent returns the concatenated text of the element's markup.
func (el *Element) TextContent() string {
	return Text(el.InnerHTML())
}

// AddEventListener registers fn for events of the given type.
func (el *Element) AddEventListener(typ string, fn Listener) {
	el.doc.mu.Lock()
	defer el.doc.mu.Unlock()

	if el.listeners == nil {
		el.listeners = make(map[string][]Listener)
	}
	el.listeners[typ] = append(el.listeners[typ], fn)
}

// Dispatch runs the listeners for typ on the UI thread in registration order.
func (el *Element) Dispatch(typ string) *Event {
	el.doc.mu.Lock()
	ls := append([]Listener(nil), el.listeners[typ]...)
	el.doc.mu.Unlock()

	ev := &Event{Type: typ, Target: el}
	el.doc.Run(func() {
		for _, fn := range ls {
			fn(ev)
		}
	})
	return ev
}

// Click dispatches a click event.
func (el *Element) Click() *Event {
	return el.Dispatch("click")
}

func (el *Element) hasClass(class string) bool {
	for _, c := range el.classes {
		if c == class {
			return true
		}
	}
	return false
}

func (el *Element) removeChild(child *Element) {
	for i, c := range el.children {
		if c == child {
			el.children = append(el.children[:i], el.children[i+1:]...)
			return
		}
	}
}

// find walks the subtree below el depth-first. Caller holds the lock.
func (el *Element) find(match func(*Element) bool) *Element {
	for _, c := range el.children {
		if match(c) {
			return c
		}
		if found := c.find(match); found != nil {
			return found
		}
	}
	return nil
}

func (el *Element) inner() string {
	var b strings.Builder
	b.WriteString(el.innerHTML)
	for _, c := range el.children {
		b.WriteString(c.outer())
	}
	return b.String()
}

func (el *Element) outer() string {
	var b strings.Builder
	b.WriteString("<" + el.tag)
	if el.id != "" {
		b.WriteString(` id="` + html.EscapeString(el.id) + `"`)
	}
	if len(el.classes) > 0 {
		b.WriteString(` class="` + html.EscapeString(strings.Join(el.classes, " ")) + `"`)
	}
	b.WriteString(">")
	b.WriteString(el.inner())
	b.WriteString("</" + el.tag + ">")
	return b.String()
}

// Text parses markup as body content and returns its text nodes joined.
// Script bodies count as text, as they do for textContent in a browser.
func Text(markup string) string {
	nodes, err := parseBody(markup)
	if err != nil {
		return ""
	}

	var b strings.Builder
	for _, n := range nodes {
		collectText(n, &b)
	}
	return b.String()
}

// TextByClass parses markup and returns the text of every element carrying
// class, in document order.
func TextByClass(markup, class string) []string {
	nodes, err := parseBody(markup)
	if err != nil {
		return nil
	}

	var out []string
	var walk func(n *xhtml.Node)
	walk = func(n *xhtml.Node) {
		if n.Type == xhtml.ElementNode && nodeHasClass(n, class) {
			var b strings.Builder
			collectText(n, &b)
			out = append(out, b.String())
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return out
}

func nodeHasClass(n *xhtml.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(a.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

func collectText(n *xhtml.Node, b *strings.Builder) {
	if n.Type == xhtml.TextNode {
		b.WriteString(n.Data)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}

func parseBody(markup string) ([]*xhtml.Node, error) {
	return xhtml.ParseFragment(strings.NewReader(markup), &xhtml.Node{
		Type:     xhtml.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
}
