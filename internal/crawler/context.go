package crawler

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/nao1215/harvester/internal/model"
)

// Context is the per-page view handed to handlers.
// A fresh Context is built for every successful fetch and shared by all
// handlers dispatched for that page.
type Context[S any] struct {
	// CurrentAddress is the final, redirect-resolved address of the page.
	CurrentAddress *url.URL

	// PageType is the classification the visit was scheduled with.
	PageType model.PageType

	// State is the unit-wide user state. Handlers running concurrently share
	// it, so S must synchronize itself.
	State S
}

// ParseHref resolves the element's href attribute against CurrentAddress.
// It returns false when the attribute is missing, empty, unparsable, or
// resolves to a non-http(s) scheme such as mailto: or javascript:.
func (c *Context[S]) ParseHref(el *Element) (*url.URL, bool) {
	href, ok := el.Attr("href")
	if !ok {
		return nil, false
	}
	return c.resolve(href)
}

// ParseText resolves the element's text content against CurrentAddress.
// It is meant for pages that print addresses as plain text.
func (c *Context[S]) ParseText(el *Element) (*url.URL, bool) {
	return c.resolve(el.Text())
}

func (c *Context[S]) resolve(ref string) (*url.URL, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" || c.CurrentAddress == nil {
		return nil, false
	}
	u, err := url.Parse(ref)
	if err != nil {
		return nil, false
	}
	resolved := c.CurrentAddress.ResolveReference(u)
	switch resolved.Scheme {
	case "http", "https":
		return resolved, true
	default:
		return nil, false
	}
}

// Element is one node matched by a selector.
type Element struct {
	// Name is the lowercase tag name, e.g. "a".
	Name string

	// Index is the position of the element among the selector's matches,
	// in document order.
	Index int

	// DOM gives full goquery access to the matched node.
	DOM *goquery.Selection
}

func newElement(index int, s *goquery.Selection) *Element {
	return &Element{
		Name:  goquery.NodeName(s),
		Index: index,
		DOM:   s,
	}
}

// Attr returns the named attribute.
func (e *Element) Attr(name string) (string, bool) {
	return e.DOM.Attr(name)
}

// Text returns the combined text of the element and its descendants.
func (e *Element) Text() string {
	return e.DOM.Text()
}

// HTML returns the inner HTML of the element.
func (e *Element) HTML() (string, error) {
	return e.DOM.Html()
}
