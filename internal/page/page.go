// Package page exposes read-only access to an already-loaded page.
//
// Selectors are CSS unless prefixed with "xpath:", in which case the rest of
// the selector is evaluated as an XPath expression.
package page

import (
	"bytes"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"sjsage522/producttracker/helpers"
	"sjsage522/producttracker/pkg/errors"
)

// XPathPrefix marks a selector as an XPath expression.
const XPathPrefix = "xpath:"

// Page is the page-context accessor used by extraction.
type Page interface {
	URL() string
	Hostname() string
	Title() string
	// Text returns the trimmed text of the first element matching selector.
	Text(selector string) string
	// Attr returns an attribute of the first element matching selector.
	Attr(selector, attr string) string
	// Meta returns the content of meta[property=key], else meta[name=key].
	Meta(key string) string
	// MetaAll returns the content of every meta[property=key] tag.
	MetaAll(key string) []string
	Elements(selector string) []Element
	Exists(selector string) bool
}

// Element is a single matched node.
type Element interface {
	Text() string
	Attr(name string) string
	// URLAttr returns the attribute resolved against the page URL.
	URLAttr(name string) string
	Find(selector string) []Element
}

// Document is a Page backed by a parsed HTML document.
type Document struct {
	url  *url.URL
	raw  string
	doc  *goquery.Document
	root *html.Node
}

// FromHTML parses an HTML string loaded from pageURL.
func FromHTML(pageURL, body string) (*Document, error) {
	return FromReader(pageURL, strings.NewReader(body))
}

// FromBytes parses an HTML body in any charset, converting it to UTF-8 first.
func FromBytes(pageURL string, body []byte, contentType string) (*Document, error) {
	r, err := helpers.ToUTF8(body, contentType)
	if err != nil {
		return nil, errors.NewParsing("page", "failed to decode body", err)
	}
	return FromReader(pageURL, r)
}

// FromReader parses UTF-8 HTML from r.
func FromReader(pageURL string, r io.Reader) (*Document, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, errors.NewParsing("page", "invalid page url", err)
	}
	root, err := html.Parse(r)
	if err != nil {
		return nil, errors.NewParsing("page", "failed to parse document", err)
	}
	return &Document{
		url:  u,
		raw:  pageURL,
		doc:  goquery.NewDocumentFromNode(root),
		root: root,
	}, nil
}

// URL returns the page URL.
func (d *Document) URL() string { return d.raw }

// Hostname returns the page host without port.
func (d *Document) Hostname() string { return d.url.Hostname() }

// Title returns the document title.
func (d *Document) Title() string {
	return strings.TrimSpace(d.doc.Find("title").First().Text())
}

// Text implements Page.
func (d *Document) Text(selector string) string {
	s := d.selectAll(d.doc.Selection, selector)
	if s.Length() == 0 {
		return ""
	}
	return strings.TrimSpace(s.First().Text())
}

// Attr implements Page.
func (d *Document) Attr(selector, attr string) string {
	v, _ := d.selectAll(d.doc.Selection, selector).First().Attr(attr)
	return v
}

// Meta implements Page.
func (d *Document) Meta(key string) string {
	if v, ok := d.doc.Find(`meta[property="` + key + `"]`).First().Attr("content"); ok && v != "" {
		return v
	}
	v, _ := d.doc.Find(`meta[name="` + key + `"]`).First().Attr("content")
	return v
}

// MetaAll implements Page.
func (d *Document) MetaAll(key string) []string {
	var out []string
	d.doc.Find(`meta[property="` + key + `"]`).Each(func(_ int, s *goquery.Selection) {
		if v, ok := s.Attr("content"); ok {
			out = append(out, v)
		}
	})
	return out
}

// Elements implements Page.
func (d *Document) Elements(selector string) []Element {
	return d.wrap(d.selectAll(d.doc.Selection, selector))
}

// Exists implements Page.
func (d *Document) Exists(selector string) bool {
	return d.selectAll(d.doc.Selection, selector).Length() > 0
}

// HTML renders the parsed document back to markup.
func (d *Document) HTML() string {
	var buf bytes.Buffer
	if err := html.Render(&buf, d.root); err != nil {
		return ""
	}
	return buf.String()
}

func (d *Document) selectAll(scope *goquery.Selection, selector string) *goquery.Selection {
	expr, ok := strings.CutPrefix(selector, XPathPrefix)
	if !ok {
		return scope.Find(selector)
	}
	var nodes []*html.Node
	for _, n := range scope.Nodes {
		found, err := htmlquery.QueryAll(n, expr)
		if err != nil {
			return scope.FindNodes()
		}
		nodes = append(nodes, found...)
	}
	// FindNodes builds a fresh selection limited to descendants of scope
	return scope.FindNodes(nodes...)
}

func (d *Document) wrap(s *goquery.Selection) []Element {
	out := make([]Element, 0, s.Length())
	s.Each(func(_ int, item *goquery.Selection) {
		out = append(out, &element{doc: d, sel: item})
	})
	return out
}

func (d *Document) resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return d.url.ResolveReference(u).String()
}

type element struct {
	doc *Document
	sel *goquery.Selection
}

func (e *element) Text() string {
	return strings.TrimSpace(e.sel.Text())
}

func (e *element) Attr(name string) string {
	v, _ := e.sel.Attr(name)
	return v
}

func (e *element) URLAttr(name string) string {
	v, ok := e.sel.Attr(name)
	if !ok {
		return ""
	}
	return e.doc.resolve(v)
}

func (e *element) Find(selector string) []Element {
	return e.doc.wrap(e.doc.selectAll(e.sel, selector))
}
