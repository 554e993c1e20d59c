package crawler

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"sjsage522/catalogworker/helpers"
)

// Node is a queryable element of a parsed page. Field rules only talk to
// this interface, never to the HTML library underneath.
type Node interface {
	// Find returns every descendant matching selector, in document order
	Find(selector string) []Node
	// First returns the first descendant matching selector
	First(selector string) (Node, bool)
	// Text returns the element's text with whitespace normalized
	Text() string
	// SpacedText is like Text but separates adjacent text nodes with a space
	SpacedText() string
	// Attr returns the value of an attribute
	Attr(name string) (string, bool)
	// Without returns a copy of the element with matching descendants removed
	Without(selector string) Node
}

// Document is a parsed page together with the URL it was fetched from
type Document interface {
	Node
	URL() string
}

type selectionNode struct {
	sel *goquery.Selection
}

type htmlDocument struct {
	selectionNode
	url string
}

// ParseDocument parses HTML leniently. Malformed markup still yields a document.
func ParseDocument(r io.Reader, url string) (Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}
	return &htmlDocument{selectionNode: selectionNode{sel: doc.Selection}, url: url}, nil
}

// ParseDocumentString parses an HTML string
func ParseDocumentString(html, url string) (Document, error) {
	return ParseDocument(strings.NewReader(html), url)
}

func (d *htmlDocument) URL() string {
	return d.url
}

func (n selectionNode) Find(selector string) []Node {
	if n.sel == nil || selector == "" {
		return nil
	}
	found := n.sel.Find(selector)
	nodes := make([]Node, 0, found.Length())
	found.Each(func(_ int, s *goquery.Selection) {
		nodes = append(nodes, selectionNode{sel: s})
	})
	return nodes
}

func (n selectionNode) First(selector string) (Node, bool) {
	if n.sel == nil || selector == "" {
		return nil, false
	}
	found := n.sel.Find(selector).First()
	if found.Length() == 0 {
		return nil, false
	}
	return selectionNode{sel: found}, true
}

func (n selectionNode) Text() string {
	if n.sel == nil {
		return ""
	}
	return helpers.NormalizeSpace(n.sel.Text())
}

func (n selectionNode) SpacedText() string {
	if n.sel == nil {
		return ""
	}
	var parts []string
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			parts = append(parts, node.Data)
			return
		}
		if node.Type == html.ElementNode && (node.Data == "script" || node.Data == "style") {
			return
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, node := range n.sel.Nodes {
		walk(node)
	}
	return helpers.NormalizeSpace(strings.Join(parts, " "))
}

func (n selectionNode) Attr(name string) (string, bool) {
	if n.sel == nil {
		return "", false
	}
	return n.sel.Attr(name)
}

func (n selectionNode) Without(selector string) Node {
	if n.sel == nil || n.sel.Length() == 0 {
		return n
	}

	// Clone the selection to avoid modifying the original
	clone := n.sel.Clone()
	clone.Find(selector).Remove()
	return selectionNode{sel: clone}
}
