// Package dom adapts parsed HTML documents to the narrow node capability the
// extraction engine needs. Parsing and selection are backed by goquery and
// cascadia; callers only see the Node interface.
package dom

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

// Node is a read-only view of one node in a parsed document.
type Node interface {
	// Tag returns the lowercase element name, or "" for non-element nodes.
	Tag() string
	IsText() bool
	// Data returns the raw character data of a text node.
	Data() string
	Classes() []string
	HasClass(class string) bool
	Attr(key string) (string, bool)
	// Parent returns nil at the document root.
	Parent() Node
	// Children returns direct children in document order.
	Children() []Node
}

type node struct {
	n *html.Node
}

// Wrap adapts an x/net/html node. It returns nil for a nil input.
func Wrap(n *html.Node) Node {
	if n == nil {
		return nil
	}
	return node{n: n}
}

// Unwrap returns the underlying html node, or nil when n was not produced by
// this package.
func Unwrap(n Node) *html.Node {
	if v, ok := n.(node); ok {
		return v.n
	}
	return nil
}

func (v node) Tag() string {
	if v.n.Type != html.ElementNode {
		return ""
	}
	return strings.ToLower(v.n.Data)
}

func (v node) IsText() bool { return v.n.Type == html.TextNode }

func (v node) Data() string {
	if v.n.Type != html.TextNode {
		return ""
	}
	return v.n.Data
}

func (v node) Classes() []string {
	s, ok := v.Attr("class")
	if !ok {
		return nil
	}
	return strings.Fields(s)
}

func (v node) HasClass(class string) bool {
	for _, c := range v.Classes() {
		if c == class {
			return true
		}
	}
	return false
}

func (v node) Attr(key string) (string, bool) {
	for _, a := range v.n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

func (v node) Parent() Node {
	if v.n.Parent == nil {
		return nil
	}
	return node{n: v.n.Parent}
}

func (v node) Children() []Node {
	var out []Node
	for c := v.n.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, node{n: c})
	}
	return out
}

// Parse decodes body according to its declared or sniffed charset and parses
// it into a document tree. The returned node is the document root.
func Parse(body []byte, contentType string) (Node, error) {
	enc, name, _ := charset.DetermineEncoding(body, contentType)
	r := transform.NewReader(bytes.NewReader(body), enc.NewDecoder())
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html (%s): %w", name, err)
	}
	if len(doc.Nodes) == 0 {
		return nil, fmt.Errorf("parse html: empty document")
	}
	return node{n: doc.Nodes[0]}, nil
}

// ParseString is Parse for already-decoded UTF-8 markup.
func ParseString(markup string) (Node, error) {
	return Parse([]byte(markup), "text/html; charset=utf-8")
}

// HasAnyClass reports whether n carries at least one of classes.
func HasAnyClass(n Node, classes []string) bool {
	if len(classes) == 0 {
		return false
	}
	for _, c := range n.Classes() {
		for _, want := range classes {
			if c == want {
				return true
			}
		}
	}
	return false
}
