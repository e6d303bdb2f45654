package dom

import (
	"fmt"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Query is a compiled node predicate. Compile queries once at profile load
// time so malformed selectors surface before any document is processed.
type Query struct {
	m    goquery.Matcher
	desc string
}

// String returns the human readable form used in logs and errors.
func (q Query) String() string { return q.desc }

// Match reports whether n itself satisfies the query.
func (q Query) Match(n Node) bool {
	h := Unwrap(n)
	if h == nil || q.m == nil {
		return false
	}
	return q.m.Match(h)
}

// Find returns the descendants of n (n excluded) that satisfy the query, in
// document order.
func (q Query) Find(n Node) []Node {
	h := Unwrap(n)
	if h == nil || q.m == nil {
		return nil
	}
	sel := goquery.NewDocumentFromNode(h).FindMatcher(q.m)
	out := make([]Node, 0, sel.Length())
	for _, m := range sel.Nodes {
		out = append(out, node{n: m})
	}
	return out
}

// CompileSelector compiles a CSS selector (compound selectors and
// combinators are supported through cascadia).
func CompileSelector(css string) (Query, error) {
	css = strings.TrimSpace(css)
	if css == "" {
		return Query{}, fmt.Errorf("empty selector")
	}
	sel, err := cascadia.Compile(css)
	if err != nil {
		return Query{}, fmt.Errorf("compile selector %q: %w", css, err)
	}
	return Query{m: sel, desc: css}, nil
}

// CompileElement builds a query from an element name, a space separated set
// of classes that must all be present, an optional id and exact attribute
// values. Class names are taken literally, so utility classes such as
// "md:text-5xl" need no escaping.
func CompileElement(tag, classes, id string, attrs map[string]string) (Query, error) {
	m := &elementMatcher{
		tag:     strings.ToLower(strings.TrimSpace(tag)),
		classes: strings.Fields(classes),
		id:      strings.TrimSpace(id),
		attrs:   attrs,
	}
	if m.tag == "" && len(m.classes) == 0 && m.id == "" && len(m.attrs) == 0 {
		return Query{}, fmt.Errorf("element query needs a tag, class, id or attribute")
	}
	return Query{m: m, desc: m.String()}, nil
}

// elementMatcher implements goquery.Matcher for tag/class/id/attribute steps.
type elementMatcher struct {
	tag     string
	classes []string
	id      string
	attrs   map[string]string
}

func (m *elementMatcher) Match(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	v := node{n: n}
	if m.tag != "" && v.Tag() != m.tag {
		return false
	}
	for _, c := range m.classes {
		if !v.HasClass(c) {
			return false
		}
	}
	if m.id != "" {
		if id, ok := v.Attr("id"); !ok || id != m.id {
			return false
		}
	}
	for k, want := range m.attrs {
		if got, ok := v.Attr(k); !ok || got != want {
			return false
		}
	}
	return true
}

// MatchAll returns n and its descendants that match, in pre-order.
func (m *elementMatcher) MatchAll(n *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(cur *html.Node) {
		if m.Match(cur) {
			out = append(out, cur)
		}
		for c := cur.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func (m *elementMatcher) Filter(nodes []*html.Node) []*html.Node {
	var out []*html.Node
	for _, n := range nodes {
		if m.Match(n) {
			out = append(out, n)
		}
	}
	return out
}

func (m *elementMatcher) String() string {
	var b strings.Builder
	b.WriteString(m.tag)
	for _, c := range m.classes {
		b.WriteString(".")
		b.WriteString(c)
	}
	if m.id != "" {
		b.WriteString("#")
		b.WriteString(m.id)
	}
	keys := make([]string, 0, len(m.attrs))
	for k := range m.attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "[%s=%q]", k, m.attrs[k])
	}
	return b.String()
}
