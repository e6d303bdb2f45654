package dom

import (
	"strings"
	"unicode"
)

// JoinText collects the text beneath n. Each text node is trimmed and its
// internal whitespace collapsed; empty pieces are dropped and the rest are
// joined with sep. Element subtrees for which skip returns true contribute
// nothing. Script and style content never contributes.
func JoinText(n Node, sep string, skip func(Node) bool) string {
	if n == nil {
		return ""
	}
	var parts []string
	var walk func(Node)
	walk = func(cur Node) {
		if cur.IsText() {
			if t := Collapse(cur.Data()); t != "" {
				parts = append(parts, t)
			}
			return
		}
		switch cur.Tag() {
		case "script", "style", "noscript", "template":
			return
		}
		for _, c := range cur.Children() {
			if c.Tag() != "" && skip != nil && skip(c) {
				continue
			}
			walk(c)
		}
	}
	if n.IsText() {
		return Collapse(n.Data())
	}
	walk(n)
	return strings.Join(parts, sep)
}

// Collapse trims s and folds every internal whitespace run into one space.
func Collapse(s string) string {
	var b strings.Builder
	lastSpace := false
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return b.String()
}
