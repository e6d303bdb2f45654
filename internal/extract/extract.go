package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hyperifyio/gosift/internal/dom"
	"github.com/hyperifyio/gosift/internal/profile"
)

// Block is one unit of emitted text. Text is never empty.
type Block struct {
	Kind profile.Kind
	Text string
}

// Result is the structured output of one extraction.
type Result struct {
	Title    string
	Subtitle string
	Blocks   []Block
}

// Empty reports whether nothing at all was extracted.
func (r Result) Empty() bool {
	return r.Title == "" && r.Subtitle == "" && len(r.Blocks) == 0
}

var (
	// ErrAnchorNotFound means a step matched no node.
	ErrAnchorNotFound = errors.New("anchor not found")
	// ErrAnchorAmbiguous means a step that requires one node matched several.
	ErrAnchorAmbiguous = errors.New("anchor ambiguous")
)

// AnchorError reports which selector failed to resolve.
type AnchorError struct {
	Role    string
	Step    string
	Matches int
	Err     error
}

func (e *AnchorError) Error() string {
	return fmt.Sprintf("%s step %q: %v (%d matches)", e.Role, e.Step, e.Err, e.Matches)
}

func (e *AnchorError) Unwrap() error { return e.Err }

// Extract runs p against the document rooted at root. A structural mismatch
// returns an empty Result and an *AnchorError; it is a per-document failure.
func Extract(root dom.Node, p *profile.Profile) (Result, error) {
	if root == nil {
		return Result{}, errors.New("extract: nil document")
	}
	if !p.Validated() {
		return Result{}, errors.New("extract: profile not validated")
	}
	anchor, err := resolve(root, "anchor", p.Anchor)
	if err != nil {
		return Result{}, err
	}
	var res Result
	if len(p.Title) > 0 {
		n, err := resolve(anchor, "title", p.Title)
		if err != nil {
			return Result{}, err
		}
		res.Title = dom.JoinText(n, p.HeadingJoin, excludedBy(p))
	}
	if len(p.Subtitle) > 0 {
		n, err := resolve(anchor, "subtitle", p.Subtitle)
		if err != nil {
			return Result{}, err
		}
		res.Subtitle = dom.JoinText(n, p.HeadingJoin, excludedBy(p))
	}
	content, err := resolve(anchor, "body", p.Body)
	if err != nil {
		return Result{}, err
	}
	w := &walker{p: p, skipping: p.StartSkipping}
	w.children(content)
	res.Blocks = w.blocks
	return res, nil
}

func resolve(from dom.Node, role string, steps []profile.Step) (dom.Node, error) {
	cur := from
	for _, st := range steps {
		found := st.Query().Find(cur)
		switch {
		case len(found) == 0:
			return nil, &AnchorError{Role: role, Step: st.String(), Err: ErrAnchorNotFound}
		case len(found) > 1 && !st.First:
			return nil, &AnchorError{Role: role, Step: st.String(), Matches: len(found), Err: ErrAnchorAmbiguous}
		}
		cur = found[0]
	}
	return cur, nil
}

// excludedBy returns the JoinText skip func dropping subtrees rooted at an
// element with one of p's excluded ancestor classes.
func excludedBy(p *profile.Profile) func(dom.Node) bool {
	if len(p.ExcludeAncestorClasses) == 0 {
		return nil
	}
	return func(n dom.Node) bool { return dom.HasAnyClass(n, p.ExcludeAncestorClasses) }
}

// walker carries the per-document skip state through one pre-order pass.
type walker struct {
	p        *profile.Profile
	skipping bool
	blocks   []Block
}

func (w *walker) emit(kind profile.Kind, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	w.blocks = append(w.blocks, Block{Kind: kind, Text: text})
}

func (w *walker) children(n dom.Node) {
	for _, c := range n.Children() {
		w.visit(c)
	}
}

func (w *walker) visit(n dom.Node) {
	tag := n.Tag()
	if tag == "" {
		return
	}
	p := w.p
	// Checked before dispatch; excluded subtrees are never entered, which
	// makes the own-class test equivalent to an ancestor test.
	if dom.HasAnyClass(n, p.ExcludeAncestorClasses) {
		if p.AncestorExclusionSkips {
			w.skipping = true
		}
		return
	}
	switch {
	case p.IsHeader(tag):
		w.header(n)
	case p.IsParagraph(n):
		w.paragraph(n)
	case p.IsList(tag):
		w.list(n)
	case tag == "tr" && p.HandlesRows():
		w.row(n)
	default:
		if tag == "div" && dom.HasAnyClass(n, p.ExcludeElementClasses) {
			return
		}
		w.children(n)
	}
}

func (w *walker) header(n dom.Node) {
	p := w.p
	if w.skipping && p.SkipScope == profile.ScopeDocument {
		return
	}
	text := dom.JoinText(n, p.HeadingJoin, excludedBy(p))
	if profile.ContainsAny(text, p.HeaderExcludeSubstrings) || profile.EqualsAny(text, p.HeaderExcludeExact) {
		w.skipping = true
		return
	}
	w.skipping = false
	if profile.EqualsAny(text, p.HeaderDropExact) {
		return
	}
	w.emit(profile.KindHeader, text)
}

func (w *walker) paragraph(n dom.Node) {
	p := w.p
	if w.skipping || dom.HasAnyClass(n, p.ExcludeElementClasses) {
		return
	}
	text := w.paragraphText(n)
	if profile.ContainsAny(text, p.ParagraphExcludeSubstrings) {
		if p.ParagraphSkips() {
			w.skipping = true
		}
		return
	}
	if profile.EqualsAny(text, p.ParagraphDropExact) {
		return
	}
	w.emit(profile.KindParagraph, text)
}

func (w *walker) paragraphText(n dom.Node) string {
	p := w.p
	excluded := excludedBy(p)
	skip := func(c dom.Node) bool {
		return p.StripsTag(c.Tag()) || (excluded != nil && excluded(c))
	}
	if len(p.NestedTagAllowlist) == 0 {
		return dom.JoinText(n, " ", skip)
	}
	var parts []string
	for _, c := range n.Children() {
		var t string
		switch {
		case c.IsText():
			t = dom.Collapse(c.Data())
		case c.Tag() != "" && p.AllowsNested(c.Tag()) && !skip(c):
			t = dom.JoinText(c, " ", skip)
		}
		if t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func (w *walker) list(n dom.Node) {
	p := w.p
	if w.skipping {
		return
	}
	var texts []string
	for _, li := range w.listItems(n) {
		if dom.HasAnyClass(li, p.ExcludeAncestorClasses) {
			if p.AncestorExclusionSkips {
				w.skipping = true
				break
			}
			continue
		}
		text := dom.JoinText(li, " ", excludedBy(p))
		if profile.ContainsAny(text, p.ListExcludeSubstrings) {
			if p.ListExcludeWholeList {
				return
			}
			if p.ListTriggersSkip {
				w.skipping = true
				break
			}
			continue
		}
		texts = append(texts, text)
	}
	for _, t := range texts {
		w.emit(profile.KindListItem, t)
	}
}

func (w *walker) listItems(n dom.Node) []dom.Node {
	p := w.p
	var out []dom.Node
	keep := func(li dom.Node) bool {
		return p.ListItemClass == "" || li.HasClass(p.ListItemClass)
	}
	if !p.ListItemsRecursive {
		for _, c := range n.Children() {
			if c.Tag() == "li" && keep(c) {
				out = append(out, c)
			}
		}
		return out
	}
	var walk func(dom.Node)
	walk = func(cur dom.Node) {
		for _, c := range cur.Children() {
			if c.Tag() == "li" && keep(c) {
				out = append(out, c)
			}
			// Excluded items are returned for the caller to handle; their
			// nested lists are never reached.
			if !dom.HasAnyClass(c, p.ExcludeAncestorClasses) {
				walk(c)
			}
		}
	}
	walk(n)
	return out
}

func (w *walker) row(n dom.Node) {
	if w.skipping {
		return
	}
	var cells []string
	for _, c := range n.Children() {
		if !w.p.IsCell(c.Tag()) || dom.HasAnyClass(c, w.p.ExcludeAncestorClasses) {
			continue
		}
		if t := dom.JoinText(c, " ", excludedBy(w.p)); t != "" {
			cells = append(cells, t)
		}
	}
	w.emit(profile.KindTableRow, strings.Join(cells, " "))
}
