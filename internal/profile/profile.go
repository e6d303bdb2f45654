// Package profile defines the declarative per-publisher extraction profile.
// A Profile is plain configuration: where the title and body live, which
// element types are structural, and what to exclude. It is validated once at
// load time and is read-only afterwards.
package profile

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hyperifyio/gosift/internal/dom"
)

// SkipScope controls how far a skip region reaches.
type SkipScope string

const (
	// ScopeSection ends a skip region at the next non-excluded header.
	ScopeSection SkipScope = "section"
	// ScopeDocument keeps skipping until the end of the content root once a
	// skip region starts. Headers are not evaluated while skipping.
	ScopeDocument SkipScope = "document"
)

// Placeholders understood by Template.
const (
	PlaceholderTitle    = "{title}"
	PlaceholderSubtitle = "{subtitle}"
	PlaceholderBody     = "{body}"
)

// Kind classifies an emitted block.
type Kind string

const (
	KindHeader    Kind = "header"
	KindParagraph Kind = "paragraph"
	KindListItem  Kind = "listItem"
	KindTableRow  Kind = "tableRow"
)

var allKinds = []Kind{KindHeader, KindParagraph, KindListItem, KindTableRow}

const defaultSeparator = "\n\n"

var (
	defaultHeaderTags = []string{"h2", "h3", "h4", "h5", "h6"}
	defaultListTags   = []string{"ul", "ol"}
	defaultCellTags   = []string{"th", "td"}
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid profile")

// Domain is one host predicate. Suffix predicates match the domain itself and
// any subdomain of it.
type Domain struct {
	Name  string `yaml:"domain" json:"domain"`
	Exact bool   `yaml:"exact,omitempty" json:"exact,omitempty"`
}

// UnmarshalYAML accepts either a bare string (suffix match) or a mapping.
func (d *Domain) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		d.Name = value.Value
		d.Exact = false
		return nil
	}
	type plain Domain
	var p plain
	if err := value.Decode(&p); err != nil {
		return err
	}
	*d = Domain(p)
	return nil
}

// Matches reports whether the normalized host satisfies the predicate.
func (d Domain) Matches(host string) bool {
	name := NormalizeHost(d.Name)
	if name == "" {
		return false
	}
	if host == name {
		return true
	}
	return !d.Exact && strings.HasSuffix(host, "."+name)
}

func (d Domain) String() string {
	if d.Exact {
		return "=" + NormalizeHost(d.Name)
	}
	return NormalizeHost(d.Name)
}

// NormalizeHost lowercases a host and strips any port and trailing dot.
func NormalizeHost(host string) string {
	h := strings.ToLower(strings.TrimSpace(host))
	if strings.HasPrefix(h, "[") {
		if i := strings.Index(h, "]"); i > 0 {
			return h[1:i]
		}
	}
	if i := strings.LastIndexByte(h, ':'); i >= 0 && strings.Count(h, ":") == 1 {
		h = h[:i]
	}
	return strings.TrimSuffix(h, ".")
}

// Step locates one node below the current node: either a CSS selector or an
// element description. A step must resolve to exactly one node unless First
// is set, in which case the first match in document order wins.
type Step struct {
	Selector string            `yaml:"selector,omitempty" json:"selector,omitempty"`
	Tag      string            `yaml:"tag,omitempty" json:"tag,omitempty"`
	Class    string            `yaml:"class,omitempty" json:"class,omitempty"`
	ID       string            `yaml:"id,omitempty" json:"id,omitempty"`
	Attrs    map[string]string `yaml:"attrs,omitempty" json:"attrs,omitempty"`
	First    bool              `yaml:"first,omitempty" json:"first,omitempty"`

	query dom.Query
}

// Query returns the compiled query. Only valid after Profile.Validate.
func (s Step) Query() dom.Query { return s.query }

func (s Step) String() string {
	if q := s.query.String(); q != "" {
		return q
	}
	if s.Selector != "" {
		return s.Selector
	}
	var b strings.Builder
	b.WriteString(s.Tag)
	for _, c := range strings.Fields(s.Class) {
		b.WriteString("." + c)
	}
	if s.ID != "" {
		b.WriteString("#" + s.ID)
	}
	return b.String()
}

func (s *Step) compile() error {
	if s.Selector != "" {
		if s.Tag != "" || s.Class != "" || s.ID != "" || len(s.Attrs) > 0 {
			return fmt.Errorf("step %q: selector cannot be combined with tag/class/id/attrs", s.Selector)
		}
		q, err := dom.CompileSelector(s.Selector)
		if err != nil {
			return err
		}
		s.query = q
		return nil
	}
	q, err := dom.CompileElement(s.Tag, s.Class, s.ID, s.Attrs)
	if err != nil {
		return err
	}
	s.query = q
	return nil
}

// Separators are appended after each emitted block of the given kind.
// Empty values fall back to a blank line.
type Separators struct {
	Header    string `yaml:"header,omitempty" json:"header,omitempty"`
	Paragraph string `yaml:"paragraph,omitempty" json:"paragraph,omitempty"`
	ListItem  string `yaml:"listItem,omitempty" json:"listItem,omitempty"`
	TableRow  string `yaml:"tableRow,omitempty" json:"tableRow,omitempty"`
}

// Profile describes how to extract one publisher's articles.
type Profile struct {
	Name    string   `yaml:"name" json:"name"`
	Domains []Domain `yaml:"domains" json:"domains"`

	Anchor   []Step `yaml:"anchor,omitempty" json:"anchor,omitempty"`
	Title    []Step `yaml:"title,omitempty" json:"title,omitempty"`
	Subtitle []Step `yaml:"subtitle,omitempty" json:"subtitle,omitempty"`
	Body     []Step `yaml:"body,omitempty" json:"body,omitempty"`

	HeaderTags         []string `yaml:"headerTags,omitempty" json:"headerTags,omitempty"`
	ListTags           []string `yaml:"listTags,omitempty" json:"listTags,omitempty"`
	TableCellTags      []string `yaml:"tableCellTags,omitempty" json:"tableCellTags,omitempty"`
	ParagraphSelectors []string `yaml:"paragraphSelectors,omitempty" json:"paragraphSelectors,omitempty"`
	// BlockKinds restricts which kinds are emitted; empty enables all.
	BlockKinds []Kind `yaml:"blockKinds,omitempty" json:"blockKinds,omitempty"`

	HeaderExcludeSubstrings []string `yaml:"headerExcludeSubstrings,omitempty" json:"headerExcludeSubstrings,omitempty"`
	HeaderExcludeExact      []string `yaml:"headerExcludeExact,omitempty" json:"headerExcludeExact,omitempty"`
	HeaderDropExact         []string `yaml:"headerDropExact,omitempty" json:"headerDropExact,omitempty"`

	ParagraphExcludeSubstrings []string `yaml:"paragraphExcludeSubstrings,omitempty" json:"paragraphExcludeSubstrings,omitempty"`
	ParagraphDropExact         []string `yaml:"paragraphDropExact,omitempty" json:"paragraphDropExact,omitempty"`
	// ParagraphTriggersSkip defaults to true: an excluded paragraph opens a
	// skip region that only a later header closes.
	ParagraphTriggersSkip *bool    `yaml:"paragraphTriggersSkip,omitempty" json:"paragraphTriggersSkip,omitempty"`
	ParagraphStripTags    []string `yaml:"paragraphStripTags,omitempty" json:"paragraphStripTags,omitempty"`
	NestedTagAllowlist    []string `yaml:"nestedTagAllowlist,omitempty" json:"nestedTagAllowlist,omitempty"`

	ListExcludeSubstrings []string `yaml:"listExcludeSubstrings,omitempty" json:"listExcludeSubstrings,omitempty"`
	ListExcludeWholeList  bool     `yaml:"listExcludeWholeList,omitempty" json:"listExcludeWholeList,omitempty"`
	ListTriggersSkip      bool     `yaml:"listTriggersSkip,omitempty" json:"listTriggersSkip,omitempty"`
	ListItemsRecursive    bool     `yaml:"listItemsRecursive,omitempty" json:"listItemsRecursive,omitempty"`
	ListItemClass         string   `yaml:"listItemClass,omitempty" json:"listItemClass,omitempty"`

	ExcludeAncestorClasses []string `yaml:"excludeAncestorClasses,omitempty" json:"excludeAncestorClasses,omitempty"`
	AncestorExclusionSkips bool     `yaml:"ancestorExclusionSkips,omitempty" json:"ancestorExclusionSkips,omitempty"`
	ExcludeElementClasses  []string `yaml:"excludeElementClasses,omitempty" json:"excludeElementClasses,omitempty"`

	// StartSkipping drops everything before the first non-excluded header.
	StartSkipping bool      `yaml:"startSkipping,omitempty" json:"startSkipping,omitempty"`
	SkipScope     SkipScope `yaml:"skipScope,omitempty" json:"skipScope,omitempty"`

	// HeadingJoin joins the text nodes of headers, title and subtitle.
	// The default "" glues inline runs together: <h2>Related <b>Articles</b></h2>
	// reads "RelatedArticles", so a header pattern spanning an inline tag
	// must be written without the space, or the profile sets " ".
	// Paragraphs, list items and table cells always join with one space.
	HeadingJoin string     `yaml:"headingJoin,omitempty" json:"headingJoin,omitempty"`
	Separators  Separators `yaml:"separators,omitempty" json:"separators,omitempty"`
	Template    string     `yaml:"template,omitempty" json:"template,omitempty"`

	headerSet, listSet, cellSet, stripSet, allowSet map[string]bool
	paragraphQueries                                []dom.Query
	enabled                                         map[Kind]bool
	validated                                       bool
}

// Validate fills defaults and compiles every selector. It must be called
// before the profile is used; the registry calls it on Register.
func (p *Profile) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: nil profile", ErrInvalid)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w %q: %s", ErrInvalid, p.Name, fmt.Sprintf(format, args...))
	}
	if len(p.Domains) == 0 {
		return fail("at least one domain is required")
	}
	for _, d := range p.Domains {
		if NormalizeHost(d.Name) == "" {
			return fail("empty domain")
		}
	}
	chains := []struct {
		role  string
		steps []Step
	}{{"anchor", p.Anchor}, {"title", p.Title}, {"subtitle", p.Subtitle}, {"body", p.Body}}
	for _, c := range chains {
		for i := range c.steps {
			if err := c.steps[i].compile(); err != nil {
				return fail("%s step %d: %v", c.role, i, err)
			}
		}
	}
	if len(p.Subtitle) > 0 && len(p.Title) == 0 {
		return fail("subtitle requires a title")
	}
	p.paragraphQueries = p.paragraphQueries[:0]
	for _, css := range p.ParagraphSelectors {
		q, err := dom.CompileSelector(css)
		if err != nil {
			return fail("paragraph selector: %v", err)
		}
		p.paragraphQueries = append(p.paragraphQueries, q)
	}
	switch p.SkipScope {
	case "":
		p.SkipScope = ScopeSection
	case ScopeSection, ScopeDocument:
	default:
		return fail("unknown skipScope %q", p.SkipScope)
	}
	if len(p.HeaderTags) == 0 {
		p.HeaderTags = append([]string(nil), defaultHeaderTags...)
	}
	if len(p.ListTags) == 0 {
		p.ListTags = append([]string(nil), defaultListTags...)
	}
	if len(p.TableCellTags) == 0 {
		p.TableCellTags = append([]string(nil), defaultCellTags...)
	}
	p.enabled = make(map[Kind]bool, len(allKinds))
	if len(p.BlockKinds) == 0 {
		for _, k := range allKinds {
			p.enabled[k] = true
		}
	}
	for _, k := range p.BlockKinds {
		switch k {
		case KindHeader, KindParagraph, KindListItem, KindTableRow:
			p.enabled[k] = true
		default:
			return fail("unknown block kind %q", k)
		}
	}
	p.headerSet = map[string]bool{}
	if p.enabled[KindHeader] {
		p.headerSet = tagSet(p.HeaderTags)
	}
	p.listSet = map[string]bool{}
	if p.enabled[KindListItem] {
		p.listSet = tagSet(p.ListTags)
	}
	p.cellSet = tagSet(p.TableCellTags)
	p.stripSet = tagSet(p.ParagraphStripTags)
	p.allowSet = tagSet(p.NestedTagAllowlist)
	for tag := range p.headerSet {
		if tag == "p" || p.listSet[tag] || tag == "tr" {
			return fail("tag %q cannot be both a header and another block kind", tag)
		}
	}
	if p.Template == "" {
		p.Template = defaultTemplate(p)
	}
	if !strings.Contains(p.Template, PlaceholderBody) {
		return fail("template must contain %s", PlaceholderBody)
	}
	if strings.Contains(p.Template, PlaceholderSubtitle) && len(p.Subtitle) == 0 {
		return fail("template uses %s but no subtitle is configured", PlaceholderSubtitle)
	}
	p.validated = true
	return nil
}

// Validated reports whether Validate succeeded.
func (p *Profile) Validated() bool { return p != nil && p.validated }

func defaultTemplate(p *Profile) string {
	switch {
	case len(p.Title) == 0:
		return PlaceholderBody
	case len(p.Subtitle) > 0:
		return PlaceholderTitle + "\n" + PlaceholderSubtitle + "\n\n" + PlaceholderBody
	default:
		return PlaceholderTitle + "\n\n" + PlaceholderBody
	}
}

func tagSet(tags []string) map[string]bool {
	m := make(map[string]bool, len(tags))
	for _, t := range tags {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			m[t] = true
		}
	}
	return m
}

// IsHeader reports whether tag is a section header.
func (p *Profile) IsHeader(tag string) bool { return p.headerSet[tag] }

// IsList reports whether tag is a list container.
func (p *Profile) IsList(tag string) bool { return p.listSet[tag] }

// HandlesRows reports whether table rows are emitted.
func (p *Profile) HandlesRows() bool { return p.enabled[KindTableRow] }

// IsCell reports whether tag is a table cell.
func (p *Profile) IsCell(tag string) bool { return p.cellSet[tag] }

// IsParagraph reports whether n is handled as a paragraph.
func (p *Profile) IsParagraph(n dom.Node) bool {
	if !p.enabled[KindParagraph] {
		return false
	}
	if n.Tag() == "p" {
		return true
	}
	for _, q := range p.paragraphQueries {
		if q.Match(n) {
			return true
		}
	}
	return false
}

// StripsTag reports whether tag is removed from paragraph text.
func (p *Profile) StripsTag(tag string) bool { return p.stripSet[tag] }

// AllowsNested reports whether a direct child of a paragraph with this tag
// contributes text. It is only consulted when NestedTagAllowlist is set.
func (p *Profile) AllowsNested(tag string) bool { return p.allowSet[tag] }

// ParagraphSkips reports whether an excluded paragraph starts a skip region.
func (p *Profile) ParagraphSkips() bool {
	return p.ParagraphTriggersSkip == nil || *p.ParagraphTriggersSkip
}

// For returns the separator appended after a block of the given kind.
func (s Separators) For(kind Kind) string {
	var v string
	switch kind {
	case KindHeader:
		v = s.Header
	case KindParagraph:
		v = s.Paragraph
	case KindListItem:
		v = s.ListItem
	case KindTableRow:
		v = s.TableRow
	}
	if v == "" {
		return defaultSeparator
	}
	return v
}

// ContainsAny reports whether any needle is a case-sensitive substring of s.
func ContainsAny(s string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(s, n) {
			return true
		}
	}
	return false
}

// EqualsAny reports whether s equals one of candidates exactly.
func EqualsAny(s string, candidates []string) bool {
	for _, c := range candidates {
		if s == c {
			return true
		}
	}
	return false
}
