// Package assemble turns extracted blocks into the final article string.
package assemble

import (
	"strings"

	"github.com/hyperifyio/gosift/internal/extract"
	"github.com/hyperifyio/gosift/internal/profile"
)

// Body concatenates each block followed by the separator of its kind and
// trims the result.
func Body(blocks []extract.Block, seps profile.Separators) string {
	var b strings.Builder
	for _, blk := range blocks {
		b.WriteString(blk.Text)
		b.WriteString(seps.For(blk.Kind))
	}
	return strings.TrimSpace(b.String())
}

// Article renders res through the profile's template. The output never has
// leading or trailing whitespace; an empty result yields "".
func Article(p *profile.Profile, res extract.Result) string {
	if res.Empty() {
		return ""
	}
	r := strings.NewReplacer(
		profile.PlaceholderTitle, res.Title,
		profile.PlaceholderSubtitle, res.Subtitle,
		profile.PlaceholderBody, Body(res.Blocks, p.Separators),
	)
	return strings.TrimSpace(r.Replace(p.Template))
}
