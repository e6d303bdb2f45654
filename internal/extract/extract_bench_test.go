package extract

import (
	"strings"
	"testing"

	"github.com/hyperifyio/gosift/internal/profile"
)

// Benchmark FromHTML on representative HTML sizes and structures.
func BenchmarkFromHTML(b *testing.B) {
	ps, err := profile.Decode(strings.NewReader("name: bench\ndomains: [bench.test]\nheaderExcludeSubstrings: [IOC]\n"))
	if err != nil {
		b.Fatalf("profile: %v", err)
	}
	p := ps[0]
	small := []byte("<html><head><title>t</title></head><body><main><p>a</p></main></body></html>")
	medium := makeHTML(50, 60)
	large := makeHTML(200, 200)

	for name, input := range map[string][]byte{"small": small, "medium": medium, "large": large} {
		b.Run(name, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := FromHTML(input, "text/html", p); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func makeHTML(paras int, itemsPerList int) []byte {
	builder := new(strings.Builder)
	builder.WriteString("<html><head><title>demo</title></head><body><main>")
	for i := 0; i < paras; i++ {
		if i%10 == 9 {
			builder.WriteString("<h2>IOC table</h2><table><tr><td>hash</td><td>sha256</td></tr></table>")
		}
		builder.WriteString("<h2>Heading</h2><p>")
		builder.WriteString(sampleText)
		builder.WriteString("</p>")
	}
	builder.WriteString("<ul>")
	for i := 0; i < itemsPerList; i++ {
		builder.WriteString("<li>")
		builder.WriteString(sampleText)
		builder.WriteString("</li>")
	}
	builder.WriteString("</ul></main></body></html>")
	return []byte(builder.String())
}

const sampleText = "Threat actors continue to abuse exposed management interfaces to gain an initial foothold in enterprise networks."
