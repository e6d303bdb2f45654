package extract

import (
	"github.com/hyperifyio/gosift/internal/dom"
	"github.com/hyperifyio/gosift/internal/profile"
)

// Extractor defines a minimal interface for content extraction strategies.
// Implementations must be deterministic and free of side effects.
type Extractor interface {
	Extract(root dom.Node, p *profile.Profile) (Result, error)
}

// Engine is the profile-driven Extractor. It holds no state, so one value
// can be shared across goroutines.
type Engine struct{}

func (Engine) Extract(root dom.Node, p *profile.Profile) (Result, error) {
	return Extract(root, p)
}

// FromHTML decodes body using the charset hinted by contentType and runs p
// against it.
func FromHTML(body []byte, contentType string, p *profile.Profile) (Result, error) {
	root, err := dom.Parse(body, contentType)
	if err != nil {
		return Result{}, err
	}
	return Extract(root, p)
}
