// Package useragent supplies the browser identities used for outbound
// requests.
package useragent

import (
	"errors"
	"math/rand/v2"
	"strings"
	"sync/atomic"
)

// browsers mirrors common desktop and mobile browsers. Search engine crawler
// identities are deliberately absent: robots rules written for them must not
// be borrowed.
var browsers = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0.3 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:91.0) Gecko/20100101 Firefox/91.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:91.0) Gecko/20100101 Firefox/91.0",
	"Mozilla/5.0 (X11; Linux x86_64; rv:91.0) Gecko/20100101 Firefox/91.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0.0.0 Safari/537.36 Edg/115.0.0.0",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 14_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0 Mobile/15A372 Safari/604.1",
	"Mozilla/5.0 (iPad; CPU OS 14_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0 Mobile/15A5341f Safari/604.1",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0.0.0 Safari/537.36 OPR/101.0.0.0",
	"Mozilla/5.0 (Linux; Android 10; SM-G975F) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/80.0.3987.132 Mobile Safari/537.36",
}

// ErrEmpty is returned when a pool would hold no agents.
var ErrEmpty = errors.New("user agent pool is empty")

// Pool is a fixed list of user agents. It is safe for concurrent use.
type Pool struct {
	agents []string
	next   atomic.Uint64
}

// New builds a pool from agents, ignoring blank entries.
func New(agents ...string) (*Pool, error) {
	var clean []string
	for _, a := range agents {
		if a = strings.TrimSpace(a); a != "" {
			clean = append(clean, a)
		}
	}
	if len(clean) == 0 {
		return nil, ErrEmpty
	}
	return &Pool{agents: clean}, nil
}

// Default returns a pool of the built-in browser agents.
func Default() *Pool {
	p, _ := New(browsers...)
	return p
}

// Pick returns a random agent.
func (p *Pool) Pick() string {
	return p.agents[rand.IntN(len(p.agents))]
}

// Next returns agents in round-robin order.
func (p *Pool) Next() string {
	i := p.next.Add(1) - 1
	return p.agents[i%uint64(len(p.agents))]
}

// Agents returns a copy of the pool contents.
func (p *Pool) Agents() []string {
	return append([]string(nil), p.agents...)
}

// Len returns the pool size.
func (p *Pool) Len() int { return len(p.agents) }
