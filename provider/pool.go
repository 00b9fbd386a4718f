package provider

import (
	"errors"
	"sync"
)

// Endpoint is one URL and API key pair the OpenAI client may call.
type Endpoint struct {
	URL    string `yaml:"url" toml:"url" json:"url"`
	APIKey string `yaml:"api_key" toml:"api_key" json:"api_key"`
}

// Pool is a rotating cursor over endpoints shared by every request in the
// process. It only moves when a caller reports a rate limit.
type Pool struct {
	mu        sync.Mutex
	endpoints []Endpoint
	cur       int
}

// NewPool returns a pool positioned at the first endpoint.
func NewPool(endpoints ...Endpoint) (*Pool, error) {
	if len(endpoints) == 0 {
		return nil, errors.New("provider: endpoint pool is empty")
	}
	eps := make([]Endpoint, len(endpoints))
	copy(eps, endpoints)
	return &Pool{endpoints: eps}, nil
}

// Current returns the active endpoint and its position. Pass the position to
// Advance when the endpoint turns out to be rate limited.
func (p *Pool) Current() (Endpoint, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.endpoints[p.cur], p.cur
}

// Advance moves past the endpoint at position from. If another request has
// already rotated away from it the cursor is left alone, so concurrent 429s
// on one endpoint skip ahead by one step only.
func (p *Pool) Advance(from int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cur == from {
		p.cur = (p.cur + 1) % len(p.endpoints)
	}
}

// Len returns the number of endpoints in the pool.
func (p *Pool) Len() int {
	return len(p.endpoints)
}
