// Package mock provides a scripted language-model provider for testing and
// for running the service without network access.
package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/GoCodeAlone/taskflow/provider"
)

const defaultResponse = "Medium"

// MockProvider implements provider.Provider for testing.
// Queued errors are returned first. A request whose messages contain the
// match text of a route is answered from that route; anything else cycles
// through the scripted responses. It is safe for concurrent use.
type MockProvider struct {
	mu        sync.Mutex
	responses []string
	routes    []*route
	errs      []error
	idx       int
	calls     [][]provider.Message
}

type route struct {
	match     string
	responses []string
	idx       int
}

// New creates a MockProvider that cycles through the given responses.
func New(responses ...string) *MockProvider {
	return &MockProvider{responses: responses}
}

// FailWith queues errors returned by the next len(errs) Chat calls.
func (m *MockProvider) FailWith(errs ...error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, errs...)
	return m
}

// On answers requests whose messages contain match with responses, cycled
// in order. Routes are checked in the order they were added.
func (m *MockProvider) On(match string, responses ...string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes = append(m.routes, &route{match: match, responses: responses})
	return m
}

// Name returns the provider identifier.
func (m *MockProvider) Name() string { return "mock" }

// Chat returns the next queued error or scripted response.
func (m *MockProvider) Chat(ctx context.Context, messages []provider.Message) (*provider.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, messages)
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return nil, err
	}
	if r := m.routeFor(messages); r != nil && len(r.responses) > 0 {
		resp := r.responses[r.idx%len(r.responses)]
		r.idx++
		return &provider.Response{Content: resp}, nil
	}
	if len(m.responses) == 0 {
		return &provider.Response{Content: defaultResponse}, nil
	}
	resp := m.responses[m.idx%len(m.responses)]
	m.idx++
	return &provider.Response{Content: resp}, nil
}

func (m *MockProvider) routeFor(messages []provider.Message) *route {
	for _, r := range m.routes {
		for _, msg := range messages {
			if strings.Contains(msg.Content, r.match) {
				return r
			}
		}
	}
	return nil
}

// Calls returns the messages of every Chat call so far.
func (m *MockProvider) Calls() [][]provider.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]provider.Message, len(m.calls))
	copy(out, m.calls)
	return out
}
