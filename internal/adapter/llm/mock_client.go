package llm

import (
	"context"
	"fmt"
	"sync"
)

// MockClient is an in-memory implementation of Client for development and
// tests. Responses can be scripted per role; unscripted calls get a canned
// response so a local session still produces chatter.
type MockClient struct {
	mu      sync.Mutex
	scripts map[Role][]string
	calls   map[Role]int
	// GenerateFunc, when set, overrides all scripted behavior.
	GenerateFunc func(ctx context.Context, req *Request) (string, error)
}

var _ Client = (*MockClient)(nil)

// NewMockClient creates a mock client with no scripted responses.
func NewMockClient() *MockClient {
	return &MockClient{
		scripts: make(map[Role][]string),
		calls:   make(map[Role]int),
	}
}

// Script queues responses for a role, returned in order. When the queue is
// exhausted the last response repeats.
func (m *MockClient) Script(role Role, responses ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scripts[role] = append(m.scripts[role], responses...)
}

// Calls returns how many times the given role was invoked.
func (m *MockClient) Calls(role Role) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[role]
}

// Generate returns the next scripted response for the request's role.
func (m *MockClient) Generate(ctx context.Context, req *Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.GenerateFunc != nil {
		m.mu.Lock()
		m.calls[req.Role]++
		m.mu.Unlock()
		return m.GenerateFunc(ctx, req)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.calls[req.Role]
	m.calls[req.Role]++

	queue := m.scripts[req.Role]
	if len(queue) > 0 {
		if n >= len(queue) {
			n = len(queue) - 1
		}
		return queue[n], nil
	}

	switch req.Role {
	case RoleDirector:
		return `{"reasoning": "mock", "next_agent": "Alice", "action_type": "message", "performer_instruction": {"objective": "keep the conversation moving", "motivation": "mock run", "action": "post a short remark"}}`, nil
	case RolePerformer:
		return "[MOCK] Just thinking out loud here, anyone else following this?", nil
	case RoleModerator:
		return "Just thinking out loud here, anyone else following this?", nil
	}
	return "", fmt.Errorf("mock client: unknown role %q", req.Role)
}
