package llm

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockClient is a deterministic Client for tests and offline runs. When
// Respond is nil it echoes an acknowledgement of the last message line, which
// is enough to drive a full conversation through the fallback plan path.
type MockClient struct {
	RoleName string
	Respond  func(req *Request) (*Response, error)

	mu       sync.Mutex
	requests []Request
}

// NewMock creates a mock with the given scripted responder. A nil respond
// function selects the default acknowledgement behavior.
func NewMock(respond func(req *Request) (*Response, error)) *MockClient {
	return &MockClient{RoleName: "mock", Respond: respond}
}

// Chat records the request and produces the scripted or default response.
func (m *MockClient) Chat(_ context.Context, req *Request) (*Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, *req)
	m.mu.Unlock()

	if m.Respond != nil {
		return m.Respond(req)
	}
	return &Response{Text: m.ack(req)}, nil
}

// Requests returns a snapshot of every request seen so far.
func (m *MockClient) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

func (m *MockClient) ack(req *Request) string {
	last := ""
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Content != "" {
			last = req.Messages[i].Content
			break
		}
	}
	lines := strings.Split(strings.TrimSpace(last), "\n")
	base := lines[len(lines)-1]
	if len(base) > 120 {
		base = base[:120]
	}
	return fmt.Sprintf("[%s] Ack: %s ...", m.RoleName, base)
}
