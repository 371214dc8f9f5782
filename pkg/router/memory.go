package router

import (
	"context"
	"net/http"
	"strings"
	"sync"
)

// MemoryClient is an in-process router client for development and tests.
// It records every envelope it receives. Envelopes addressed to a callback
// URL ending in "/error", or whose action was registered with FailAction,
// fail with a CallbackError.
type MemoryClient struct {
	mu          sync.Mutex
	sent        []*Request
	failActions map[string]bool
}

// NewMemoryClient creates an in-process router client.
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{failActions: make(map[string]bool)}
}

// FailAction makes every envelope with the given action fail.
func (c *MemoryClient) FailAction(action string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failActions[action] = true
}

// Sent returns the envelopes received so far.
func (c *MemoryClient) Sent() []*Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Request, len(c.sent))
	copy(out, c.sent)
	return out
}

// SentActions returns the actions of the envelopes received so far.
func (c *MemoryClient) SentActions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent))
	for i, req := range c.sent {
		out[i] = req.Action()
	}
	return out
}

// Send records the envelope and answers as a healthy callback/1.0 router.
func (c *MemoryClient) Send(_ context.Context, req *Request) (*Response, error) {
	c.mu.Lock()
	c.sent = append(c.sent, req)
	fail := c.failActions[req.Action()] || strings.HasSuffix(req.CallbackURL, "/error")
	c.mu.Unlock()

	if fail {
		return nil, &CallbackError{
			StatusCode: http.StatusInternalServerError,
			Errors:     []ErrorDetail{{Message: "test"}},
		}
	}

	return &Response{
		StatusCode:           http.StatusNoContent,
		SubscriptionProtocol: ProtocolCallback1,
	}, nil
}
