package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// subscriptionProtocolHeader carries the router's protocol advertisement.
const subscriptionProtocolHeader = "subscription-protocol"

// HTTPConfig holds settings for the HTTP router client.
type HTTPConfig struct {
	// TimeoutMS bounds the full request+response cycle. 0 disables the
	// timeout.
	TimeoutMS int64 `json:"timeoutMs,omitempty" yaml:"timeout_ms,omitempty"`
}

// HTTPClient posts callback envelopes over HTTP.
type HTTPClient struct {
	inner   *http.Client
	timeout time.Duration
}

// NewHTTPClient creates an HTTP router client.
func NewHTTPClient(cfg HTTPConfig) *HTTPClient {
	return &HTTPClient{
		inner:   &http.Client{},
		timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond,
	}
}

// Send posts the envelope to its callback URL. Non-2xx statuses and
// transport errors are failures; the decoded error body rides on the
// returned CallbackError.
func (c *HTTPClient) Send(ctx context.Context, req *Request) (*Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal callback envelope: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.CallbackURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build callback request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.inner.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post callback: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	protocol := ParseSubscriptionProtocol(resp.Header.Get(subscriptionProtocolHeader))

	// The body is {errors?: [{message}]} or empty; decode tolerantly.
	var decoded struct {
		Errors []ErrorDetail `json:"errors,omitempty"`
	}
	if raw, err := io.ReadAll(resp.Body); err == nil && len(raw) > 0 {
		_ = json.Unmarshal(raw, &decoded)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &CallbackError{StatusCode: resp.StatusCode, Errors: decoded.Errors}
	}

	return &Response{
		StatusCode:           resp.StatusCode,
		SubscriptionProtocol: protocol,
		Errors:               decoded.Errors,
	}, nil
}
