package simulation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/okian/palco/internal/domain/types"
)

// Client wraps http.Client with a base URL.
type Client struct {
	client  *http.Client
	baseURL string
}

// NewClient creates a client for baseURL with a request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// request describes one API call.
type request struct {
	method  string
	path    string
	token   string
	body    any
	headers map[string]string
}

// do sends req and decodes a 2xx body into out. Any status outside want is
// reported as ErrUnexpectedStatus with the server's error body.
func (c *Client) do(ctx context.Context, req request, out any, want ...int) (int, error) {
	var body io.Reader = http.NoBody
	if req.body != nil {
		raw, err := json.Marshal(req.body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, body)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.token)
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", req.method, req.path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	for _, code := range want {
		if resp.StatusCode != code {
			continue
		}
		if out != nil && len(data) > 0 {
			if err := json.Unmarshal(data, out); err != nil {
				return resp.StatusCode, fmt.Errorf("failed to decode %s %s: %w", req.method, req.path, err)
			}
		}
		return resp.StatusCode, nil
	}

	var apiErr types.ErrorResponse
	_ = json.Unmarshal(data, &apiErr)
	return resp.StatusCode, fmt.Errorf("%w: %s %s returned %d %s: %s",
		ErrUnexpectedStatus, req.method, req.path, resp.StatusCode, apiErr.Code, apiErr.Message)
}
