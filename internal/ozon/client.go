// Package ozon talks to the seller portal's private review API using a
// captured browser session instead of a first-class credential. Requests
// replay headers derived from a captured-traffic template; responses are
// interpreted through the session health tracker so that expired sessions are
// flagged for relogin instead of being retried blindly.
package ozon

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ashureev/reviewpilot/internal/ratelimit"
	"github.com/ashureev/reviewpilot/internal/session"
)

// Private API endpoints of the seller portal.
const (
	ReviewListURL    = "https://seller.ozon.ru/api/v4/review/list"
	CommentCreateURL = "https://seller.ozon.ru/api/review/comment/create"
)

// DefaultTimeout bounds each marketplace HTTP call.
const DefaultTimeout = 20 * time.Second

// Client issues cookie-authenticated requests against the portal.
type Client struct {
	httpClient *http.Client
	health     session.HealthStore
	limiter    *ratelimit.Limiter
	baseListURL    string
	baseCommentURL string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client (tests).
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithBaseURLs overrides the endpoint URLs (tests).
func WithBaseURLs(listURL, commentURL string) Option {
	return func(c *Client) {
		c.baseListURL = listURL
		c.baseCommentURL = commentURL
	}
}

// NewClient creates a portal client. The limiter is the shared marketplace
// call gate; health receives auth-failure classifications.
func NewClient(health session.HealthStore, limiter *ratelimit.Limiter, opts ...Option) *Client {
	c := &Client{
		httpClient:     &http.Client{Timeout: DefaultTimeout},
		health:         health,
		limiter:        limiter,
		baseListURL:    ReviewListURL,
		baseCommentURL: CommentCreateURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// apiResponse is the raw outcome of one portal call.
type apiResponse struct {
	status      int
	contentType string
	body        []byte
}

func (r *apiResponse) ok() bool {
	return r.status >= 200 && r.status < 300
}

// postJSON sends one JSON request with the replayed header set and the live
// cookie header from the session artifact.
func (c *Client) postJSON(ctx context.Context, url string, headers map[string]string, cookieHeader string, body []byte) (*apiResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for name, value := range headers {
		req.Header.Set(name, value)
	}
	req.Header.Set("Cookie", cookieHeader)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("portal request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("read portal response: %w", err)
	}

	return &apiResponse{
		status:      resp.StatusCode,
		contentType: resp.Header.Get("Content-Type"),
		body:        data,
	}, nil
}
