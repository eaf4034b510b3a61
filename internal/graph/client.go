// Package graph is a small Microsoft Graph REST client: mail send, workbook
// table inserts and a throttle-aware call wrapper.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/blockedby/mailmerge/internal/logger"
)

// DefaultBaseURL is the Graph v1.0 endpoint.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

// Config holds the configuration for the Graph client.
type Config struct {
	BaseURL     string
	TokenSource oauth2.TokenSource
	HTTPClient  *http.Client
	Retry       RetryPolicy
	Timeout     time.Duration
}

// Client performs authenticated Graph calls.
type Client struct {
	http    *http.Client
	baseURL string
	tokens  oauth2.TokenSource
	retry   RetryPolicy
	log     *logger.Logger

	// sleep is swapped in tests to observe backoff without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a Graph client. A nil TokenSource sends unauthenticated requests.
func NewClient(cfg Config, log *logger.Logger) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	retry := cfg.Retry
	if retry.Step == 0 && retry.MaxRetries == 0 {
		retry = DefaultRetryPolicy()
	}

	if log == nil {
		log = logger.Get()
	}

	return &Client{
		http:    httpClient,
		baseURL: baseURL,
		tokens:  cfg.TokenSource,
		retry:   retry,
		log:     log,
		sleep:   sleepCtx,
	}
}

// Request describes one Graph call. Path is relative to the base URL unless it is absolute.
type Request struct {
	Method string
	Path   string
	Body   any
	Header http.Header
}

// Response is a successful Graph response with its body fully read.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Decode unmarshals a JSON body into v. Empty bodies (204) leave v untouched.
func (r *Response) Decode(v any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode graph response: %w", err)
	}
	return nil
}

// Token fetches an access token, failing with ErrTokenUnavailable.
func (c *Client) Token(_ context.Context) (string, error) {
	if c.tokens == nil {
		return "", nil
	}
	tok, err := c.tokens.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTokenUnavailable, err)
	}
	return tok.AccessToken, nil
}

// Do performs req, retrying throttled responses (429/503) per the client's RetryPolicy.
// Any other non-2xx status is returned immediately as a *Error.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := c.Call(ctx, req)
		if err == nil {
			return resp, nil
		}

		gerr, ok := AsError(err)
		if !ok || !gerr.Throttled() || attempt >= c.retry.MaxRetries {
			return nil, err
		}

		wait := c.retry.Delay(attempt+1, gerr.RetryAfter)
		c.log.Warn().
			Str("method", gerr.Method).
			Str("path", gerr.Path).
			Int("status", gerr.Status).
			Int("retry", attempt+1).
			Dur("wait", wait).
			Msg("graph throttled, backing off")

		if err := c.sleep(ctx, wait); err != nil {
			return nil, fmt.Errorf("graph backoff: %w", err)
		}
	}
}

// Call performs req once without retrying.
func (c *Client) Call(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal graph request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.url(req.Path), body)
	if err != nil {
		return nil, fmt.Errorf("build graph request: %w", err)
	}

	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, vals := range req.Header {
		for _, v := range vals {
			httpReq.Header.Add(k, v)
		}
	}

	res, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("graph %s %s: %w", method, req.Path, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read graph response: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, newError(method, req.Path, res.StatusCode, res.Header, data)
	}

	return &Response{Status: res.StatusCode, Header: res.Header, Body: data}, nil
}

func (c *Client) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}
