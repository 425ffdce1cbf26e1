package waitlist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const userAgent = "muse-cli/1.0"

var (
	// errRetryable marks responses worth retrying (429 and 5xx).
	errRetryable = errors.New("retryable response")
	// errTransport marks requests that failed before a full response arrived.
	errTransport = errors.New("transport failure")
)

// Client calls the waitlist endpoints of a running server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	delays     []time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRetryDelays sets the waits between attempts. An empty list disables
// retries.
func WithRetryDelays(delays ...time.Duration) ClientOption {
	return func(c *Client) {
		c.delays = delays
	}
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		delays: []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Check calls GET /api/waitlist.
func (c *Client) Check(ctx context.Context, email string) (CheckResult, error) {
	if Key(email) == "" {
		return CheckResult{}, fmt.Errorf("%w: email is required", ErrInvalidRequest)
	}
	reqURL := c.baseURL + "/api/waitlist?" + url.Values{"email": {email}}.Encode()

	status, body, err := c.do(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return CheckResult{}, fmt.Errorf("checking waitlist: %w", err)
	}
	if status != http.StatusOK {
		return CheckResult{}, statusError(status, body)
	}

	var res CheckResult
	if err := json.Unmarshal(body, &res); err != nil {
		return CheckResult{}, fmt.Errorf("parsing check response: %w", err)
	}
	return res, nil
}

// Register calls POST /api/waitlist. The server does not echo the entry, so
// the returned Entry carries only the submitted email and name.
func (c *Client) Register(ctx context.Context, email, name string) (Entry, error) {
	payload, err := json.Marshal(map[string]string{"email": email, "name": name})
	if err != nil {
		return Entry{}, fmt.Errorf("encoding request: %w", err)
	}

	status, body, err := c.do(ctx, http.MethodPost, c.baseURL+"/api/waitlist", payload)
	if err != nil {
		return Entry{}, fmt.Errorf("registering: %w", err)
	}
	if status != http.StatusCreated {
		return Entry{}, statusError(status, body)
	}

	var res struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return Entry{}, fmt.Errorf("parsing register response: %w", err)
	}
	if !res.Success {
		return Entry{}, fmt.Errorf("unexpected register response: %s", body)
	}
	return Entry{Email: email, Name: name}, nil
}

func statusError(status int, body []byte) error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)
	msg := eb.Error
	if msg == "" {
		msg = eb.Message
	}

	switch status {
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrInvalidRequest, msg)
	case http.StatusConflict:
		return ErrAlreadyRegistered
	default:
		return fmt.Errorf("unexpected status %d: %s", status, msg)
	}
}

// do performs a request, retrying 429 and 5xx responses and transport
// failures with backoff. After the last attempt the final response is
// returned, or the final transport error.
func (c *Client) do(ctx context.Context, method, reqURL string, payload []byte) (int, []byte, error) {
	var lastStatus int
	var lastBody []byte
	var lastErr error

	for attempt := 0; attempt <= len(c.delays); attempt++ {
		// Wait before retry (skip on first attempt)
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return 0, nil, ctx.Err()
			case <-time.After(c.delays[attempt-1]):
			}
		}

		status, body, err := c.doSingleRequest(ctx, method, reqURL, payload)
		if err == nil {
			return status, body, nil
		}
		switch {
		case errors.Is(err, errRetryable):
			lastStatus, lastBody, lastErr = status, body, nil
		case errors.Is(err, errTransport) && ctx.Err() == nil:
			lastErr = err
		default:
			return 0, nil, err
		}
	}

	if lastErr != nil {
		return 0, nil, lastErr
	}
	return lastStatus, lastBody, nil
}

func (c *Client) doSingleRequest(ctx context.Context, method, reqURL string, payload []byte) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("executing request: %w: %w", errTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("reading response body: %w: %w", errTransport, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return resp.StatusCode, body, errRetryable
	}
	return resp.StatusCode, body, nil
}
