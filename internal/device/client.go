// Package device is the HTTP client for the espresso machine's REST API.
// It is the only place that performs network I/O; every failure it returns
// is a *deviceerr.Error.
package device

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gaggiuino_mcp/internal/deviceerr"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// RequestObserver receives the outcome of every device operation.
type RequestObserver interface {
	ObserveDeviceRequest(operation, outcome string, elapsed time.Duration)
}

// Client talks to a single machine. It holds only immutable configuration
// and is safe for concurrent use.
type Client struct {
	baseURL  string
	timeout  time.Duration
	http     *http.Client
	observer RequestObserver
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its Timeout is
// overwritten with the client timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithObserver registers an observer for request outcomes.
func WithObserver(o RequestObserver) Option {
	return func(c *Client) {
		c.observer = o
	}
}

// New returns a client for the machine at baseURL. Requests running longer
// than timeout fail as connection errors.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	hc := *c.http
	hc.Timeout = timeout
	c.http = &hc
	return c
}

// BaseURL returns the machine address the client was built with.
func (c *Client) BaseURL() string { return c.baseURL }

// transportError means the request never produced a response.
type transportError struct {
	message string
}

func (e *transportError) Error() string { return e.message }

// statusError means the machine answered with a non-success status.
type statusError struct {
	code    int
	message string
}

func (e *statusError) Error() string { return e.message }

// call runs fn and classifies whatever it returns or raises. name is a
// stable operation label for metrics; op is the human description embedded
// in error messages.
func (c *Client) call(ctx context.Context, name, op string, fn func(ctx context.Context) error) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = deviceerr.FromPanic(r, op)
		}
		c.observe(name, err, time.Since(start))
	}()

	// In-flight requests are bounded by the timeout only; a caller that
	// goes away stops waiting but does not abort the request.
	if err := fn(context.WithoutCancel(ctx)); err != nil {
		return classify(err, op)
	}
	return nil
}

func classify(err error, op string) error {
	var (
		classified *deviceerr.Error
		transport  *transportError
		status     *statusError
	)
	switch {
	case errors.As(err, &classified):
		return classified
	case errors.As(err, &transport):
		return deviceerr.Connection(op, transport.message)
	case errors.As(err, &status):
		return deviceerr.API(op, status.code, status.message)
	default:
		return deviceerr.Generic(op, err.Error())
	}
}

func (c *Client) observe(name string, err error, elapsed time.Duration) {
	if c.observer == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = deviceerr.KindOf(err).String()
	}
	c.observer.ObserveDeviceRequest(name, outcome, elapsed)
}

// request performs one HTTP exchange and returns the success body.
func (c *Client) request(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &transportError{message: c.transportMessage(err)}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transportError{message: c.transportMessage(err)}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &statusError{code: resp.StatusCode, message: apiMessage(data, resp.StatusCode)}
	}
	return data, nil
}

func (c *Client) transportMessage(err error) string {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Sprintf("timeout of %dms exceeded", c.timeout.Milliseconds())
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err.Error()
	}
	return err.Error()
}

// apiMessage prefers the machine's own "message" field over the generic text.
func apiMessage(body []byte, code int) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return fmt.Sprintf("Request failed with status code %d", code)
}
