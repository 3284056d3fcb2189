// Package transport talks to the platform REST API with per-attempt
// timeouts and bounded, backed-off retries of idempotent requests.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/unkn0wn-root/swrcache"
	"resty.dev/v3"
)

const (
	defaultTimeout  = 10 * time.Second
	defaultAttempts = 3
	maxBodyBytes    = 4 << 20
)

var errInvalidJSON = errors.New("invalid JSON body")

// Options configure a Client. Only BaseURL is required.
type Options struct {
	BaseURL     string
	Credentials Credentials     // nil => NoCredentials
	Logger      swrcache.Logger // nil => NopLogger
	Timeout     time.Duration   // per attempt; 0 => 10s
	Attempts    int             // total attempts for idempotent requests; 0 => 3
	// NewTimer drives the waits between attempts; nil => wall clock.
	NewTimer func() backoff.Timer
}

// Request is one logical call. Zero Timeout/Attempts take the client defaults.
type Request struct {
	Method   string
	Path     string
	Query    url.Values
	Body     any
	Timeout  time.Duration
	Attempts int
}

type Client struct {
	rc       *resty.Client
	creds    Credentials
	log      swrcache.Logger
	timeout  time.Duration
	attempts int
	newTimer func() backoff.Timer
}

func New(opts Options) (*Client, error) {
	u, err := url.Parse(opts.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("transport: invalid base URL %q", opts.BaseURL)
	}

	c := &Client{
		creds:    opts.Credentials,
		log:      opts.Logger,
		timeout:  opts.Timeout,
		attempts: opts.Attempts,
		newTimer: opts.NewTimer,
	}
	if c.creds == nil {
		c.creds = NoCredentials{}
	}
	if c.log == nil {
		c.log = swrcache.NopLogger{}
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.attempts <= 0 {
		c.attempts = defaultAttempts
	}

	// retries belong to Do, not to resty
	c.rc = resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetRetryCount(0)
	return c, nil
}

func (c *Client) Close() error { return c.rc.Close() }

// Do performs req. Timeouts and network failures of idempotent requests are
// retried with exponential backoff (1s, 2s, 4s, capped at 5s); the last
// error is returned as is. POST and PATCH run exactly once.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	attempts := req.Attempts
	if attempts <= 0 {
		attempts = c.attempts
	}
	if !idempotent(method) {
		attempts = 1
	}

	var (
		out     *Response
		attempt int
	)
	op := func() error {
		attempt++
		resp, err := c.once(ctx, method, req, timeout)
		if err != nil {
			if Retryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		out = resp
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.log.Warn("request failed; retrying", swrcache.Fields{
			"method":  method,
			"path":    req.Path,
			"attempt": attempt,
			"backoff": wait,
			"err":     err,
		})
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(retryPolicy(), uint64(attempts-1)), ctx)
	var timer backoff.Timer
	if c.newTimer != nil {
		timer = c.newTimer()
	}
	if err := backoff.RetryNotifyWithTimer(op, policy, notify, timer); err != nil {
		return nil, err
	}
	return out, nil
}

func retryPolicy() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.Multiplier = 2
	b.MaxInterval = 5 * time.Second
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func idempotent(method string) bool {
	return method != http.MethodPost && method != http.MethodPatch
}

func (c *Client) once(ctx context.Context, method string, req Request, timeout time.Duration) (*Response, error) {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	token, err := c.creds.Token(actx)
	if err != nil {
		return nil, fmt.Errorf("transport: credentials: %w", err)
	}

	r := c.rc.R().
		SetContext(actx).
		SetHeader("Accept", "application/json").
		SetDoNotParseResponse(true)
	if token != "" {
		r.SetAuthToken(token)
	}
	if len(req.Query) > 0 {
		r.SetQueryParamsFromValues(req.Query)
	}
	if req.Body != nil {
		r.SetHeader("Content-Type", "application/json").SetBody(req.Body)
	}

	resp, err := r.Execute(method, req.Path)
	if err != nil {
		return nil, c.classify(ctx, method, req.Path, timeout, err)
	}
	if resp == nil || resp.RawResponse == nil {
		return nil, &NetworkError{Method: method, Path: req.Path, Err: errors.New("no response")}
	}
	body := resp.RawResponse.Body
	defer body.Close()

	// one byte past the limit tells a full body from an oversized one
	raw, err := io.ReadAll(io.LimitReader(body, maxBodyBytes+1))
	if err != nil {
		return nil, c.classify(ctx, method, req.Path, timeout, err)
	}
	tooLarge := len(raw) > maxBodyBytes

	status := resp.RawResponse.StatusCode
	if status < 200 || status > 299 {
		if tooLarge {
			raw = raw[:maxBodyBytes]
		}
		return nil, &HTTPError{Method: method, Path: req.Path, Status: status, Body: strings.TrimSpace(string(raw))}
	}
	if tooLarge {
		return nil, &BodyTooLargeError{Method: method, Path: req.Path, Limit: maxBodyBytes}
	}
	return decodeBody(req.Path, status, resp.RawResponse.Header.Get("Content-Type"), raw)
}

// classify maps a failed attempt to TimeoutError or NetworkError. A canceled
// caller context is returned unchanged so it is never retried.
func (c *Client) classify(ctx context.Context, method, path string, timeout time.Duration, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Method: method, Path: path, After: timeout}
	}
	var ne interface{ Timeout() bool }
	if errors.As(err, &ne) && ne.Timeout() {
		return &TimeoutError{Method: method, Path: path, After: timeout}
	}
	return &NetworkError{Method: method, Path: path, Err: err}
}

// GetJSON fetches path and decodes the unwrapped data into T.
func GetJSON[T any](ctx context.Context, c *Client, path string, query url.Values) (T, error) {
	resp, err := c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query})
	if err != nil {
		var zero T
		return zero, err
	}
	return As[T](path, resp)
}

// PostJSON posts body to path (single attempt) and decodes the unwrapped
// data into T.
func PostJSON[T any](ctx context.Context, c *Client, path string, body any) (T, error) {
	resp, err := c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body})
	if err != nil {
		var zero T
		return zero, err
	}
	return As[T](path, resp)
}

// As decodes resp.Data into T.
func As[T any](path string, resp *Response) (T, error) {
	var v T
	if len(resp.Data) == 0 {
		return v, &DecodeError{Path: path, Err: fmt.Errorf("expected JSON, got %q", resp.ContentType)}
	}
	if err := json.Unmarshal(resp.Data, &v); err != nil {
		return v, &DecodeError{Path: path, Err: err}
	}
	return v, nil
}
