// Package httpclient sends REST requests to the report API. It attaches the
// session's bearer token and turns 401 responses into UnauthorizedEvents.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const LoginView = "/login"

// TokenSource yields the current bearer token, or "" when there is none.
type TokenSource interface {
	Token() string
}

// ViewLocator reports the view the user is currently on.
type ViewLocator interface {
	CurrentView() string
}

type UnauthorizedEvent struct {
	Method    string
	Path      string
	View      string
	RequestID string
}

type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	views   ViewLocator
	logger  *slog.Logger

	mu        sync.Mutex
	listeners map[int]func(UnauthorizedEvent)
	nextID    int
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

func WithViewLocator(vl ViewLocator) Option {
	return func(c *Client) { c.views = vl }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: timeout},
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		listeners: make(map[int]func(UnauthorizedEvent)),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SetTokenSource and SetViewLocator allow late binding, since the session
// store and the navigator are themselves built on top of the client.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.mu.Lock()
	c.tokens = ts
	c.mu.Unlock()
}

func (c *Client) SetViewLocator(vl ViewLocator) {
	c.mu.Lock()
	c.views = vl
	c.mu.Unlock()
}

// OnUnauthorized registers fn for every UnauthorizedEvent and returns a func
// that removes it.
func (c *Client) OnUnauthorized(fn func(UnauthorizedEvent)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

type requestOptions struct {
	anonymous bool
	header    http.Header
}

type RequestOption func(*requestOptions)

// Anonymous sends the request without the Authorization header.
func Anonymous() RequestOption {
	return func(o *requestOptions) { o.anonymous = true }
}

func Header(key, value string) RequestOption {
	return func(o *requestOptions) { o.header.Set(key, value) }
}

type Response struct {
	Status    int
	Header    http.Header
	Body      []byte
	RequestID string
}

func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Send issues method path with body. body may be nil, an io.Reader, a
// *Multipart or any JSON-encodable value. Non-2xx responses come back as
// *StatusError together with the Response.
func (c *Client) Send(ctx context.Context, method, path string, body any, opts ...RequestOption) (*Response, error) {
	ro := requestOptions{header: make(http.Header)}
	for _, o := range opts {
		o(&ro)
	}

	reader, contentType, err := encodeBody(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)
	for k, vs := range ro.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	tokens, views := c.sources()
	if !ro.anonymous && tokens != nil {
		if tok := tokens.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "path", path, "request_id", reqID, "err", err)
		return nil, &TransportError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Method: method, Path: path, Err: err}
	}
	c.logger.Debug("request done",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
		"request_id", reqID,
	)

	out := &Response{Status: resp.StatusCode, Header: resp.Header, Body: data, RequestID: reqID}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return out, nil
	}

	if resp.StatusCode == http.StatusUnauthorized {
		view := ""
		if views != nil {
			view = views.CurrentView()
		}
		if view != LoginView {
			c.emit(UnauthorizedEvent{Method: method, Path: path, View: view, RequestID: reqID})
		}
	}
	return out, &StatusError{Method: method, Path: path, Status: resp.StatusCode, Header: resp.Header, Body: data}
}

func (c *Client) Get(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.Send(ctx, http.MethodGet, path, nil, opts...)
}

func (c *Client) Post(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	return c.Send(ctx, http.MethodPost, path, body, opts...)
}

func (c *Client) Patch(ctx context.Context, path string, body any, opts ...RequestOption) (*Response, error) {
	return c.Send(ctx, http.MethodPatch, path, body, opts...)
}

func (c *Client) Delete(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.Send(ctx, http.MethodDelete, path, nil, opts...)
}

func (c *Client) sources() (TokenSource, ViewLocator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokens, c.views
}

func (c *Client) emit(ev UnauthorizedEvent) {
	c.mu.Lock()
	fns := make([]func(UnauthorizedEvent), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	c.logger.Info("unauthorized response", "method", ev.Method, "path", ev.Path, "view", ev.View)
	for _, fn := range fns {
		fn(ev)
	}
}

func encodeBody(body any) (io.Reader, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case *Multipart:
		return b.encode()
	case io.Reader:
		return b, "", nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, "", fmt.Errorf("encode body: %w", err)
		}
		return bytes.NewReader(data), "application/json", nil
	}
}
