// Package apiclient sends JSON requests to the community backend.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"chub/internal/observability"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

// maxErrorBody bounds how much of an error response is kept as payload.
const maxErrorBody = 64 << 10

// Request describes one backend call. Path is relative to the base URL.
type Request struct {
	Method string
	Path   string
	// Route is the templated path used for metrics, e.g. "/posts/{id}".
	// Defaults to Path.
	Route  string
	Query  url.Values
	Body   any
	Token  string
	Header http.Header
}

// Client is a configured request sender with a fixed base URL.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	log     *observability.ClientLogger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout bounds each request. Zero means no timeout beyond the caller's context.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the logger used for request logging.
func WithLogger(l *observability.Logger) Option {
	return func(c *Client) {
		c.log = observability.NewClientLogger("apiclient", l)
	}
}

// New builds a Client for baseURL, e.g. "http://localhost:8080/api".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		log:     observability.NewClientLogger("apiclient", nil),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get is shorthand for a GET Do.
func (c *Client) Get(ctx context.Context, path, token string, out any) error {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Token: token}, out)
}

// Post is shorthand for a POST Do.
func (c *Client) Post(ctx context.Context, path, token string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Token: token, Body: body}, out)
}

// Put is shorthand for a PUT Do.
func (c *Client) Put(ctx context.Context, path, token string, body, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPut, Path: path, Token: token, Body: body}, out)
}

// Delete is shorthand for a DELETE Do.
func (c *Client) Delete(ctx context.Context, path, token string, out any) error {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path, Token: token}, out)
}

// Do sends req and decodes a 2xx JSON body into out (which may be nil).
// Any other outcome returns an *APIError.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	var body io.Reader
	if req.Body != nil {
		buf, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("encode %s %s body: %w", req.Method, req.Path, err)
		}
		body = bytes.NewReader(buf)
	}
	header := req.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	header.Set("Content-Type", "application/json")
	return c.send(ctx, req, header, body, out)
}

// DoMultipart uploads one file as multipart form field `field` and decodes the
// JSON response into out.
func (c *Client) DoMultipart(ctx context.Context, path, token, field, filename string, r io.Reader, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile(field, filename)
	if err != nil {
		return fmt.Errorf("create multipart field: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return fmt.Errorf("copy upload body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart writer: %w", err)
	}
	header := http.Header{}
	header.Set("Content-Type", mw.FormDataContentType())
	return c.send(ctx, Request{Method: http.MethodPost, Path: path, Token: token}, header, &buf, out)
}

func (c *Client) send(ctx context.Context, req Request, header http.Header, body io.Reader, out any) error {
	route := req.Route
	if route == "" {
		route = req.Path
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	requestID := observability.ExtractRequestID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
		ctx = observability.WithRequestID(ctx, requestID)
	}

	span, ctx := observability.NewClientSpan(ctx, req.Method+" "+route,
		attribute.String("http.request.method", req.Method),
		attribute.String("url.template", route),
	)
	defer span.End()

	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", req.Method, req.Path, err)
	}
	httpReq.Header = header
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)
	if req.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.Token)
	}
	observability.InjectHeaders(ctx, propagation.HeaderCarrier(httpReq.Header))

	done := observability.TrackRequest(req.Method, route)
	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		done(0)
		apiErr := &APIError{Kind: KindTransport, Method: req.Method, Path: req.Path, Err: err}
		c.fail(ctx, req.Method, route, 0, apiErr)
		span.SetError(apiErr)
		return apiErr
	}
	defer func() { _ = resp.Body.Close() }()
	done(resp.StatusCode)
	span.AddAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{
			Kind:          KindForStatus(resp.StatusCode),
			Status:        resp.StatusCode,
			Method:        req.Method,
			Path:          req.Path,
			ServerMessage: serverMessage(payload),
		}
		if json.Valid(payload) {
			apiErr.Payload = json.RawMessage(payload)
		}
		c.fail(ctx, req.Method, route, resp.StatusCode, apiErr)
		span.SetError(apiErr)
		return apiErr
	}

	c.log.LogRequest(ctx, req.Method, req.Path, resp.StatusCode, time.Since(start))

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		apiErr := &APIError{Kind: KindTransport, Status: resp.StatusCode, Method: req.Method, Path: req.Path, Err: err}
		c.fail(ctx, req.Method, route, resp.StatusCode, apiErr)
		return apiErr
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", req.Method, req.Path, err)
	}
	return nil
}

func (c *Client) fail(ctx context.Context, method, route string, status int, apiErr *APIError) {
	observability.APIRequestErrors.WithLabelValues(method, route, string(apiErr.Kind)).Inc()
	c.log.LogRequestError(ctx, method, apiErr.Path, status, apiErr)
}
