// Package client executes testutil requests against an http.Handler without
// a network listener.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"time"

	"github.com/pavelpascari/statusapi/pkg/testutil"
)

// Client implements testutil.HTTPClient over an http.Handler.
type Client struct {
	handler    http.Handler
	timeout    time.Duration
	remoteAddr string
}

// Option configures a Client using the functional options pattern.
type Option func(*Client)

// WithTimeout sets the default timeout for requests.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithRemoteAddr sets the peer address seen by the handler.
func WithRemoteAddr(addr string) Option {
	return func(c *Client) {
		c.remoteAddr = addr
	}
}

// NewClient creates a client serving every request with handler.
func NewClient(handler http.Handler, opts ...Option) *Client {
	client := &Client{
		handler: handler,
		timeout: testutil.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Execute performs an HTTP request with explicit error handling and context support.
//
//nolint:gocritic // Request struct size is acceptable for this usage
func (c *Client) Execute(ctx context.Context, req testutil.Request) (*testutil.Response, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	httpReq, err := c.buildHTTPRequest(ctx, req)
	if err != nil {
		return nil, &testutil.RequestError{
			Method: req.Method,
			Path:   req.Path,
			Err:    fmt.Errorf("building HTTP request: %w", err),
		}
	}

	recorder := httptest.NewRecorder()
	c.handler.ServeHTTP(recorder, httpReq)

	body, err := io.ReadAll(recorder.Body)
	if err != nil {
		return nil, &testutil.RequestError{
			Method: req.Method,
			Path:   req.Path,
			Err:    fmt.Errorf("reading response body: %w", err),
		}
	}

	return &testutil.Response{
		StatusCode: recorder.Code,
		Headers:    recorder.Header(),
		Raw:        body,
	}, nil
}

// ExecuteTyped performs a request and decodes a JSON response body into T.
//
//nolint:gocritic // Request struct size is acceptable for this usage
func ExecuteTyped[T any](ctx context.Context, c *Client, req testutil.Request) (*testutil.TypedResponse[T], error) {
	resp, err := c.Execute(ctx, req)
	if err != nil {
		return nil, err
	}

	var data T
	if len(resp.Raw) > 0 && strings.Contains(resp.Headers.Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(resp.Raw, &data); err != nil {
			return nil, &testutil.RequestError{
				Method: req.Method,
				Path:   req.Path,
				Err:    fmt.Errorf("unmarshaling JSON response: %w", err),
			}
		}
	}

	return &testutil.TypedResponse[T]{
		Response: resp,
		Data:     data,
	}, nil
}

//nolint:gocritic // Request struct size is acceptable for this usage
func (c *Client) buildHTTPRequest(ctx context.Context, req testutil.Request) (*http.Request, error) {
	body, contentType, err := buildRequestBody(req)
	if err != nil {
		return nil, err
	}

	target := req.Path
	if len(req.QueryParams) > 0 {
		values := url.Values{}
		for key, value := range req.QueryParams {
			values.Set(key, value)
		}
		target += "?" + values.Encode()
	}

	httpReq := httptest.NewRequest(req.Method, target, body).WithContext(ctx)
	if c.remoteAddr != "" {
		httpReq.RemoteAddr = c.remoteAddr
	}

	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	return httpReq, nil
}

//nolint:gocritic // Request struct size is acceptable for this usage
func buildRequestBody(req testutil.Request) (io.Reader, string, error) {
	if req.RawBody != nil {
		return bytes.NewReader(req.RawBody), "", nil
	}
	if req.Body == nil {
		return nil, "", nil
	}

	jsonData, err := json.Marshal(req.Body)
	if err != nil {
		return nil, "", fmt.Errorf("marshaling request body to JSON: %w", err)
	}

	return bytes.NewReader(jsonData), "application/json", nil
}
