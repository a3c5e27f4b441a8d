// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// DefaultMaxResponseBytes caps how much of an upstream response is read.
const DefaultMaxResponseBytes int64 = 10 << 20

// ErrResponseTooLarge is returned when an upstream body exceeds the cap.
var ErrResponseTooLarge = errors.New("upstream response too large")

// Request is one outbound call.
type Request struct {
	Method string
	URL    string
	Header map[string]string
	Query  map[string]string // merged into the query string of URL
	Body   []byte            // nil sends no body
}

// Response is what came back from upstream.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport issues outbound calls. Errors mean no response was received.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// HTTPTransport is a Transport over net/http.
type HTTPTransport struct {
	client           *http.Client
	maxResponseBytes int64
}

// NewHTTPTransport creates an HTTPTransport. A nil client uses a fresh
// http.Client; maxResponseBytes <= 0 uses DefaultMaxResponseBytes.
func NewHTTPTransport(client *http.Client, maxResponseBytes int64) *HTTPTransport {
	if client == nil {
		client = &http.Client{}
	}
	if maxResponseBytes <= 0 {
		maxResponseBytes = DefaultMaxResponseBytes
	}
	return &HTTPTransport{client: client, maxResponseBytes: maxResponseBytes}
}

// Do sends req and reads the whole response body.
func (t *HTTPTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if len(req.Query) > 0 {
		q := u.Query()
		for k, v := range req.Query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range req.Header {
		httpReq.Header.Set(k, v)
	}
	if req.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, t.maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if int64(len(data)) > t.maxResponseBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrResponseTooLarge, t.maxResponseBytes)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}
