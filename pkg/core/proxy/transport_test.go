// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTTPTransport_Do(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Echo-Query", r.URL.RawQuery)
		w.Header().Set("X-Echo-Header", r.Header.Get("X-Custom"))
		w.Header().Set("X-Echo-Content-Type", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusAccepted)
		w.Write(body)
	}))
	defer srv.Close()

	tr := NewHTTPTransport(nil, 0)
	resp, err := tr.Do(context.Background(), &Request{
		Method: http.MethodPut,
		URL:    srv.URL + "/items?a=1",
		Header: map[string]string{"X-Custom": "yes"},
		Query:  map[string]string{"b": "2"},
		Body:   []byte(`{"k":"v"}`),
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if string(resp.Body) != `{"k":"v"}` {
		t.Errorf("body = %s", resp.Body)
	}
	if q := resp.Header.Get("X-Echo-Query"); q != "a=1&b=2" {
		t.Errorf("query = %q", q)
	}
	if h := resp.Header.Get("X-Echo-Header"); h != "yes" {
		t.Errorf("header = %q", h)
	}
	if ct := resp.Header.Get("X-Echo-Content-Type"); ct != "application/json" {
		t.Errorf("default content type = %q", ct)
	}
}

func TestHTTPTransport_ResponseTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, strings.Repeat("x", 64))
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.Client(), 16)
	_, err := tr.Do(context.Background(), &Request{Method: http.MethodGet, URL: srv.URL})
	if !errors.Is(err, ErrResponseTooLarge) {
		t.Fatalf("expected ErrResponseTooLarge, got %v", err)
	}

	tr = NewHTTPTransport(srv.Client(), 64)
	resp, err := tr.Do(context.Background(), &Request{Method: http.MethodGet, URL: srv.URL})
	if err != nil {
		t.Fatalf("Do at the limit: %v", err)
	}
	if len(resp.Body) != 64 {
		t.Errorf("body length = %d", len(resp.Body))
	}
}

func TestHTTPTransport_BadURL(t *testing.T) {
	tr := NewHTTPTransport(nil, 0)
	if _, err := tr.Do(context.Background(), &Request{Method: http.MethodGet, URL: "://bad"}); err == nil {
		t.Fatal("expected an error for an invalid URL")
	}
}
