// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package authinject

import (
	"maps"
	"testing"

	"github.com/leseb/integrations-gw/pkg/core/schema"
)

func TestInject_Bearer(t *testing.T) {
	scheme := schema.AuthScheme{Type: schema.AuthBearer, TokenField: "tok"}
	headers, params := Inject(scheme, map[string]string{"tok": "abc"}, nil, nil)

	if got := headers["Authorization"]; got != "Bearer abc" {
		t.Errorf("expected 'Bearer abc', got %q", got)
	}
	if len(params) != 0 {
		t.Errorf("expected no params, got %v", params)
	}
}

func TestInject_MissingFieldIsOmitted(t *testing.T) {
	cases := []schema.AuthScheme{
		{Type: schema.AuthBearer, TokenField: "tok"},
		{Type: schema.AuthAPIKeyHeader, TokenField: "tok"},
		{Type: schema.AuthAPIKeyQuery, TokenField: "tok"},
		{Type: schema.AuthBasic, UsernameField: "user", PasswordField: "pass"},
		{Type: schema.AuthBearer}, // no token_field at all
	}
	creds := map[string]string{"user": "alice", "tok": ""}
	for _, scheme := range cases {
		headers, params := Inject(scheme, creds, nil, nil)
		if len(headers) != 0 || len(params) != 0 {
			t.Errorf("%s: expected nothing injected, got headers=%v params=%v", scheme.Type, headers, params)
		}
	}
}

func TestInject_APIKeyHeader(t *testing.T) {
	creds := map[string]string{"key": "k-1"}

	headers, _ := Inject(schema.AuthScheme{Type: schema.AuthAPIKeyHeader, TokenField: "key"}, creds, nil, nil)
	if headers[DefaultAPIKeyHeader] != "k-1" {
		t.Errorf("expected default header to carry key, got %v", headers)
	}

	headers, _ = Inject(schema.AuthScheme{Type: schema.AuthAPIKeyHeader, TokenField: "key", HeaderName: "X-Notion-Key"}, creds, nil, nil)
	if headers["X-Notion-Key"] != "k-1" {
		t.Errorf("expected custom header to carry key, got %v", headers)
	}
}

func TestInject_APIKeyQuery(t *testing.T) {
	creds := map[string]string{"key": "k-1"}

	_, params := Inject(schema.AuthScheme{Type: schema.AuthAPIKeyQuery, TokenField: "key"}, creds, nil, map[string]string{"q": "x"})
	if params[DefaultAPIKeyParam] != "k-1" || params["q"] != "x" {
		t.Errorf("unexpected params %v", params)
	}

	_, params = Inject(schema.AuthScheme{Type: schema.AuthAPIKeyQuery, TokenField: "key", ParamName: "token"}, creds, nil, nil)
	if params["token"] != "k-1" {
		t.Errorf("unexpected params %v", params)
	}
}

func TestInject_Basic(t *testing.T) {
	scheme := schema.AuthScheme{Type: schema.AuthBasic, UsernameField: "user", PasswordField: "pass"}
	headers, _ := Inject(scheme, map[string]string{"user": "Aladdin", "pass": "open sesame"}, nil, nil)

	if got := headers["Authorization"]; got != "Basic QWxhZGRpbjpvcGVuIHNlc2FtZQ==" {
		t.Errorf("unexpected basic header %q", got)
	}
}

func TestInject_ExtraHeaders(t *testing.T) {
	scheme := schema.AuthScheme{
		Type:       schema.AuthBearer,
		TokenField: "access_token",
		ExtraHeaders: map[string]string{
			"X-Github-Api-Version": "{api_version}",
			"X-Owner":              "org={owner};v={api_version}",
			"X-V":                  "{missing_field}",
			"X-Partial":            "{owner}-{missing_field}",
			"X-Literal":            "{{static}}",
			"X-Broken":             "{owner",
		},
	}
	creds := map[string]string{
		"access_token": "ghp_abc",
		"owner":        "my-org",
		"api_version":  "2022-11-28",
	}

	headers, _ := Inject(scheme, creds, nil, nil)
	want := map[string]string{
		"Authorization":        "Bearer ghp_abc",
		"X-Github-Api-Version": "2022-11-28",
		"X-Owner":              "org=my-org;v=2022-11-28",
		"X-Literal":            "{static}",
	}
	if !maps.Equal(headers, want) {
		t.Errorf("headers mismatch:\n got  %v\n want %v", headers, want)
	}
}

func TestInject_ExtraHeaderValueWithBraces(t *testing.T) {
	scheme := schema.AuthScheme{ExtraHeaders: map[string]string{"X-Sig": "{sig}"}}
	headers, _ := Inject(scheme, map[string]string{"sig": "a{b}c"}, nil, nil)

	if headers["X-Sig"] != "a{b}c" {
		t.Errorf("expected brace-containing value to render verbatim, got %v", headers)
	}
}

func TestInject_RejectsHeaderInjection(t *testing.T) {
	scheme := schema.AuthScheme{
		Type:         schema.AuthBearer,
		TokenField:   "tok",
		ExtraHeaders: map[string]string{"X-Team": "{team}"},
	}
	creds := map[string]string{"tok": "abc\r\nX-Evil: 1", "team": "t\n1"}
	headers, _ := Inject(scheme, creds, nil, nil)

	if len(headers) != 0 {
		t.Errorf("expected values with control characters to be dropped, got %v", headers)
	}
}

func TestInject_CallerHeaders(t *testing.T) {
	scheme := schema.AuthScheme{Type: schema.AuthBearer, TokenField: "tok"}
	caller := map[string]string{
		"authorization": "Bearer caller",
		"Accept":        "application/vnd.github+json",
	}
	headers, _ := Inject(scheme, map[string]string{"tok": "abc"}, caller, nil)

	want := map[string]string{
		"Authorization": "Bearer abc",
		"Accept":        "application/vnd.github+json",
	}
	if !maps.Equal(headers, want) {
		t.Errorf("got %v, want %v", headers, want)
	}
	if caller["authorization"] != "Bearer caller" || len(caller) != 2 {
		t.Errorf("caller headers were modified: %v", caller)
	}
}

func TestInject_CallerKeysKeptWhenSchemeHasNothing(t *testing.T) {
	scheme := schema.AuthScheme{Type: schema.AuthBearer, TokenField: "tok"}
	caller := map[string]string{"Authorization": "Bearer caller"}
	headers, _ := Inject(scheme, map[string]string{}, caller, nil)

	if headers["Authorization"] != "Bearer caller" {
		t.Errorf("expected caller header to survive, got %v", headers)
	}
}

func TestInject_Idempotent(t *testing.T) {
	scheme := schema.AuthScheme{
		Type:         schema.AuthAPIKeyQuery,
		TokenField:   "key",
		ExtraHeaders: map[string]string{"X-Team": "{team}"},
	}
	creds := map[string]string{"key": "k", "team": "blue"}

	h1, p1 := Inject(scheme, creds, map[string]string{}, map[string]string{})
	h2, p2 := Inject(scheme, creds, map[string]string{}, map[string]string{})
	if !maps.Equal(h1, h2) || !maps.Equal(p1, p2) {
		t.Errorf("results differ: %v/%v vs %v/%v", h1, p1, h2, p2)
	}

	h3, p3 := Inject(scheme, creds, h1, p1)
	if !maps.Equal(h1, h3) || !maps.Equal(p1, p3) {
		t.Errorf("re-injecting changed the result: %v/%v vs %v/%v", h1, p1, h3, p3)
	}
}

func TestValidateScheme(t *testing.T) {
	valid := []schema.AuthScheme{
		{},
		{Type: schema.AuthNone},
		{Type: schema.AuthAPIKeyHeader, TokenField: "k", HeaderName: "X-Key"},
		{Type: schema.AuthBearer, ExtraHeaders: map[string]string{"X-V": "{v}"}},
	}
	for _, s := range valid {
		if err := ValidateScheme(s); err != nil {
			t.Errorf("expected %+v to be valid, got %v", s, err)
		}
	}

	invalid := []schema.AuthScheme{
		{Type: "oauth3"},
		{Type: schema.AuthAPIKeyHeader, HeaderName: "X Key"},
		{ExtraHeaders: map[string]string{"Bad Header": "x"}},
		{ExtraHeaders: map[string]string{"X-V": "{unterminated"}},
		{ExtraHeaders: map[string]string{"X-Team": "{a}", "x-team": "{b}"}},
		{Type: schema.AuthBearer, TokenField: "t", ExtraHeaders: map[string]string{"authorization": "{a}"}},
		{Type: schema.AuthAPIKeyHeader, TokenField: "t", ExtraHeaders: map[string]string{"x-api-key": "{a}"}},
	}
	for _, s := range invalid {
		if err := ValidateScheme(s); err == nil {
			t.Errorf("expected %+v to be rejected", s)
		}
	}
}

func TestInject_ExtraHeadersDifferingByCaseAreDeterministic(t *testing.T) {
	scheme := schema.AuthScheme{
		ExtraHeaders: map[string]string{"X-Team": "{a}", "x-team": "{b}"},
	}
	creds := map[string]string{"a": "A", "b": "B"}

	first, _ := Inject(scheme, creds, nil, nil)
	if len(first) != 1 || first["x-team"] != "B" {
		t.Fatalf("expected the last name in sorted order to win, got %v", first)
	}
	for i := 0; i < 100; i++ {
		got, _ := Inject(scheme, creds, nil, nil)
		if !maps.Equal(got, first) {
			t.Fatalf("run %d gave %v, first run gave %v", i, got, first)
		}
	}
}

func TestInject_ExtraHeaderWithEmptyCredentialIsDropped(t *testing.T) {
	scheme := schema.AuthScheme{ExtraHeaders: map[string]string{"X-Team": "{team}"}}
	headers, _ := Inject(scheme, map[string]string{"team": ""}, nil, nil)
	if _, ok := headers["X-Team"]; ok {
		t.Errorf("expected X-Team to be omitted, got %v", headers)
	}
}
