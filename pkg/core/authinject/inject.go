// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package authinject turns a declarative auth scheme and a decrypted
// credential bundle into the headers and query parameters of an outbound call.
package authinject

import (
	"encoding/base64"
	"fmt"
	"maps"
	"slices"
	"strings"

	"golang.org/x/net/http/httpguts"

	"github.com/leseb/integrations-gw/pkg/core/schema"
)

const (
	DefaultAPIKeyHeader = "X-Api-Key"
	DefaultAPIKeyParam  = "api_key"
)

// Inject returns copies of headers and params with the scheme's auth
// artifacts added. The inputs are never modified.
//
// A credential that is missing or empty silently omits the artifact that
// needed it. Keys the scheme owns (Authorization, the api key header and the
// extra headers) replace caller-supplied headers of the same name, compared
// case-insensitively; all other caller headers are kept.
func Inject(scheme schema.AuthScheme, creds, headers, params map[string]string) (map[string]string, map[string]string) {
	outHeaders := make(map[string]string, len(headers)+1+len(scheme.ExtraHeaders))
	maps.Copy(outHeaders, headers)
	outParams := make(map[string]string, len(params)+1)
	maps.Copy(outParams, params)

	switch scheme.Type {
	case schema.AuthBearer:
		if token := credential(creds, scheme.TokenField); token != "" {
			setHeader(outHeaders, "Authorization", "Bearer "+token)
		}
	case schema.AuthAPIKeyHeader:
		if token := credential(creds, scheme.TokenField); token != "" {
			setHeader(outHeaders, headerName(scheme), token)
		}
	case schema.AuthAPIKeyQuery:
		if token := credential(creds, scheme.TokenField); token != "" {
			outParams[paramName(scheme)] = token
		}
	case schema.AuthBasic:
		user := credential(creds, scheme.UsernameField)
		pass := credential(creds, scheme.PasswordField)
		if user != "" && pass != "" {
			encoded := base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
			setHeader(outHeaders, "Authorization", "Basic "+encoded)
		}
	}

	// Sorted so that names differing only by case resolve the same way on
	// every call.
	for _, name := range slices.Sorted(maps.Keys(scheme.ExtraHeaders)) {
		tmpl, err := ParseTemplate(scheme.ExtraHeaders[name])
		if err != nil {
			continue
		}
		if value, ok := tmpl.Render(creds); ok {
			setHeader(outHeaders, name, value)
		}
	}

	return outHeaders, outParams
}

// ValidateScheme checks that a scheme is well formed: a known type, valid
// header names and parseable extra header templates. Extra header names
// must be unique ignoring case and must not shadow the header the scheme
// itself sets.
func ValidateScheme(scheme schema.AuthScheme) error {
	switch scheme.Type {
	case "", schema.AuthNone, schema.AuthBearer, schema.AuthAPIKeyHeader, schema.AuthAPIKeyQuery, schema.AuthBasic:
	default:
		return fmt.Errorf("unknown auth scheme type %q", scheme.Type)
	}
	if scheme.HeaderName != "" && !httpguts.ValidHeaderFieldName(scheme.HeaderName) {
		return fmt.Errorf("invalid header_name %q", scheme.HeaderName)
	}
	owned := schemeHeader(scheme)
	seen := make(map[string]string, len(scheme.ExtraHeaders))
	for _, name := range slices.Sorted(maps.Keys(scheme.ExtraHeaders)) {
		if !httpguts.ValidHeaderFieldName(name) {
			return fmt.Errorf("invalid extra header name %q", name)
		}
		key := strings.ToLower(name)
		if prev, dup := seen[key]; dup {
			return fmt.Errorf("extra headers %q and %q differ only by case", prev, name)
		}
		seen[key] = name
		if owned != "" && strings.EqualFold(name, owned) {
			return fmt.Errorf("extra header %q conflicts with the %s scheme's %s header", name, scheme.Type, owned)
		}
		if _, err := ParseTemplate(scheme.ExtraHeaders[name]); err != nil {
			return fmt.Errorf("extra header %q: %w", name, err)
		}
	}
	return nil
}

// schemeHeader names the header the scheme type writes, if any.
func schemeHeader(scheme schema.AuthScheme) string {
	switch scheme.Type {
	case schema.AuthBearer, schema.AuthBasic:
		return "Authorization"
	case schema.AuthAPIKeyHeader:
		return headerName(scheme)
	}
	return ""
}

func credential(creds map[string]string, field string) string {
	if field == "" {
		return ""
	}
	return creds[field]
}

func headerName(scheme schema.AuthScheme) string {
	if scheme.HeaderName != "" {
		return scheme.HeaderName
	}
	return DefaultAPIKeyHeader
}

func paramName(scheme schema.AuthScheme) string {
	if scheme.ParamName != "" {
		return scheme.ParamName
	}
	return DefaultAPIKeyParam
}

// setHeader writes name=value, replacing any existing key that matches name
// case-insensitively. Invalid names or values are dropped so credential
// content can never smuggle extra header lines.
func setHeader(headers map[string]string, name, value string) {
	if !httpguts.ValidHeaderFieldName(name) || !httpguts.ValidHeaderFieldValue(value) {
		return
	}
	for k := range headers {
		if strings.EqualFold(k, name) {
			delete(headers, k)
		}
	}
	headers[name] = value
}
