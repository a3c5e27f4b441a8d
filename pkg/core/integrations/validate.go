// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package integrations

import (
	"net/url"
	"strings"

	"github.com/leseb/integrations-gw/pkg/core/apierror"
	"github.com/leseb/integrations-gw/pkg/core/authinject"
	"github.com/leseb/integrations-gw/pkg/core/schema"
)

// applyDefaults fills the optional fields of a definition.
func applyDefaults(in *schema.Integration) {
	in.Name = strings.TrimSpace(in.Name)
	in.BaseURL = strings.TrimSpace(in.BaseURL)
	if in.APIType == "" {
		in.APIType = schema.APITypeREST
	}
	if in.Status == "" {
		in.Status = schema.StatusActive
	}
	if in.AuthScheme.Type == "" {
		in.AuthScheme.Type = schema.AuthNone
	}
	if in.AuthFields == nil {
		in.AuthFields = []schema.AuthField{}
	}
	if in.Endpoints == nil {
		in.Endpoints = []schema.Endpoint{}
	}
}

// validate checks an integration definition after defaults were applied.
func validate(in *schema.Integration) error {
	if in.Name == "" {
		return apierror.Validation("name is required")
	}
	if strings.TrimSpace(in.Type) == "" {
		return apierror.Validation("type is required")
	}
	if err := validateBaseURL(in.BaseURL); err != nil {
		return err
	}

	switch in.APIType {
	case schema.APITypeREST, schema.APITypeGraphQL:
	default:
		return apierror.Validation("api_type must be %q or %q, got %q", schema.APITypeREST, schema.APITypeGraphQL, in.APIType)
	}

	switch in.Status {
	case schema.StatusActive, schema.StatusInactive, schema.StatusError:
	default:
		return apierror.Validation("invalid status %q", in.Status)
	}

	if err := authinject.ValidateScheme(in.AuthScheme); err != nil {
		return apierror.Validation("auth_scheme: %v", err)
	}

	seen := make(map[string]bool, len(in.AuthFields))
	for i, f := range in.AuthFields {
		if strings.TrimSpace(f.Name) == "" {
			return apierror.Validation("auth_fields[%d]: name is required", i)
		}
		if seen[f.Name] {
			return apierror.Validation("auth_fields[%d]: duplicate field %q", i, f.Name)
		}
		seen[f.Name] = true
	}

	// Transform rules are not checked here: a bad rule is skipped with a
	// warning when it runs.
	return nil
}

func validateBaseURL(raw string) error {
	if raw == "" {
		return apierror.Validation("base_url is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apierror.Validation("base_url must be an absolute http or https URL")
	}
	return nil
}
