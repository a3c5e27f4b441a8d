// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"maps"
	"slices"
	"time"

	"github.com/leseb/integrations-gw/pkg/core/jsonval"
)

// API types
const (
	APITypeREST    = "rest"
	APITypeGraphQL = "graphql"
)

// Integration statuses
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusError    = "error"
)

// Auth scheme types
const (
	AuthNone         = "none"
	AuthBearer       = "bearer"
	AuthAPIKeyHeader = "api_key_header"
	AuthAPIKeyQuery  = "api_key_query"
	AuthBasic        = "basic"
)

// Transform rule types
const (
	RuleMap     = "map"
	RuleAdd     = "add"
	RuleExtract = "extract"
	RuleRename  = "rename"
	RuleDelete  = "delete"
)

// Transform functions applied by map and extract rules
const (
	TransformStringify = "stringify"
	TransformParseJSON = "parse_json"
)

// Integration is a registered third-party API definition shared by all agents.
type Integration struct {
	ID                   string          `json:"id" yaml:"id,omitempty"`
	Name                 string          `json:"name" yaml:"name"`
	Type                 string          `json:"type" yaml:"type"`         // free-form label, e.g. "slack"
	APIType              string          `json:"api_type" yaml:"api_type"` // "rest" or "graphql"
	Status               string          `json:"status" yaml:"status"`
	BaseURL              string          `json:"base_url" yaml:"base_url"`
	AuthScheme           AuthScheme      `json:"auth_scheme" yaml:"auth_scheme"`
	AuthFields           []AuthField     `json:"auth_fields" yaml:"auth_fields"`
	Endpoints            []Endpoint      `json:"endpoints" yaml:"endpoints"`
	RequestTransformers  []TransformRule `json:"request_transformers" yaml:"request_transformers"`
	ResponseTransformers []TransformRule `json:"response_transformers" yaml:"response_transformers"`
	UsageInstructions    string          `json:"usage_instructions" yaml:"usage_instructions"`
	CreatedAt            time.Time       `json:"created_at" yaml:"-"`
	UpdatedAt            time.Time       `json:"updated_at" yaml:"-"`
}

// RequiredFields returns the names of the auth fields marked required.
func (i *Integration) RequiredFields() []string {
	var names []string
	for _, f := range i.AuthFields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// Clone returns a deep copy so stores can hand out records without sharing
// slices or maps with their callers.
func (i *Integration) Clone() *Integration {
	if i == nil {
		return nil
	}
	c := *i
	c.AuthScheme.ExtraHeaders = maps.Clone(i.AuthScheme.ExtraHeaders)
	c.AuthFields = slices.Clone(i.AuthFields)
	c.Endpoints = slices.Clone(i.Endpoints)
	c.RequestTransformers = cloneRules(i.RequestTransformers)
	c.ResponseTransformers = cloneRules(i.ResponseTransformers)
	return &c
}

func cloneRules(rules []TransformRule) []TransformRule {
	if rules == nil {
		return nil
	}
	out := make([]TransformRule, len(rules))
	for idx, r := range rules {
		if r.Value != nil {
			v := r.Value.Clone()
			r.Value = &v
		}
		out[idx] = r
	}
	return out
}

// AuthScheme describes how a credential bundle becomes HTTP auth artifacts.
// The *_field members name keys in the bundle; they never hold secrets.
type AuthScheme struct {
	Type          string            `json:"type,omitempty" yaml:"type,omitempty"`
	TokenField    string            `json:"token_field,omitempty" yaml:"token_field,omitempty"`
	HeaderName    string            `json:"header_name,omitempty" yaml:"header_name,omitempty"`
	ParamName     string            `json:"param_name,omitempty" yaml:"param_name,omitempty"`
	UsernameField string            `json:"username_field,omitempty" yaml:"username_field,omitempty"`
	PasswordField string            `json:"password_field,omitempty" yaml:"password_field,omitempty"`
	ExtraHeaders  map[string]string `json:"extra_headers,omitempty" yaml:"extra_headers,omitempty"` // header -> "{field}" template
}

// AuthField describes one entry of the credential bundle.
type AuthField struct {
	Name     string `json:"name" yaml:"name"`
	Label    string `json:"label" yaml:"label"`
	Required bool   `json:"required" yaml:"required"`
}

// Endpoint documents one operation. REST entries use Method and Path;
// GraphQL entries use Name and Type ("query" or "mutation").
type Endpoint struct {
	Method      string `json:"method,omitempty" yaml:"method,omitempty"`
	Path        string `json:"path,omitempty" yaml:"path,omitempty"`
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	Type        string `json:"type,omitempty" yaml:"type,omitempty"`
	Description string `json:"description" yaml:"description"`
}

// TransformRule is one declarative payload reshaping instruction.
type TransformRule struct {
	Type      string         `json:"type,omitempty" yaml:"type,omitempty"` // defaults to "map"
	Source    string         `json:"source,omitempty" yaml:"source,omitempty"`
	Target    string         `json:"target,omitempty" yaml:"target,omitempty"`
	Value     *jsonval.Value `json:"value,omitempty" yaml:"value,omitempty"`
	Transform string         `json:"transform,omitempty" yaml:"transform,omitempty"`
	OldName   string         `json:"old_name,omitempty" yaml:"old_name,omitempty"`
	NewName   string         `json:"new_name,omitempty" yaml:"new_name,omitempty"`
}

// Assignment records that an agent has credentials on file for an integration.
type Assignment struct {
	ID            string    `json:"id"`
	AgentID       string    `json:"agent_id"`
	IntegrationID string    `json:"integration_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// CallLog is the append-only record written once per upstream call.
type CallLog struct {
	ID            string    `json:"id"`
	IntegrationID string    `json:"integration_id"`
	AgentID       string    `json:"agent_id"`
	Method        string    `json:"method"`
	Endpoint      string    `json:"endpoint"`
	StatusCode    int       `json:"status_code"`
	DurationMS    int64     `json:"duration_ms"`
	CreatedAt     time.Time `json:"created_at"`
}
