// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// CreateIntegrationRequest represents a request to register an integration.
// It is also the shape of each entry in an integration definitions file.
type CreateIntegrationRequest struct {
	Name                 string          `json:"name" yaml:"name"` // Required, unique
	Type                 string          `json:"type" yaml:"type"` // Required
	APIType              string          `json:"api_type,omitempty" yaml:"api_type,omitempty"`
	Status               string          `json:"status,omitempty" yaml:"status,omitempty"`
	BaseURL              string          `json:"base_url" yaml:"base_url"` // Required
	AuthScheme           AuthScheme      `json:"auth_scheme" yaml:"auth_scheme"`
	AuthFields           []AuthField     `json:"auth_fields" yaml:"auth_fields"`
	Endpoints            []Endpoint      `json:"endpoints" yaml:"endpoints"`
	RequestTransformers  []TransformRule `json:"request_transformers,omitempty" yaml:"request_transformers,omitempty"`
	ResponseTransformers []TransformRule `json:"response_transformers,omitempty" yaml:"response_transformers,omitempty"`
	UsageInstructions    string          `json:"usage_instructions" yaml:"usage_instructions"`
}

// UpdateIntegrationRequest is a partial update; nil fields are left unchanged.
type UpdateIntegrationRequest struct {
	Name                 *string          `json:"name,omitempty"`
	Type                 *string          `json:"type,omitempty"`
	APIType              *string          `json:"api_type,omitempty"`
	Status               *string          `json:"status,omitempty"`
	BaseURL              *string          `json:"base_url,omitempty"`
	AuthScheme           *AuthScheme      `json:"auth_scheme,omitempty"`
	AuthFields           *[]AuthField     `json:"auth_fields,omitempty"`
	Endpoints            *[]Endpoint      `json:"endpoints,omitempty"`
	RequestTransformers  *[]TransformRule `json:"request_transformers,omitempty"`
	ResponseTransformers *[]TransformRule `json:"response_transformers,omitempty"`
	UsageInstructions    *string          `json:"usage_instructions,omitempty"`
}

// ListIntegrationsResponse represents a list of integrations
type ListIntegrationsResponse struct {
	Object string        `json:"object"` // Always "list"
	Data   []Integration `json:"data"`
}

// DeleteIntegrationResponse represents the response from deleting an integration
type DeleteIntegrationResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`  // Always "integration.deleted"
	Deleted bool   `json:"deleted"` // Always true
}

// AssignRequest assigns an integration to an agent with its credential bundle.
type AssignRequest struct {
	AgentID     string            `json:"agent_id"`
	Credentials map[string]string `json:"credentials"`
}

// AgentIntegration is what an agent sees about an integration assigned to it.
type AgentIntegration struct {
	IntegrationID     string      `json:"integration_id"`
	Name              string      `json:"name"`
	Type              string      `json:"type"`
	APIType           string      `json:"api_type"`
	BaseURL           string      `json:"base_url"`
	AuthScheme        AuthScheme  `json:"auth_scheme"`
	AuthFields        []AuthField `json:"auth_fields"`
	Endpoints         []Endpoint  `json:"endpoints"`
	UsageInstructions string      `json:"usage_instructions"`
}

// AgentIntegrationsResponse lists the integrations assigned to an agent.
type AgentIntegrationsResponse struct {
	AgentID      string             `json:"agent_id"`
	Integrations []AgentIntegration `json:"integrations"`
}

// CredentialsResponse carries a decrypted credential bundle.
type CredentialsResponse struct {
	IntegrationID string            `json:"integration_id"`
	AgentID       string            `json:"agent_id"`
	Credentials   map[string]string `json:"credentials"`
}

// ProxyRequest is a REST call an agent wants made on its behalf.
type ProxyRequest struct {
	AgentID string          `json:"agent_id"`
	Method  string          `json:"method"`
	Path    string          `json:"path"`
	Body    json.RawMessage `json:"body,omitempty"`
	Headers StringMap       `json:"headers,omitempty"`
	Params  StringMap       `json:"params,omitempty"`
}

// GraphQLProxyRequest is a GraphQL operation an agent wants made on its behalf.
type GraphQLProxyRequest struct {
	AgentID       string          `json:"agent_id"`
	Query         string          `json:"query"`
	Variables     json.RawMessage `json:"variables,omitempty"`
	OperationName string          `json:"operation_name,omitempty"`
	Headers       StringMap       `json:"headers,omitempty"`
}

// ListLogsResponse lists recent upstream calls for an integration.
type ListLogsResponse struct {
	Object string    `json:"object"` // Always "list"
	Data   []CallLog `json:"data"`
}

// StringMap is a map of strings that also accepts numbers and booleans as
// values, so agents can send {"per_page": 10} as a query parameter.
type StringMap map[string]string

// UnmarshalJSON implements json.Unmarshaler.
func (m *StringMap) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*m = nil
		return nil
	}
	out := make(StringMap, len(raw))
	for k, v := range raw {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			out[k] = s
			continue
		}
		var n json.Number
		if err := json.Unmarshal(v, &n); err == nil {
			out[k] = n.String()
			continue
		}
		var b bool
		if err := json.Unmarshal(v, &b); err == nil {
			out[k] = strconv.FormatBool(b)
			continue
		}
		return fmt.Errorf("value for %q must be a string, number or boolean", k)
	}
	*m = out
	return nil
}
