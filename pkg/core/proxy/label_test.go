// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"testing"

	"github.com/leseb/integrations-gw/pkg/core/schema"
)

func TestRestLabel(t *testing.T) {
	endpoints := []schema.Endpoint{
		{Method: "GET", Path: "/users", Description: "List users"},
		{Method: "POST", Path: "/users"},
		{Method: "get", Path: "repos/"},
	}
	tests := []struct {
		method, path, want string
	}{
		{"GET", "/users", "List users"},
		{"GET", "users", "List users"},
		{"GET", "/users?page=2", "List users"},
		{"POST", "/users", "/users"},
		{"GET", "/repos/", "repos/"},
		{"DELETE", "/users", "/users"},
		{"GET", "/unknown", "/unknown"},
		{"GET", "", "/"},
	}
	for _, tt := range tests {
		if got := restLabel(endpoints, tt.method, tt.path); got != tt.want {
			t.Errorf("restLabel(%s %q) = %q, want %q", tt.method, tt.path, got, tt.want)
		}
	}
}

func TestGraphqlLabel(t *testing.T) {
	endpoints := []schema.Endpoint{{Name: "GetUser", Type: "query"}}
	tests := []struct {
		op, query, want string
	}{
		{"GetUser", "{ user { id } }", "graphql:GetUser"},
		{"Other", "query GetUser { user { id } }", "graphql:Other"},
		{"", "  mutation CreateIssue($t: String) { x }", "graphql:CreateIssue"},
		{"", "subscription OnEvent { e }", "graphql:OnEvent"},
		{"", "{ viewer { id } }", "graphql:anonymous"},
		{"", "query { viewer { id } }", "graphql:anonymous"},
	}
	for _, tt := range tests {
		if got := graphqlLabel(endpoints, tt.op, tt.query); got != tt.want {
			t.Errorf("graphqlLabel(%q, %q) = %q, want %q", tt.op, tt.query, got, tt.want)
		}
	}
}

func TestJoinURL(t *testing.T) {
	tests := []struct {
		base, path, want string
	}{
		{"https://api.example.com", "/x", "https://api.example.com/x"},
		{"https://api.example.com/", "x", "https://api.example.com/x"},
		{"https://api.example.com/v1//", "//x/y", "https://api.example.com/v1/x/y"},
		{"https://api.example.com", "", "https://api.example.com/"},
	}
	for _, tt := range tests {
		if got := joinURL(tt.base, tt.path); got != tt.want {
			t.Errorf("joinURL(%q, %q) = %q, want %q", tt.base, tt.path, got, tt.want)
		}
	}
}
