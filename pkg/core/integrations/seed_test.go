// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package integrations

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/leseb/integrations-gw/pkg/core/schema"
)

const testDefinitions = `
integrations:
  - name: github
    type: github
    base_url: https://api.github.com
    auth_scheme:
      type: bearer
      token_field: token
    auth_fields:
      - name: token
        label: Personal access token
        required: true
    endpoints:
      - method: GET
        path: /user
        description: Get the authenticated user
    request_transformers:
      - type: add
        target: per_page
        value: 50
  - name: linear
    type: linear
    api_type: graphql
    base_url: https://api.linear.app/graphql
    auth_scheme:
      type: api_key_header
      token_field: api_key
      header_name: Authorization
    auth_fields:
      - name: api_key
        label: API key
        required: true
    endpoints:
      - name: Issues
        type: query
        description: List issues
`

func TestParseDefinitions(t *testing.T) {
	defs, err := ParseDefinitions([]byte(testDefinitions))
	if err != nil {
		t.Fatalf("ParseDefinitions: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(defs))
	}

	gh := defs[0]
	if gh.AuthScheme.Type != schema.AuthBearer || gh.AuthScheme.TokenField != "token" {
		t.Errorf("unexpected auth scheme: %+v", gh.AuthScheme)
	}
	if len(gh.RequestTransformers) != 1 || gh.RequestTransformers[0].Value == nil {
		t.Fatalf("unexpected transformers: %+v", gh.RequestTransformers)
	}
	if got := gh.RequestTransformers[0].Value.Text(); got != "50" {
		t.Errorf("add value = %s, want 50", got)
	}
	if defs[1].APIType != schema.APITypeGraphQL || defs[1].Endpoints[0].Name != "Issues" {
		t.Errorf("unexpected graphql definition: %+v", defs[1])
	}
}

func TestParseDefinitions_RejectsUnknownKeys(t *testing.T) {
	_, err := ParseDefinitions([]byte("integrations:\n  - name: x\n    base_uri: https://x\n"))
	if err == nil {
		t.Fatal("expected an error for an unknown key")
	}
}

func TestParseDefinitions_Empty(t *testing.T) {
	defs, err := ParseDefinitions(nil)
	if err != nil {
		t.Fatalf("ParseDefinitions: %v", err)
	}
	if len(defs) != 0 {
		t.Errorf("expected no definitions, got %d", len(defs))
	}
}

func TestSeed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "integrations.yaml")
	if err := os.WriteFile(path, []byte(testDefinitions), 0o600); err != nil {
		t.Fatalf("write definitions: %v", err)
	}
	defs, err := LoadDefinitions(path)
	if err != nil {
		t.Fatalf("LoadDefinitions: %v", err)
	}

	created, err := env.registry.Seed(ctx, defs)
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if created != 2 {
		t.Errorf("created = %d, want 2", created)
	}

	// Seeding again leaves existing integrations alone.
	gh, err := env.store.GetIntegrationByName(ctx, "github")
	if err != nil {
		t.Fatalf("GetIntegrationByName: %v", err)
	}
	defs[0].BaseURL = "https://github.example.com"
	created, err = env.registry.Seed(ctx, defs)
	if err != nil {
		t.Fatalf("second Seed: %v", err)
	}
	if created != 0 {
		t.Errorf("second seed created %d integrations", created)
	}
	again, _ := env.registry.Get(ctx, gh.ID)
	if again.BaseURL != "https://api.github.com" {
		t.Errorf("existing integration was modified: %s", again.BaseURL)
	}
}

func TestSeed_InvalidDefinition(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.registry.Seed(context.Background(), []schema.CreateIntegrationRequest{{Name: "broken", Type: "x"}})
	if err == nil {
		t.Fatal("expected an error for a definition without base_url")
	}
}

func TestLoadDefinitions_MissingFile(t *testing.T) {
	if _, err := LoadDefinitions(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
