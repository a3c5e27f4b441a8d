// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package integrations

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/leseb/integrations-gw/pkg/core/schema"
	"github.com/leseb/integrations-gw/pkg/core/state"
)

// Definitions is the shape of an integration definitions file:
//
//	integrations:
//	  - name: github
//	    type: github
//	    base_url: https://api.github.com
//	    auth_scheme: {type: bearer, token_field: token}
//	    auth_fields: [{name: token, label: Token, required: true}]
type Definitions struct {
	Integrations []schema.CreateIntegrationRequest `yaml:"integrations"`
}

// LoadDefinitions reads integration definitions from a YAML file. Unknown
// keys are rejected so typos do not silently drop configuration.
func LoadDefinitions(path string) ([]schema.CreateIntegrationRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definitions: %w", err)
	}
	return ParseDefinitions(data)
}

// ParseDefinitions decodes a definitions document.
func ParseDefinitions(data []byte) ([]schema.CreateIntegrationRequest, error) {
	var defs Definitions
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&defs); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse definitions: %w", err)
	}
	return defs.Integrations, nil
}

// Seed creates every definition whose name is not registered yet and
// returns how many were created. Existing integrations are never modified.
func (r *Registry) Seed(ctx context.Context, defs []schema.CreateIntegrationRequest) (int, error) {
	created := 0
	for i := range defs {
		def := &defs[i]
		_, err := r.store.GetIntegrationByName(ctx, def.Name)
		if err == nil {
			r.logger.Debug("integration already registered, skipping", "name", def.Name)
			continue
		}
		if !errors.Is(err, state.ErrNotFound) {
			return created, fmt.Errorf("look up integration %q: %w", def.Name, err)
		}

		if _, err := r.Create(ctx, def); err != nil {
			return created, fmt.Errorf("seed integration %q: %w", def.Name, err)
		}
		created++
	}
	return created, nil
}
