// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package vault stores per-agent credential bundles sealed at rest.
//
// Every value in a bundle is sealed independently and the sealed bundle is
// persisted as a JSON object {field: ciphertext} in a secretstore.SecretStore.
// Reads fail closed: if any field cannot be opened the whole bundle is
// reported absent, so callers never see a mix of plaintext and ciphertext.
package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/leseb/integrations-gw/pkg/secretstore"
)

// Vault seals and unseals credential bundles.
type Vault struct {
	store  secretstore.SecretStore
	sealer Sealer
	logger *slog.Logger
}

// New creates a Vault. A nil logger uses slog.Default().
func New(store secretstore.SecretStore, sealer Sealer, logger *slog.Logger) *Vault {
	if logger == nil {
		logger = slog.Default()
	}
	return &Vault{store: store, sealer: sealer, logger: logger}
}

// Set seals every value of bundle and overwrites whatever was stored for
// (agentID, serviceName).
func (v *Vault) Set(ctx context.Context, agentID, serviceName string, bundle map[string]string) error {
	sealed := make(map[string]string, len(bundle))
	for field, value := range bundle {
		ct, err := v.sealer.Seal([]byte(value))
		if err != nil {
			return fmt.Errorf("seal field %q: %w", field, err)
		}
		sealed[field] = ct
	}

	data, err := json.Marshal(sealed)
	if err != nil {
		return fmt.Errorf("marshal sealed bundle: %w", err)
	}

	key := secretstore.OwnerKey{AgentID: agentID, ServiceName: serviceName}
	if err := v.store.SetSecret(ctx, key, data); err != nil {
		return fmt.Errorf("store sealed bundle: %w", err)
	}
	return nil
}

// Get returns the unsealed bundle for (agentID, serviceName). ok is false when
// nothing is stored or when any field fails to open. err is reserved for
// store failures.
func (v *Vault) Get(ctx context.Context, agentID, serviceName string) (map[string]string, bool, error) {
	key := secretstore.OwnerKey{AgentID: agentID, ServiceName: serviceName}
	data, err := v.store.GetSecret(ctx, key)
	if err != nil {
		if errors.Is(err, secretstore.ErrSecretNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("load sealed bundle: %w", err)
	}

	var sealed map[string]string
	if err := json.Unmarshal(data, &sealed); err != nil {
		v.logger.Warn("Discarding undecodable credential bundle",
			"agent_id", agentID, "service", serviceName)
		return nil, false, nil
	}

	bundle := make(map[string]string, len(sealed))
	for field, ct := range sealed {
		pt, err := v.sealer.Open(ct)
		if err != nil {
			v.logger.Warn("Failed to open credential bundle",
				"agent_id", agentID, "service", serviceName)
			return nil, false, nil
		}
		bundle[field] = string(pt)
	}
	return bundle, true, nil
}

// Delete removes the bundle for (agentID, serviceName). Deleting a missing
// bundle is not an error.
func (v *Vault) Delete(ctx context.Context, agentID, serviceName string) error {
	key := secretstore.OwnerKey{AgentID: agentID, ServiceName: serviceName}
	if err := v.store.DeleteSecret(ctx, key); err != nil && !errors.Is(err, secretstore.ErrSecretNotFound) {
		return fmt.Errorf("delete sealed bundle: %w", err)
	}
	return nil
}
