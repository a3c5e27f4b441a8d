// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/leseb/integrations-gw/pkg/secretstore"
)

// compile-time check
var _ secretstore.SecretStore = (*SecretStore)(nil)

// SecretStore is a secretstore.SecretStore on the secrets table of a Store.
type SecretStore struct {
	store *Store
	owned bool
}

// Secrets returns a secret store sharing this Store's connection. Closing it
// leaves the connection open.
func (s *Store) Secrets() *SecretStore {
	return &SecretStore{store: s}
}

// NewSecretStore wraps a Store that the returned SecretStore owns and closes.
func NewSecretStore(s *Store) *SecretStore {
	return &SecretStore{store: s, owned: true}
}

func (ss *SecretStore) GetSecret(ctx context.Context, key secretstore.OwnerKey) ([]byte, error) {
	s := ss.store
	var data []byte
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT data FROM secrets WHERE agent_id = ? AND service_name = ?`),
		key.AgentID, key.ServiceName,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("secret %s/%s: %w", key.AgentID, key.ServiceName, secretstore.ErrSecretNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get secret: %w", err)
	}
	return data, nil
}

func (ss *SecretStore) SetSecret(ctx context.Context, key secretstore.OwnerKey, data []byte) error {
	s := ss.store
	_, err := s.exec(ctx, s.db,
		`INSERT INTO secrets (agent_id, service_name, data, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (agent_id, service_name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		key.AgentID, key.ServiceName, data, toNanos(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("set secret: %w", err)
	}
	return nil
}

func (ss *SecretStore) DeleteSecret(ctx context.Context, key secretstore.OwnerKey) error {
	s := ss.store
	res, err := s.exec(ctx, s.db,
		`DELETE FROM secrets WHERE agent_id = ? AND service_name = ?`, key.AgentID, key.ServiceName)
	if err != nil {
		return fmt.Errorf("delete secret: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("secret %s/%s: %w", key.AgentID, key.ServiceName, secretstore.ErrSecretNotFound)
	}
	return nil
}

func (ss *SecretStore) Close(_ context.Context) error {
	if ss.owned {
		return ss.store.Close()
	}
	return nil
}
