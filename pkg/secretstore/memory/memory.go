// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/leseb/integrations-gw/pkg/secretstore"
)

func init() {
	secretstore.Providers.Register("memory", func(_ context.Context, _ map[string]string) (secretstore.SecretStore, error) {
		return New(), nil
	})
}

// compile-time check
var _ secretstore.SecretStore = (*Store)(nil)

// Store implements secretstore.SecretStore in memory.
type Store struct {
	mu      sync.RWMutex
	secrets map[secretstore.OwnerKey][]byte
}

// New creates a new in-memory secret store.
func New() *Store {
	return &Store{
		secrets: make(map[secretstore.OwnerKey][]byte),
	}
}

func (s *Store) GetSecret(_ context.Context, key secretstore.OwnerKey) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.secrets[key]
	if !ok {
		return nil, fmt.Errorf("secret %s/%s: %w", key.AgentID, key.ServiceName, secretstore.ErrSecretNotFound)
	}
	return append([]byte(nil), data...), nil
}

func (s *Store) SetSecret(_ context.Context, key secretstore.OwnerKey, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.secrets[key] = append([]byte(nil), data...)
	return nil
}

func (s *Store) DeleteSecret(_ context.Context, key secretstore.OwnerKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.secrets[key]; !ok {
		return fmt.Errorf("secret %s/%s: %w", key.AgentID, key.ServiceName, secretstore.ErrSecretNotFound)
	}
	delete(s.secrets, key)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close(_ context.Context) error {
	return nil
}
