// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package filesystem

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/leseb/integrations-gw/pkg/secretstore"
)

func init() {
	secretstore.Providers.Register("filesystem", func(_ context.Context, params map[string]string) (secretstore.SecretStore, error) {
		return New(params["base_dir"])
	})
}

// compile-time check
var _ secretstore.SecretStore = (*Store)(nil)

// Store implements secretstore.SecretStore backed by a local directory.
//
// Layout:
//
//	<baseDir>/<agent>/<service>.sealed
//
// Path components are base64url-encoded so arbitrary agent and service names
// can never escape baseDir.
type Store struct {
	baseDir string
}

// New creates a filesystem-backed Store, creating baseDir if it does not exist.
func New(baseDir string) (*Store, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("filesystem secret store: base_dir is required")
	}
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("create base dir %s: %w", baseDir, err)
	}
	return &Store{baseDir: baseDir}, nil
}

func encode(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func (s *Store) path(key secretstore.OwnerKey) string {
	return filepath.Join(s.baseDir, encode(key.AgentID), encode(key.ServiceName)+".sealed")
}

func (s *Store) GetSecret(_ context.Context, key secretstore.OwnerKey) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("secret %s/%s: %w", key.AgentID, key.ServiceName, secretstore.ErrSecretNotFound)
		}
		return nil, fmt.Errorf("read secret: %w", err)
	}
	return data, nil
}

// SetSecret writes the secret atomically (temp file + rename).
func (s *Store) SetSecret(_ context.Context, key secretstore.OwnerKey, data []byte) error {
	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create agent dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write secret: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename secret: %w", err)
	}
	return nil
}

func (s *Store) DeleteSecret(_ context.Context, key secretstore.OwnerKey) error {
	if err := os.Remove(s.path(key)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("secret %s/%s: %w", key.AgentID, key.ServiceName, secretstore.ErrSecretNotFound)
		}
		return fmt.Errorf("remove secret: %w", err)
	}
	return nil
}

// Close is a no-op for the filesystem store.
func (s *Store) Close(_ context.Context) error {
	return nil
}
