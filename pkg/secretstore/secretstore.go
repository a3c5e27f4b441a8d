// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package secretstore defines where sealed credential bundles are persisted.
// Stores deal in opaque bytes; sealing and unsealing is the vault's job.
package secretstore

import (
	"context"
	"errors"

	"github.com/leseb/integrations-gw/pkg/provider"
)

// ErrSecretNotFound is returned when no secret exists for an owner key.
var ErrSecretNotFound = errors.New("secret not found")

// Providers is the registry of secret store backend implementations.
// Import implementation packages with blank imports to register them:
//
//	import _ "github.com/leseb/integrations-gw/pkg/secretstore/memory"
//	import _ "github.com/leseb/integrations-gw/pkg/secretstore/filesystem"
//	import _ "github.com/leseb/integrations-gw/pkg/secretstore/s3"
//	import _ "github.com/leseb/integrations-gw/pkg/secretstore/redis"
var Providers = provider.NewRegistry[SecretStore]("secret_store")

// OwnerKey identifies a secret. ServiceName is an integration ID for
// integration credentials, or a fixed name for other subsystems.
type OwnerKey struct {
	AgentID     string
	ServiceName string
}

// SecretStore defines the interface for pluggable credential storage backends.
// SetSecret overwrites any existing value.
type SecretStore interface {
	GetSecret(ctx context.Context, key OwnerKey) ([]byte, error)
	SetSecret(ctx context.Context, key OwnerKey, data []byte) error
	DeleteSecret(ctx context.Context, key OwnerKey) error
	Close(ctx context.Context) error
}
