// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/leseb/integrations-gw/pkg/secretstore"
)

func init() {
	secretstore.Providers.Register("redis", func(ctx context.Context, params map[string]string) (secretstore.SecretStore, error) {
		return New(ctx, Options{
			URL:    params["url"],
			Prefix: params["prefix"],
		})
	})
}

// compile-time check
var _ secretstore.SecretStore = (*Store)(nil)

// Options configures the Redis backend.
type Options struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379")
	URL string

	// Prefix is prepended to every key. Defaults to "integrations-gw:".
	Prefix string

	// ConnectTimeout is the maximum time to wait for connection establishment
	ConnectTimeout time.Duration
}

// Store implements secretstore.SecretStore on Redis. Each agent's sealed
// bundles live in one hash keyed by service name:
//
//	HSET <prefix>secrets:<agent_id> <service_name> <sealed bundle>
type Store struct {
	client *redis.Client
	prefix string
}

// New connects to Redis and verifies the connection with a PING.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.Prefix == "" {
		opts.Prefix = "integrations-gw:"
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	redisOpts.DialTimeout = opts.ConnectTimeout

	client := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{client: client, prefix: opts.Prefix}, nil
}

func (s *Store) hashKey(agentID string) string {
	return s.prefix + "secrets:" + agentID
}

func (s *Store) GetSecret(ctx context.Context, key secretstore.OwnerKey) ([]byte, error) {
	data, err := s.client.HGet(ctx, s.hashKey(key.AgentID), key.ServiceName).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("secret %s/%s: %w", key.AgentID, key.ServiceName, secretstore.ErrSecretNotFound)
		}
		return nil, fmt.Errorf("get secret: %w", err)
	}
	return data, nil
}

func (s *Store) SetSecret(ctx context.Context, key secretstore.OwnerKey, data []byte) error {
	if err := s.client.HSet(ctx, s.hashKey(key.AgentID), key.ServiceName, data).Err(); err != nil {
		return fmt.Errorf("set secret: %w", err)
	}
	return nil
}

func (s *Store) DeleteSecret(ctx context.Context, key secretstore.OwnerKey) error {
	n, err := s.client.HDel(ctx, s.hashKey(key.AgentID), key.ServiceName).Result()
	if err != nil {
		return fmt.Errorf("delete secret: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("secret %s/%s: %w", key.AgentID, key.ServiceName, secretstore.ErrSecretNotFound)
	}
	return nil
}

// Close closes the Redis connection.
func (s *Store) Close(_ context.Context) error {
	return s.client.Close()
}
