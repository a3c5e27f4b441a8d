// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package secretstoretest provides a shared conformance test suite for
// secretstore.SecretStore implementations. Each backend should call
// RunConformanceTests from its own _test.go file.
package secretstoretest

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/leseb/integrations-gw/pkg/secretstore"
)

// RunConformanceTests exercises a SecretStore implementation against the
// shared contract. The newStore function is called once per sub-test to
// provide an isolated store instance.
func RunConformanceTests(t *testing.T, newStore func(t *testing.T) secretstore.SecretStore) {
	t.Helper()

	t.Run("SetAndGet", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())
		ctx := context.Background()

		key := secretstore.OwnerKey{AgentID: "agent-1", ServiceName: "svc-1"}
		data := []byte(`{"token":"sealed"}`)
		if err := store.SetSecret(ctx, key, data); err != nil {
			t.Fatalf("SetSecret: %v", err)
		}

		got, err := store.GetSecret(ctx, key)
		if err != nil {
			t.Fatalf("GetSecret: %v", err)
		}
		if !bytes.Equal(got, data) {
			t.Errorf("GetSecret = %q, want %q", got, data)
		}
	})

	t.Run("GetNotFound", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())

		_, err := store.GetSecret(context.Background(), secretstore.OwnerKey{AgentID: "nobody", ServiceName: "nothing"})
		if !errors.Is(err, secretstore.ErrSecretNotFound) {
			t.Errorf("expected ErrSecretNotFound, got %v", err)
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())
		ctx := context.Background()

		key := secretstore.OwnerKey{AgentID: "agent-1", ServiceName: "svc-1"}
		if err := store.SetSecret(ctx, key, []byte("first")); err != nil {
			t.Fatalf("SetSecret: %v", err)
		}
		if err := store.SetSecret(ctx, key, []byte("second")); err != nil {
			t.Fatalf("SetSecret (overwrite): %v", err)
		}

		got, err := store.GetSecret(ctx, key)
		if err != nil {
			t.Fatalf("GetSecret: %v", err)
		}
		if string(got) != "second" {
			t.Errorf("expected overwritten value, got %q", got)
		}
	})

	t.Run("KeysAreIsolated", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())
		ctx := context.Background()

		keys := []secretstore.OwnerKey{
			{AgentID: "a1", ServiceName: "s1"},
			{AgentID: "a1", ServiceName: "s2"},
			{AgentID: "a2", ServiceName: "s1"},
		}
		for _, k := range keys {
			if err := store.SetSecret(ctx, k, []byte(k.AgentID+"/"+k.ServiceName)); err != nil {
				t.Fatalf("SetSecret(%v): %v", k, err)
			}
		}
		for _, k := range keys {
			got, err := store.GetSecret(ctx, k)
			if err != nil {
				t.Fatalf("GetSecret(%v): %v", k, err)
			}
			if want := k.AgentID + "/" + k.ServiceName; string(got) != want {
				t.Errorf("GetSecret(%v) = %q, want %q", k, got, want)
			}
		}
	})

	t.Run("Delete", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())
		ctx := context.Background()

		key := secretstore.OwnerKey{AgentID: "agent-1", ServiceName: "svc-1"}
		if err := store.SetSecret(ctx, key, []byte("x")); err != nil {
			t.Fatalf("SetSecret: %v", err)
		}
		if err := store.DeleteSecret(ctx, key); err != nil {
			t.Fatalf("DeleteSecret: %v", err)
		}
		if _, err := store.GetSecret(ctx, key); !errors.Is(err, secretstore.ErrSecretNotFound) {
			t.Errorf("expected ErrSecretNotFound after delete, got %v", err)
		}
		if err := store.DeleteSecret(ctx, key); !errors.Is(err, secretstore.ErrSecretNotFound) {
			t.Errorf("expected ErrSecretNotFound deleting twice, got %v", err)
		}
	})

	t.Run("ConcurrentAccess", func(t *testing.T) {
		store := newStore(t)
		defer store.Close(context.Background())
		ctx := context.Background()

		key := secretstore.OwnerKey{AgentID: "agent-1", ServiceName: "svc-1"}
		if err := store.SetSecret(ctx, key, []byte("v")); err != nil {
			t.Fatalf("SetSecret: %v", err)
		}

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := store.GetSecret(ctx, key); err != nil {
					t.Errorf("GetSecret: %v", err)
				}
			}()
		}
		wg.Wait()
	})
}
