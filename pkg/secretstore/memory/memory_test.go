// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package memory_test

import (
	"context"
	"testing"

	"github.com/leseb/integrations-gw/pkg/secretstore"
	"github.com/leseb/integrations-gw/pkg/secretstore/memory"
	"github.com/leseb/integrations-gw/pkg/secretstore/secretstoretest"
)

func TestMemoryConformance(t *testing.T) {
	secretstoretest.RunConformanceTests(t, func(t *testing.T) secretstore.SecretStore {
		return memory.New()
	})
}

func TestMemory_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	key := secretstore.OwnerKey{AgentID: "a", ServiceName: "s"}

	data := []byte("abc")
	if err := store.SetSecret(ctx, key, data); err != nil {
		t.Fatal(err)
	}
	data[0] = 'x'

	got, _ := store.GetSecret(ctx, key)
	got[1] = 'y'

	again, _ := store.GetSecret(ctx, key)
	if string(again) != "abc" {
		t.Errorf("store shares memory with callers: %q", again)
	}
}

func TestMemory_RegisteredProvider(t *testing.T) {
	store, err := secretstore.Providers.New(context.Background(), "memory", nil)
	if err != nil {
		t.Fatalf("Providers.New: %v", err)
	}
	if _, ok := store.(*memory.Store); !ok {
		t.Errorf("expected *memory.Store, got %T", store)
	}
}
