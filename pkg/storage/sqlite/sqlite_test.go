// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/leseb/integrations-gw/pkg/core/state"
	"github.com/leseb/integrations-gw/pkg/secretstore"
	"github.com/leseb/integrations-gw/pkg/secretstore/secretstoretest"
	"github.com/leseb/integrations-gw/pkg/storage/sqlite"
	"github.com/leseb/integrations-gw/pkg/storage/storagetest"
)

func TestSQLiteConformance(t *testing.T) {
	storagetest.RunConformanceTests(t, func(t *testing.T) state.IntegrationStore {
		store, err := sqlite.New(context.Background(), ":memory:")
		if err != nil {
			t.Fatalf("sqlite.New: %v", err)
		}
		return store
	})
}

func TestSQLiteSecretsConformance(t *testing.T) {
	secretstoretest.RunConformanceTests(t, func(t *testing.T) secretstore.SecretStore {
		store, err := sqlite.New(context.Background(), ":memory:")
		if err != nil {
			t.Fatalf("sqlite.New: %v", err)
		}
		t.Cleanup(func() { store.Close() })
		return store.Secrets()
	})
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "gw.db")

	store, err := sqlite.New(ctx, path)
	if err != nil {
		t.Fatalf("sqlite.New: %v", err)
	}
	in := storagetest.NewIntegration("github")
	if err := store.CreateIntegration(ctx, in); err != nil {
		t.Fatalf("CreateIntegration: %v", err)
	}
	key := secretstore.OwnerKey{AgentID: "a1", ServiceName: in.ID}
	if err := store.Secrets().SetSecret(ctx, key, []byte("sealed")); err != nil {
		t.Fatalf("SetSecret: %v", err)
	}
	store.Close()

	reopened, err := sqlite.New(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.GetIntegration(ctx, in.ID)
	if err != nil {
		t.Fatalf("GetIntegration after reopen: %v", err)
	}
	if got.Name != "github" || !got.CreatedAt.Equal(in.CreatedAt) {
		t.Errorf("unexpected integration after reopen: %+v", got)
	}
	data, err := reopened.Secrets().GetSecret(ctx, key)
	if err != nil || string(data) != "sealed" {
		t.Errorf("GetSecret after reopen = %q, %v", data, err)
	}
}

func TestSQLite_ProvidersRegistered(t *testing.T) {
	ctx := context.Background()

	store, err := state.Providers.New(ctx, "sqlite", map[string]string{"dsn": ":memory:"})
	if err != nil {
		t.Fatalf("state provider: %v", err)
	}
	store.Close()

	secrets, err := secretstore.Providers.New(ctx, "sqlite", map[string]string{"dsn": ":memory:"})
	if err != nil {
		t.Fatalf("secretstore provider: %v", err)
	}
	secrets.Close(ctx)
}
