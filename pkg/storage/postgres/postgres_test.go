// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/leseb/integrations-gw/pkg/core/state"
	"github.com/leseb/integrations-gw/pkg/secretstore"
	"github.com/leseb/integrations-gw/pkg/secretstore/secretstoretest"
	"github.com/leseb/integrations-gw/pkg/storage/postgres"
	"github.com/leseb/integrations-gw/pkg/storage/sqlstore"
	"github.com/leseb/integrations-gw/pkg/storage/storagetest"
)

// newTestStore connects to POSTGRES_TEST_DSN and empties the tables.
func newTestStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("Skipping PostgreSQL tests: POSTGRES_TEST_DSN must be set")
	}

	store, err := postgres.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("postgres.New: %v", err)
	}
	for _, table := range []string{"integrations", "agent_integrations", "integration_logs", "secrets"} {
		if _, err := store.DB().Exec("DELETE FROM " + table); err != nil {
			t.Fatalf("truncate %s: %v", table, err)
		}
	}
	return store
}

func TestPostgresConformance(t *testing.T) {
	storagetest.RunConformanceTests(t, func(t *testing.T) state.IntegrationStore {
		return newTestStore(t)
	})
}

func TestPostgresSecretsConformance(t *testing.T) {
	secretstoretest.RunConformanceTests(t, func(t *testing.T) secretstore.SecretStore {
		return sqlstore.NewSecretStore(newTestStore(t))
	})
}

func TestNew_RequiresDSN(t *testing.T) {
	if _, err := postgres.New(context.Background(), ""); err == nil {
		t.Error("expected error for empty dsn")
	}
}
