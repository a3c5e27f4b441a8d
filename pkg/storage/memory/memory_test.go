// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/leseb/integrations-gw/pkg/core/schema"
	"github.com/leseb/integrations-gw/pkg/core/state"
	"github.com/leseb/integrations-gw/pkg/storage/memory"
	"github.com/leseb/integrations-gw/pkg/storage/storagetest"
)

func TestMemoryConformance(t *testing.T) {
	storagetest.RunConformanceTests(t, func(t *testing.T) state.IntegrationStore {
		return memory.New()
	})
}

func TestListLogs_SameTimestampNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	in := storagetest.NewIntegration("github")
	if err := store.CreateIntegration(ctx, in); err != nil {
		t.Fatal(err)
	}

	ts := time.Now()
	for _, ep := range []string{"first", "second", "third"} {
		_ = store.AppendLog(ctx, &schema.CallLog{ID: uuid.NewString(), IntegrationID: in.ID, Endpoint: ep, CreatedAt: ts})
	}

	logs, _ := store.ListLogs(ctx, in.ID, 10)
	if len(logs) != 3 || logs[0].Endpoint != "third" || logs[2].Endpoint != "first" {
		t.Errorf("unexpected order: %v %v %v", logs[0].Endpoint, logs[1].Endpoint, logs[2].Endpoint)
	}
}

func TestProviderRegistered(t *testing.T) {
	store, err := state.Providers.New(context.Background(), "memory", nil)
	if err != nil {
		t.Fatalf("Providers.New: %v", err)
	}
	defer store.Close()
	if _, ok := store.(*memory.Store); !ok {
		t.Errorf("expected *memory.Store, got %T", store)
	}
}
