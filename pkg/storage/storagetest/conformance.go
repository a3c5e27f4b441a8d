// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package storagetest provides a shared conformance test suite for
// state.IntegrationStore implementations. Each backend should call
// RunConformanceTests from its own _test.go file.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/leseb/integrations-gw/pkg/core/jsonval"
	"github.com/leseb/integrations-gw/pkg/core/schema"
	"github.com/leseb/integrations-gw/pkg/core/state"
)

// NewIntegration returns a fully populated integration for tests.
func NewIntegration(name string) *schema.Integration {
	value := jsonval.StringValue("PUBLISHED")
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &schema.Integration{
		ID:      uuid.NewString(),
		Name:    name,
		Type:    "github",
		APIType: schema.APITypeREST,
		Status:  schema.StatusActive,
		BaseURL: "https://api.example.com",
		AuthScheme: schema.AuthScheme{
			Type:         schema.AuthBearer,
			TokenField:   "access_token",
			ExtraHeaders: map[string]string{"X-Api-Version": "{api_version}"},
		},
		AuthFields: []schema.AuthField{
			{Name: "access_token", Label: "Token", Required: true},
			{Name: "api_version", Label: "Version"},
		},
		Endpoints: []schema.Endpoint{
			{Method: "GET", Path: "/repos", Description: "List repos"},
		},
		RequestTransformers: []schema.TransformRule{
			{Type: schema.RuleAdd, Target: "state", Value: &value},
		},
		ResponseTransformers: []schema.TransformRule{
			{Type: schema.RuleRename, OldName: "a", NewName: "b"},
		},
		UsageInstructions: "Use it.",
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// RunConformanceTests exercises an IntegrationStore implementation against
// the shared contract. The newStore function is called once per sub-test to
// provide an isolated store instance.
func RunConformanceTests(t *testing.T, newStore func(t *testing.T) state.IntegrationStore) {
	t.Helper()

	t.Run("CreateAndGet", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()
		ctx := context.Background()

		in := NewIntegration("github")
		if err := store.CreateIntegration(ctx, in); err != nil {
			t.Fatalf("CreateIntegration: %v", err)
		}

		got, err := store.GetIntegration(ctx, in.ID)
		if err != nil {
			t.Fatalf("GetIntegration: %v", err)
		}
		assertIntegration(t, got, in)

		byName, err := store.GetIntegrationByName(ctx, "github")
		if err != nil {
			t.Fatalf("GetIntegrationByName: %v", err)
		}
		if byName.ID != in.ID {
			t.Errorf("GetIntegrationByName returned %s, want %s", byName.ID, in.ID)
		}
	})

	t.Run("GetNotFound", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()
		ctx := context.Background()

		if _, err := store.GetIntegration(ctx, uuid.NewString()); !errors.Is(err, state.ErrNotFound) {
			t.Errorf("GetIntegration: expected ErrNotFound, got %v", err)
		}
		if _, err := store.GetIntegrationByName(ctx, "missing"); !errors.Is(err, state.ErrNotFound) {
			t.Errorf("GetIntegrationByName: expected ErrNotFound, got %v", err)
		}
	})

	t.Run("DuplicateName", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()
		ctx := context.Background()

		if err := store.CreateIntegration(ctx, NewIntegration("slack")); err != nil {
			t.Fatalf("CreateIntegration: %v", err)
		}
		if err := store.CreateIntegration(ctx, NewIntegration("slack")); !errors.Is(err, state.ErrConflict) {
			t.Errorf("expected ErrConflict, got %v", err)
		}
	})

	t.Run("ListOrderedByCreation", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()
		ctx := context.Background()

		base := time.Now().UTC().Truncate(time.Millisecond)
		for i, name := range []string{"c", "a", "b"} {
			in := NewIntegration(name)
			in.CreatedAt = base.Add(time.Duration(i) * time.Second)
			if err := store.CreateIntegration(ctx, in); err != nil {
				t.Fatalf("CreateIntegration(%s): %v", name, err)
			}
		}

		list, err := store.ListIntegrations(ctx)
		if err != nil {
			t.Fatalf("ListIntegrations: %v", err)
		}
		if len(list) != 3 || list[0].Name != "c" || list[1].Name != "a" || list[2].Name != "b" {
			t.Errorf("unexpected order: %v", names(list))
		}
	})

	t.Run("Update", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()
		ctx := context.Background()

		in := NewIntegration("notion")
		other := NewIntegration("linear")
		for _, x := range []*schema.Integration{in, other} {
			if err := store.CreateIntegration(ctx, x); err != nil {
				t.Fatalf("CreateIntegration: %v", err)
			}
		}

		in.Status = schema.StatusInactive
		in.Endpoints = append(in.Endpoints, schema.Endpoint{Method: "POST", Path: "/pages", Description: "Create page"})
		in.UpdatedAt = in.UpdatedAt.Add(time.Minute)
		if err := store.UpdateIntegration(ctx, in); err != nil {
			t.Fatalf("UpdateIntegration: %v", err)
		}
		got, _ := store.GetIntegration(ctx, in.ID)
		assertIntegration(t, got, in)

		in.Name = "linear"
		if err := store.UpdateIntegration(ctx, in); !errors.Is(err, state.ErrConflict) {
			t.Errorf("renaming onto an existing name: expected ErrConflict, got %v", err)
		}

		missing := NewIntegration("ghost")
		if err := store.UpdateIntegration(ctx, missing); !errors.Is(err, state.ErrNotFound) {
			t.Errorf("updating a missing integration: expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ReturnedRecordsAreCopies", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()
		ctx := context.Background()

		in := NewIntegration("copy")
		if err := store.CreateIntegration(ctx, in); err != nil {
			t.Fatalf("CreateIntegration: %v", err)
		}
		in.Endpoints[0].Path = "/mutated"

		got, _ := store.GetIntegration(ctx, in.ID)
		if got.Endpoints[0].Path != "/repos" {
			t.Errorf("store shares memory with the caller: %q", got.Endpoints[0].Path)
		}
		got.AuthScheme.ExtraHeaders["X-New"] = "x"

		again, _ := store.GetIntegration(ctx, in.ID)
		if _, ok := again.AuthScheme.ExtraHeaders["X-New"]; ok {
			t.Error("store shares maps with readers")
		}
	})

	t.Run("Assignments", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()
		ctx := context.Background()

		in := NewIntegration("github")
		if err := store.CreateIntegration(ctx, in); err != nil {
			t.Fatalf("CreateIntegration: %v", err)
		}

		first := &schema.Assignment{ID: uuid.NewString(), AgentID: "a1", IntegrationID: in.ID, CreatedAt: time.Now().UTC().Truncate(time.Millisecond)}
		got, err := store.CreateAssignment(ctx, first)
		if err != nil {
			t.Fatalf("CreateAssignment: %v", err)
		}
		if got.ID != first.ID {
			t.Errorf("CreateAssignment returned %s, want %s", got.ID, first.ID)
		}

		again, err := store.CreateAssignment(ctx, &schema.Assignment{ID: uuid.NewString(), AgentID: "a1", IntegrationID: in.ID, CreatedAt: time.Now()})
		if err != nil {
			t.Fatalf("CreateAssignment (repeat): %v", err)
		}
		if again.ID != first.ID {
			t.Errorf("repeat assignment should return the original %s, got %s", first.ID, again.ID)
		}

		a, err := store.GetAssignment(ctx, "a1", in.ID)
		if err != nil || a.ID != first.ID {
			t.Fatalf("GetAssignment: %v %v", a, err)
		}
		if _, err := store.GetAssignment(ctx, "a2", in.ID); !errors.Is(err, state.ErrNotFound) {
			t.Errorf("expected ErrNotFound for unassigned agent, got %v", err)
		}

		list, err := store.ListAgentIntegrations(ctx, "a1")
		if err != nil {
			t.Fatalf("ListAgentIntegrations: %v", err)
		}
		if len(list) != 1 || list[0].ID != in.ID {
			t.Errorf("unexpected agent integrations: %v", names(list))
		}
		if list, _ := store.ListAgentIntegrations(ctx, "a2"); len(list) != 0 {
			t.Errorf("expected no integrations for a2, got %v", names(list))
		}

		if err := store.DeleteAssignment(ctx, "a1", in.ID); err != nil {
			t.Fatalf("DeleteAssignment: %v", err)
		}
		if err := store.DeleteAssignment(ctx, "a1", in.ID); !errors.Is(err, state.ErrNotFound) {
			t.Errorf("expected ErrNotFound deleting twice, got %v", err)
		}
	})

	t.Run("AssignmentRequiresIntegration", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()

		_, err := store.CreateAssignment(context.Background(), &schema.Assignment{
			ID: uuid.NewString(), AgentID: "a1", IntegrationID: uuid.NewString(), CreatedAt: time.Now(),
		})
		if !errors.Is(err, state.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("LogsNewestFirstWithLimit", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()
		ctx := context.Background()

		in := NewIntegration("github")
		if err := store.CreateIntegration(ctx, in); err != nil {
			t.Fatalf("CreateIntegration: %v", err)
		}

		base := time.Now().UTC().Truncate(time.Millisecond)
		for i := 0; i < 25; i++ {
			err := store.AppendLog(ctx, &schema.CallLog{
				ID:            uuid.NewString(),
				IntegrationID: in.ID,
				AgentID:       "a1",
				Method:        "GET",
				Endpoint:      fmt.Sprintf("call-%d", i),
				StatusCode:    200,
				DurationMS:    int64(i),
				CreatedAt:     base.Add(time.Duration(i) * time.Second),
			})
			if err != nil {
				t.Fatalf("AppendLog: %v", err)
			}
		}

		logs, err := store.ListLogs(ctx, in.ID, 0)
		if err != nil {
			t.Fatalf("ListLogs: %v", err)
		}
		if len(logs) != state.DefaultLogLimit {
			t.Fatalf("expected %d logs, got %d", state.DefaultLogLimit, len(logs))
		}
		if logs[0].Endpoint != "call-24" || logs[19].Endpoint != "call-5" {
			t.Errorf("unexpected order: first=%s last=%s", logs[0].Endpoint, logs[19].Endpoint)
		}
		if logs[0].AgentID != "a1" || logs[0].StatusCode != 200 || logs[0].DurationMS != 24 || logs[0].Method != "GET" {
			t.Errorf("unexpected log fields: %+v", logs[0])
		}

		few, _ := store.ListLogs(ctx, in.ID, 3)
		if len(few) != 3 {
			t.Errorf("expected 3 logs, got %d", len(few))
		}
		if none, _ := store.ListLogs(ctx, uuid.NewString(), 10); len(none) != 0 {
			t.Errorf("expected no logs for unknown integration, got %d", len(none))
		}
	})

	t.Run("DeleteCascades", func(t *testing.T) {
		store := newStore(t)
		defer store.Close()
		ctx := context.Background()

		in := NewIntegration("github")
		if err := store.CreateIntegration(ctx, in); err != nil {
			t.Fatalf("CreateIntegration: %v", err)
		}
		if _, err := store.CreateAssignment(ctx, &schema.Assignment{ID: uuid.NewString(), AgentID: "a1", IntegrationID: in.ID, CreatedAt: time.Now()}); err != nil {
			t.Fatalf("CreateAssignment: %v", err)
		}
		if err := store.AppendLog(ctx, &schema.CallLog{ID: uuid.NewString(), IntegrationID: in.ID, AgentID: "a1", Method: "GET", Endpoint: "x", CreatedAt: time.Now()}); err != nil {
			t.Fatalf("AppendLog: %v", err)
		}

		if err := store.DeleteIntegration(ctx, in.ID); err != nil {
			t.Fatalf("DeleteIntegration: %v", err)
		}
		if _, err := store.GetIntegration(ctx, in.ID); !errors.Is(err, state.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
		if _, err := store.GetAssignment(ctx, "a1", in.ID); !errors.Is(err, state.ErrNotFound) {
			t.Errorf("expected assignment to be removed, got %v", err)
		}
		if logs, _ := store.ListLogs(ctx, in.ID, 10); len(logs) != 0 {
			t.Errorf("expected logs to be removed, got %d", len(logs))
		}
		if err := store.DeleteIntegration(ctx, in.ID); !errors.Is(err, state.ErrNotFound) {
			t.Errorf("expected ErrNotFound deleting twice, got %v", err)
		}

		// The name is free again.
		if err := store.CreateIntegration(ctx, NewIntegration("github")); err != nil {
			t.Errorf("recreating after delete: %v", err)
		}
	})
}

func assertIntegration(t *testing.T, got, want *schema.Integration) {
	t.Helper()
	if got.ID != want.ID || got.Name != want.Name || got.Type != want.Type ||
		got.APIType != want.APIType || got.Status != want.Status || got.BaseURL != want.BaseURL ||
		got.UsageInstructions != want.UsageInstructions {
		t.Errorf("scalar fields differ:\n got  %+v\n want %+v", got, want)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) || !got.UpdatedAt.Equal(want.UpdatedAt) {
		t.Errorf("timestamps differ: got %v/%v want %v/%v", got.CreatedAt, got.UpdatedAt, want.CreatedAt, want.UpdatedAt)
	}
	if got.AuthScheme.Type != want.AuthScheme.Type || got.AuthScheme.TokenField != want.AuthScheme.TokenField ||
		got.AuthScheme.ExtraHeaders["X-Api-Version"] != want.AuthScheme.ExtraHeaders["X-Api-Version"] {
		t.Errorf("auth scheme differs: got %+v want %+v", got.AuthScheme, want.AuthScheme)
	}
	if len(got.AuthFields) != len(want.AuthFields) || len(got.Endpoints) != len(want.Endpoints) {
		t.Errorf("list lengths differ: got %d/%d want %d/%d",
			len(got.AuthFields), len(got.Endpoints), len(want.AuthFields), len(want.Endpoints))
	}
	for i := range want.Endpoints {
		if i < len(got.Endpoints) && got.Endpoints[i] != want.Endpoints[i] {
			t.Errorf("endpoint %d: got %+v want %+v", i, got.Endpoints[i], want.Endpoints[i])
		}
	}
	if len(got.RequestTransformers) != len(want.RequestTransformers) ||
		len(got.ResponseTransformers) != len(want.ResponseTransformers) {
		t.Fatalf("transformer lengths differ")
	}
	for i, r := range want.RequestTransformers {
		g := got.RequestTransformers[i]
		if g.Type != r.Type || g.Target != r.Target {
			t.Errorf("request rule %d: got %+v want %+v", i, g, r)
		}
		if (g.Value == nil) != (r.Value == nil) || (r.Value != nil && !g.Value.Equal(*r.Value)) {
			t.Errorf("request rule %d value differs", i)
		}
	}
}

func names(list []*schema.Integration) []string {
	out := make([]string, len(list))
	for i, in := range list {
		out[i] = in.Name
	}
	return out
}
