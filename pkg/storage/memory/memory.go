// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/leseb/integrations-gw/pkg/core/schema"
	"github.com/leseb/integrations-gw/pkg/core/state"
)

func init() {
	state.Providers.Register("memory", func(_ context.Context, _ map[string]string) (state.IntegrationStore, error) {
		return New(), nil
	})
}

// compile-time check
var _ state.IntegrationStore = (*Store)(nil)

type assignmentKey struct {
	agentID       string
	integrationID string
}

// Store is an in-memory implementation of IntegrationStore
type Store struct {
	mu           sync.RWMutex
	integrations map[string]*schema.Integration // keyed by ID
	assignments  map[assignmentKey]*schema.Assignment
	logs         map[string][]*schema.CallLog // keyed by integration ID, append order
}

// New creates a new in-memory store
func New() *Store {
	return &Store{
		integrations: make(map[string]*schema.Integration),
		assignments:  make(map[assignmentKey]*schema.Assignment),
		logs:         make(map[string][]*schema.CallLog),
	}
}

// nameTaken reports whether another integration already uses name.
// Caller must hold the lock.
func (s *Store) nameTaken(name, exceptID string) bool {
	for id, in := range s.integrations {
		if id != exceptID && in.Name == name {
			return true
		}
	}
	return false
}

// CreateIntegration stores a new integration
func (s *Store) CreateIntegration(_ context.Context, integration *schema.Integration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.integrations[integration.ID]; exists {
		return fmt.Errorf("integration %s: %w", integration.ID, state.ErrConflict)
	}
	if s.nameTaken(integration.Name, "") {
		return fmt.Errorf("integration name %q: %w", integration.Name, state.ErrConflict)
	}

	s.integrations[integration.ID] = integration.Clone()
	return nil
}

// GetIntegration retrieves an integration by ID
func (s *Store) GetIntegration(_ context.Context, id string) (*schema.Integration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	in, exists := s.integrations[id]
	if !exists {
		return nil, fmt.Errorf("integration %s: %w", id, state.ErrNotFound)
	}
	return in.Clone(), nil
}

// GetIntegrationByName retrieves an integration by its unique name
func (s *Store) GetIntegrationByName(_ context.Context, name string) (*schema.Integration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, in := range s.integrations {
		if in.Name == name {
			return in.Clone(), nil
		}
	}
	return nil, fmt.Errorf("integration %q: %w", name, state.ErrNotFound)
}

// ListIntegrations returns all integrations, oldest first
func (s *Store) ListIntegrations(_ context.Context) ([]*schema.Integration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*schema.Integration, 0, len(s.integrations))
	for _, in := range s.integrations {
		out = append(out, in.Clone())
	}
	sortIntegrations(out)
	return out, nil
}

// UpdateIntegration replaces a stored integration
func (s *Store) UpdateIntegration(_ context.Context, integration *schema.Integration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.integrations[integration.ID]; !exists {
		return fmt.Errorf("integration %s: %w", integration.ID, state.ErrNotFound)
	}
	if s.nameTaken(integration.Name, integration.ID) {
		return fmt.Errorf("integration name %q: %w", integration.Name, state.ErrConflict)
	}

	s.integrations[integration.ID] = integration.Clone()
	return nil
}

// DeleteIntegration removes an integration with its assignments and logs
func (s *Store) DeleteIntegration(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.integrations[id]; !exists {
		return fmt.Errorf("integration %s: %w", id, state.ErrNotFound)
	}

	delete(s.integrations, id)
	delete(s.logs, id)
	for k := range s.assignments {
		if k.integrationID == id {
			delete(s.assignments, k)
		}
	}
	return nil
}

// CreateAssignment links an agent to an integration, returning the existing
// link if there is one
func (s *Store) CreateAssignment(_ context.Context, assignment *schema.Assignment) (*schema.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.integrations[assignment.IntegrationID]; !exists {
		return nil, fmt.Errorf("integration %s: %w", assignment.IntegrationID, state.ErrNotFound)
	}

	key := assignmentKey{assignment.AgentID, assignment.IntegrationID}
	if existing, ok := s.assignments[key]; ok {
		cp := *existing
		return &cp, nil
	}

	cp := *assignment
	s.assignments[key] = &cp
	out := cp
	return &out, nil
}

// GetAssignment retrieves the link between an agent and an integration
func (s *Store) GetAssignment(_ context.Context, agentID, integrationID string) (*schema.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assignments[assignmentKey{agentID, integrationID}]
	if !ok {
		return nil, fmt.Errorf("assignment %s/%s: %w", agentID, integrationID, state.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

// DeleteAssignment removes the link between an agent and an integration
func (s *Store) DeleteAssignment(_ context.Context, agentID, integrationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := assignmentKey{agentID, integrationID}
	if _, ok := s.assignments[key]; !ok {
		return fmt.Errorf("assignment %s/%s: %w", agentID, integrationID, state.ErrNotFound)
	}
	delete(s.assignments, key)
	return nil
}

// ListAgentIntegrations returns the integrations assigned to an agent
func (s *Store) ListAgentIntegrations(_ context.Context, agentID string) ([]*schema.Integration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*schema.Integration
	for k := range s.assignments {
		if k.agentID != agentID {
			continue
		}
		if in, ok := s.integrations[k.integrationID]; ok {
			out = append(out, in.Clone())
		}
	}
	sortIntegrations(out)
	return out, nil
}

// AppendLog records one upstream call
func (s *Store) AppendLog(_ context.Context, log *schema.CallLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *log
	s.logs[log.IntegrationID] = append(s.logs[log.IntegrationID], &cp)
	return nil
}

// ListLogs returns up to limit logs for an integration, newest first
func (s *Store) ListLogs(_ context.Context, integrationID string, limit int) ([]*schema.CallLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit = state.ClampLogLimit(limit)
	all := s.logs[integrationID]

	// Reverse append order first so equal timestamps still come out
	// newest first.
	sorted := make([]*schema.CallLog, len(all))
	for i, l := range all {
		sorted[len(all)-1-i] = l
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	out := make([]*schema.CallLog, len(sorted))
	for i, l := range sorted {
		cp := *l
		out[i] = &cp
	}
	return out, nil
}

// Close is a no-op for the in-memory store
func (s *Store) Close() error {
	return nil
}

func sortIntegrations(list []*schema.Integration) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].Name < list[j].Name
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
}
