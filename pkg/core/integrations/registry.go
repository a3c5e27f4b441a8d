// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package integrations manages integration definitions, per-agent
// assignments and the credential bundles behind them.
package integrations

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/leseb/integrations-gw/pkg/core/apierror"
	"github.com/leseb/integrations-gw/pkg/core/schema"
	"github.com/leseb/integrations-gw/pkg/core/state"
	"github.com/leseb/integrations-gw/pkg/core/vault"
)

// Registry is the entry point for everything that reads or changes
// integrations and assignments. Errors it returns are *apierror.Error.
type Registry struct {
	store  state.IntegrationStore
	vault  *vault.Vault
	logger *slog.Logger
	now    func() time.Time
}

// NewRegistry creates a Registry. A nil logger uses slog.Default().
func NewRegistry(store state.IntegrationStore, v *vault.Vault, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		store:  store,
		vault:  v,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create registers a new integration.
func (r *Registry) Create(ctx context.Context, req *schema.CreateIntegrationRequest) (*schema.Integration, error) {
	now := r.now()
	in := &schema.Integration{
		ID:                   uuid.NewString(),
		Name:                 req.Name,
		Type:                 req.Type,
		APIType:              req.APIType,
		Status:               req.Status,
		BaseURL:              req.BaseURL,
		AuthScheme:           req.AuthScheme,
		AuthFields:           req.AuthFields,
		Endpoints:            req.Endpoints,
		RequestTransformers:  req.RequestTransformers,
		ResponseTransformers: req.ResponseTransformers,
		UsageInstructions:    req.UsageInstructions,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	applyDefaults(in)
	if err := validate(in); err != nil {
		return nil, err
	}

	if err := r.store.CreateIntegration(ctx, in); err != nil {
		if errors.Is(err, state.ErrConflict) {
			return nil, apierror.Conflict("integration with name %q already exists", in.Name)
		}
		return nil, apierror.Internal("failed to create integration", err)
	}

	r.logger.Info("integration created", "integration_id", in.ID, "name", in.Name, "api_type", in.APIType)
	return in, nil
}

// Get returns an integration by id.
func (r *Registry) Get(ctx context.Context, id string) (*schema.Integration, error) {
	in, err := r.store.GetIntegration(ctx, id)
	if err != nil {
		return nil, integrationError(err, id)
	}
	return in, nil
}

// List returns every integration in creation order.
func (r *Registry) List(ctx context.Context) ([]*schema.Integration, error) {
	list, err := r.store.ListIntegrations(ctx)
	if err != nil {
		return nil, apierror.Internal("failed to list integrations", err)
	}
	return list, nil
}

// Update applies the non-nil fields of req. api_type cannot change once an
// integration exists.
func (r *Registry) Update(ctx context.Context, id string, req *schema.UpdateIntegrationRequest) (*schema.Integration, error) {
	in, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.APIType != nil && *req.APIType != in.APIType {
		return nil, apierror.Validation("api_type cannot be changed from %q to %q", in.APIType, *req.APIType)
	}
	if req.Name != nil {
		in.Name = *req.Name
	}
	if req.Type != nil {
		in.Type = *req.Type
	}
	if req.Status != nil {
		in.Status = *req.Status
	}
	if req.BaseURL != nil {
		in.BaseURL = *req.BaseURL
	}
	if req.AuthScheme != nil {
		in.AuthScheme = *req.AuthScheme
	}
	if req.AuthFields != nil {
		in.AuthFields = *req.AuthFields
	}
	if req.Endpoints != nil {
		in.Endpoints = *req.Endpoints
	}
	if req.RequestTransformers != nil {
		in.RequestTransformers = *req.RequestTransformers
	}
	if req.ResponseTransformers != nil {
		in.ResponseTransformers = *req.ResponseTransformers
	}
	if req.UsageInstructions != nil {
		in.UsageInstructions = *req.UsageInstructions
	}
	in.UpdatedAt = r.now()

	applyDefaults(in)
	if err := validate(in); err != nil {
		return nil, err
	}

	if err := r.store.UpdateIntegration(ctx, in); err != nil {
		if errors.Is(err, state.ErrConflict) {
			return nil, apierror.Conflict("integration with name %q already exists", in.Name)
		}
		return nil, integrationError(err, id)
	}

	r.logger.Info("integration updated", "integration_id", in.ID)
	return in, nil
}

// Delete removes an integration together with its assignments and call
// logs. Sealed credential bundles stay in the credential store; without an
// assignment nothing can reach them.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if err := r.store.DeleteIntegration(ctx, id); err != nil {
		return integrationError(err, id)
	}
	r.logger.Info("integration deleted", "integration_id", id)
	return nil
}

// Assign stores an agent's credential bundle for an integration and records
// the assignment. The bundle must carry every required auth field. The
// credentials are written before the assignment record, so an assignment
// never exists without credentials behind it. Assigning again overwrites the
// credentials and returns the existing assignment.
func (r *Registry) Assign(ctx context.Context, integrationID string, req *schema.AssignRequest) (*schema.Assignment, error) {
	if req.AgentID == "" {
		return nil, apierror.Validation("agent_id is required")
	}

	in, err := r.Get(ctx, integrationID)
	if err != nil {
		return nil, err
	}

	var missing []string
	for _, name := range in.RequiredFields() {
		if _, ok := req.Credentials[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, apierror.Validation("missing required credentials: %v", missing)
	}

	if err := r.vault.Set(ctx, req.AgentID, in.ID, req.Credentials); err != nil {
		return nil, apierror.Internal("failed to store credentials", err)
	}

	assignment, err := r.store.CreateAssignment(ctx, &schema.Assignment{
		ID:            uuid.NewString(),
		AgentID:       req.AgentID,
		IntegrationID: in.ID,
		CreatedAt:     r.now(),
	})
	if err != nil {
		return nil, integrationError(err, in.ID)
	}

	r.logger.Info("integration assigned",
		"integration_id", in.ID,
		"agent_id", req.AgentID,
		"fields", len(req.Credentials),
	)
	return assignment, nil
}

// Unassign removes the assignment of an integration from an agent. The
// sealed bundle is left in place; proxying requires the assignment.
func (r *Registry) Unassign(ctx context.Context, integrationID, agentID string) error {
	if agentID == "" {
		return apierror.Validation("agent_id is required")
	}
	if err := r.store.DeleteAssignment(ctx, agentID, integrationID); err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return apierror.NotFound("integration %s is not assigned to agent %s", integrationID, agentID)
		}
		return apierror.Internal("failed to remove assignment", err)
	}
	r.logger.Info("integration unassigned", "integration_id", integrationID, "agent_id", agentID)
	return nil
}

// ListForAgent returns the integrations assigned to an agent, reduced to
// what the agent needs to call them.
func (r *Registry) ListForAgent(ctx context.Context, agentID string) ([]schema.AgentIntegration, error) {
	list, err := r.store.ListAgentIntegrations(ctx, agentID)
	if err != nil {
		return nil, apierror.Internal("failed to list agent integrations", err)
	}
	out := make([]schema.AgentIntegration, 0, len(list))
	for _, in := range list {
		out = append(out, schema.AgentIntegration{
			IntegrationID:     in.ID,
			Name:              in.Name,
			Type:              in.Type,
			APIType:           in.APIType,
			BaseURL:           in.BaseURL,
			AuthScheme:        in.AuthScheme,
			AuthFields:        in.AuthFields,
			Endpoints:         in.Endpoints,
			UsageInstructions: in.UsageInstructions,
		})
	}
	return out, nil
}

// Credentials returns the decrypted bundle an agent stored for an
// integration. Callers must gate this behind an admin capability.
func (r *Registry) Credentials(ctx context.Context, integrationID, agentID string) (map[string]string, error) {
	if agentID == "" {
		return nil, apierror.Validation("agent_id is required")
	}
	if _, err := r.store.GetAssignment(ctx, agentID, integrationID); err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return nil, apierror.NotFound("no integration %s assigned to agent %s", integrationID, agentID)
		}
		return nil, apierror.Internal("failed to look up assignment", err)
	}

	creds, ok, err := r.vault.Get(ctx, agentID, integrationID)
	if err != nil {
		return nil, apierror.Internal("failed to read credentials", err)
	}
	if !ok {
		return nil, apierror.NotFound("credentials not found for integration %s and agent %s", integrationID, agentID)
	}
	return creds, nil
}

// AgentCredentials resolves the credentials used to proxy a call. A missing
// assignment and missing or unreadable credentials both report Forbidden so
// callers cannot tell which one is absent.
func (r *Registry) AgentCredentials(ctx context.Context, in *schema.Integration, agentID string) (map[string]string, error) {
	forbidden := apierror.Forbidden("agent %s is not assigned to integration %s or has no credentials", agentID, in.Name)
	if agentID == "" {
		return nil, forbidden
	}

	if _, err := r.store.GetAssignment(ctx, agentID, in.ID); err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return nil, forbidden
		}
		return nil, apierror.Internal("failed to look up assignment", err)
	}

	creds, ok, err := r.vault.Get(ctx, agentID, in.ID)
	if err != nil {
		return nil, apierror.Internal("failed to read credentials", err)
	}
	if !ok {
		return nil, forbidden
	}
	return creds, nil
}

// Logs returns the most recent calls made through an integration, newest
// first. limit is clamped to [1, state.MaxLogLimit]; zero means the default.
func (r *Registry) Logs(ctx context.Context, integrationID string, limit int) ([]*schema.CallLog, error) {
	if _, err := r.Get(ctx, integrationID); err != nil {
		return nil, err
	}
	logs, err := r.store.ListLogs(ctx, integrationID, state.ClampLogLimit(limit))
	if err != nil {
		return nil, apierror.Internal("failed to list logs", err)
	}
	return logs, nil
}

// RecordCall appends one call log row.
func (r *Registry) RecordCall(ctx context.Context, log *schema.CallLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = r.now()
	}
	return r.store.AppendLog(ctx, log)
}

func integrationError(err error, id string) error {
	if errors.Is(err, state.ErrNotFound) {
		return apierror.NotFound("integration %s not found", id)
	}
	return apierror.Internal("integration store failure", err)
}
