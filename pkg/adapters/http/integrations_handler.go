// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"crypto/subtle"
	"net/http"
	"strconv"

	"github.com/leseb/integrations-gw/pkg/core/apierror"
	"github.com/leseb/integrations-gw/pkg/core/schema"
)

// adminTokenHeader carries the admin token for credential read-back.
const adminTokenHeader = "X-Admin-Token"

// handleCreateIntegration handles POST /integrations
func (h *Handler) handleCreateIntegration(w http.ResponseWriter, r *http.Request) {
	var req schema.CreateIntegrationRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	in, err := h.registry.Create(r.Context(), &req)
	if err != nil {
		h.writeAPIError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, in)
}

// handleListIntegrations handles GET /integrations
func (h *Handler) handleListIntegrations(w http.ResponseWriter, r *http.Request) {
	list, err := h.registry.List(r.Context())
	if err != nil {
		h.writeAPIError(w, err)
		return
	}

	data := make([]schema.Integration, 0, len(list))
	for _, in := range list {
		data = append(data, *in)
	}
	h.writeJSON(w, http.StatusOK, schema.ListIntegrationsResponse{
		Object: "list",
		Data:   data,
	})
}

// handleGetIntegration handles GET /integrations/{id}
func (h *Handler) handleGetIntegration(w http.ResponseWriter, r *http.Request) {
	in, err := h.registry.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeAPIError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, in)
}

// handleUpdateIntegration handles PATCH /integrations/{id}
func (h *Handler) handleUpdateIntegration(w http.ResponseWriter, r *http.Request) {
	var req schema.UpdateIntegrationRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	in, err := h.registry.Update(r.Context(), r.PathValue("id"), &req)
	if err != nil {
		h.writeAPIError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, in)
}

// handleDeleteIntegration handles DELETE /integrations/{id}
func (h *Handler) handleDeleteIntegration(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.registry.Delete(r.Context(), id); err != nil {
		h.writeAPIError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, schema.DeleteIntegrationResponse{
		ID:      id,
		Object:  "integration.deleted",
		Deleted: true,
	})
}

// handleAssign handles POST /integrations/{id}/assign
func (h *Handler) handleAssign(w http.ResponseWriter, r *http.Request) {
	var req schema.AssignRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	assignment, err := h.registry.Assign(r.Context(), r.PathValue("id"), &req)
	if err != nil {
		h.writeAPIError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, assignment)
}

// handleUnassign handles DELETE /integrations/{id}/assign?agent_id=
func (h *Handler) handleUnassign(w http.ResponseWriter, r *http.Request) {
	agentID := r.URL.Query().Get("agent_id")
	if err := h.registry.Unassign(r.Context(), r.PathValue("id"), agentID); err != nil {
		h.writeAPIError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListAgentIntegrations handles GET /agents/{agent_id}/integrations
func (h *Handler) handleListAgentIntegrations(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("agent_id")
	list, err := h.registry.ListForAgent(r.Context(), agentID)
	if err != nil {
		h.writeAPIError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, schema.AgentIntegrationsResponse{
		AgentID:      agentID,
		Integrations: list,
	})
}

// handleListLogs handles GET /integrations/{id}/logs?limit=
func (h *Handler) handleListLogs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		l, err := strconv.Atoi(s)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, string(apierror.KindValidation), "limit must be an integer")
			return
		}
		limit = l
	}

	logs, err := h.registry.Logs(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		h.writeAPIError(w, err)
		return
	}

	data := make([]schema.CallLog, 0, len(logs))
	for _, l := range logs {
		data = append(data, *l)
	}
	h.writeJSON(w, http.StatusOK, schema.ListLogsResponse{
		Object: "list",
		Data:   data,
	})
}

// handleGetCredentials handles GET /integrations/{id}/credentials?agent_id=
// The route answers only when an admin token is configured and presented.
func (h *Handler) handleGetCredentials(w http.ResponseWriter, r *http.Request) {
	if !h.isAdmin(r) {
		h.writeError(w, http.StatusForbidden, string(apierror.KindForbidden), "admin token required")
		return
	}

	id := r.PathValue("id")
	agentID := r.URL.Query().Get("agent_id")
	creds, err := h.registry.Credentials(r.Context(), id, agentID)
	if err != nil {
		h.writeAPIError(w, err)
		return
	}

	h.logger.Warn("Credentials read back", "integration_id", id, "agent_id", agentID)
	h.writeJSON(w, http.StatusOK, schema.CredentialsResponse{
		IntegrationID: id,
		AgentID:       agentID,
		Credentials:   creds,
	})
}

func (h *Handler) isAdmin(r *http.Request) bool {
	if h.adminToken == "" {
		return false
	}
	got := r.Header.Get(adminTokenHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.adminToken)) == 1
}
