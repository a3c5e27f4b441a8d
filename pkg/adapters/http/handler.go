// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/leseb/integrations-gw/pkg/core/apierror"
	"github.com/leseb/integrations-gw/pkg/core/integrations"
	"github.com/leseb/integrations-gw/pkg/core/proxy"
	"github.com/leseb/integrations-gw/pkg/observability/logging"
)

// maxRequestBytes caps JSON request bodies, proxy payloads included.
const maxRequestBytes = 10 << 20

// Options configures the optional parts of the HTTP adapter.
type Options struct {
	// AdminToken guards GET /integrations/{id}/credentials. Empty disables
	// the route.
	AdminToken string

	// Metrics serves GET /metrics when set.
	Metrics http.Handler
}

// Handler implements the HTTP adapter
type Handler struct {
	registry   *integrations.Registry
	dispatcher *proxy.Dispatcher
	logger     *logging.Logger
	mux        *http.ServeMux
	adminToken string
}

// New creates a new HTTP handler
func New(registry *integrations.Registry, dispatcher *proxy.Dispatcher, logger *logging.Logger, opts Options) *Handler {
	h := &Handler{
		registry:   registry,
		dispatcher: dispatcher,
		logger:     logger,
		mux:        http.NewServeMux(),
		adminToken: opts.AdminToken,
	}

	// Register routes
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /openapi.json", h.handleOpenAPI)
	if opts.Metrics != nil {
		h.mux.Handle("GET /metrics", opts.Metrics)
	}

	// Integrations API
	h.mux.HandleFunc("POST /integrations", h.handleCreateIntegration)
	h.mux.HandleFunc("GET /integrations", h.handleListIntegrations)
	h.mux.HandleFunc("GET /integrations/{id}", h.handleGetIntegration)
	h.mux.HandleFunc("PATCH /integrations/{id}", h.handleUpdateIntegration)
	h.mux.HandleFunc("DELETE /integrations/{id}", h.handleDeleteIntegration)
	h.mux.HandleFunc("GET /integrations/{id}/logs", h.handleListLogs)
	h.mux.HandleFunc("GET /integrations/{id}/credentials", h.handleGetCredentials)

	// Assignments
	h.mux.HandleFunc("POST /integrations/{id}/assign", h.handleAssign)
	h.mux.HandleFunc("DELETE /integrations/{id}/assign", h.handleUnassign)
	h.mux.HandleFunc("GET /agents/{agent_id}/integrations", h.handleListAgentIntegrations)

	// Proxy
	h.mux.HandleFunc("POST /integrations/{id}/proxy", h.handleProxy)
	h.mux.HandleFunc("POST /integrations/{id}/proxy/graphql", h.handleProxyGraphQL)

	return h
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("Request",
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr)

	h.mux.ServeHTTP(w, r)
}

// handleHealth handles health check requests
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// decodeJSON reads a JSON request body into v and writes the error response
// itself when that fails.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			h.writeError(w, http.StatusRequestEntityTooLarge, string(apierror.KindValidation), "Request body too large")
		case errors.Is(err, io.EOF):
			h.writeError(w, http.StatusBadRequest, string(apierror.KindValidation), "Request body is required")
		default:
			h.writeError(w, http.StatusBadRequest, string(apierror.KindValidation), "Failed to parse request body: "+err.Error())
		}
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", "error", err)
	}
}

// writeAPIError maps a domain error to its status code. Only the error's
// caller-safe message is written; wrapped causes go to the log.
func (h *Handler) writeAPIError(w http.ResponseWriter, err error) {
	apiErr, ok := apierror.As(err)
	if !ok {
		apiErr = apierror.Internal("internal error", err)
	}
	status := apierror.HTTPStatus(apiErr.Kind)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", "kind", apiErr.Kind, "error", err)
	}
	h.writeError(w, status, string(apiErr.Kind), apiErr.Message)
}

// writeError writes an error response
func (h *Handler) writeError(w http.ResponseWriter, status int, errType, message string) {
	h.writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"type":    errType,
			"message": message,
		},
	})
}
