// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"net/http"
	"strconv"

	"github.com/leseb/integrations-gw/pkg/core/proxy"
	"github.com/leseb/integrations-gw/pkg/core/schema"
)

// transformWarningsHeader reports how many transform rules were skipped.
const transformWarningsHeader = "X-Transform-Warnings"

// handleProxy handles POST /integrations/{id}/proxy
func (h *Handler) handleProxy(w http.ResponseWriter, r *http.Request) {
	var req schema.ProxyRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	result, err := h.dispatcher.ProxyREST(r.Context(), r.PathValue("id"), &req)
	if err != nil {
		h.writeAPIError(w, err)
		return
	}
	h.writeResult(w, result)
}

// handleProxyGraphQL handles POST /integrations/{id}/proxy/graphql
func (h *Handler) handleProxyGraphQL(w http.ResponseWriter, r *http.Request) {
	var req schema.GraphQLProxyRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	result, err := h.dispatcher.ProxyGraphQL(r.Context(), r.PathValue("id"), &req)
	if err != nil {
		h.writeAPIError(w, err)
		return
	}
	h.writeResult(w, result)
}

// writeResult passes the upstream status and body through, error statuses
// included.
func (h *Handler) writeResult(w http.ResponseWriter, result *proxy.Result) {
	if ct := result.ContentType(); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	if n := len(result.Warnings); n > 0 {
		w.Header().Set(transformWarningsHeader, strconv.Itoa(n))
	}
	w.WriteHeader(result.StatusCode)
	if _, err := w.Write(result.Body); err != nil {
		h.logger.Debug("Failed to write proxied response", "error", err)
	}
}
