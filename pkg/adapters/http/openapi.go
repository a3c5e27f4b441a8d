// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/leseb/integrations-gw/docs"
	"gopkg.in/yaml.v3"
)

// openAPIJSON converts the embedded YAML document once per process.
var openAPIJSON = sync.OnceValues(func() ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(docs.OpenAPISpec, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(doc)
})

// handleOpenAPI serves the OpenAPI document as JSON.
func (h *Handler) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	data, err := openAPIJSON()
	if err != nil {
		h.logger.Error("Failed to load embedded OpenAPI document", "error", err)
		h.writeError(w, http.StatusInternalServerError, "spec_error", "Failed to load OpenAPI document")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
