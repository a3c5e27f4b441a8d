// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"regexp"
	"strings"

	"github.com/leseb/integrations-gw/pkg/core/schema"
)

var operationPattern = regexp.MustCompile(`^\s*(query|mutation|subscription)\s+(\w+)`)

// restLabel names a REST call for the call log: the matching catalog
// entry's description, else its path, else the called path.
func restLabel(endpoints []schema.Endpoint, method, path string) string {
	path = normalizePath(path)
	for _, e := range endpoints {
		if !strings.EqualFold(e.Method, method) || normalizePath(e.Path) != path {
			continue
		}
		if e.Description != "" {
			return e.Description
		}
		return e.Path
	}
	return path
}

// graphqlLabel names a GraphQL call: the operation name when given, else
// the name declared in the query text, else "graphql:anonymous".
func graphqlLabel(endpoints []schema.Endpoint, operationName, query string) string {
	if operationName != "" {
		for _, e := range endpoints {
			if e.Name == operationName {
				return "graphql:" + e.Name
			}
		}
		return "graphql:" + operationName
	}
	if m := operationPattern.FindStringSubmatch(query); m != nil {
		return "graphql:" + m[2]
	}
	return "graphql:anonymous"
}

// normalizePath drops the query string and forces a single leading slash.
func normalizePath(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	return "/" + strings.TrimLeft(p, "/")
}

// joinURL appends path to base with exactly one slash between them.
func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}
