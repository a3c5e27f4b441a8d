// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"context"
	"errors"

	"github.com/leseb/integrations-gw/pkg/core/schema"
	"github.com/leseb/integrations-gw/pkg/provider"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a write would violate a uniqueness rule,
	// such as two integrations sharing a name.
	ErrConflict = errors.New("conflict")
)

// Providers is the registry of record store backends. Factories receive a
// "dsn" parameter.
var Providers = provider.NewRegistry[IntegrationStore]("storage")

// DefaultLogLimit and MaxLogLimit bound ListLogs.
const (
	DefaultLogLimit = 20
	MaxLogLimit     = 100
)

// IntegrationStore defines the interface for integration, assignment and
// call log persistence.
type IntegrationStore interface {
	// Integrations. Names are unique; writes that would duplicate one
	// return ErrConflict. Deleting an integration also deletes its
	// assignments and call logs.
	CreateIntegration(ctx context.Context, integration *schema.Integration) error
	GetIntegration(ctx context.Context, id string) (*schema.Integration, error)
	GetIntegrationByName(ctx context.Context, name string) (*schema.Integration, error)
	ListIntegrations(ctx context.Context) ([]*schema.Integration, error)
	UpdateIntegration(ctx context.Context, integration *schema.Integration) error
	DeleteIntegration(ctx context.Context, id string) error

	// Assignments. CreateAssignment is idempotent: when the pair already
	// exists the stored assignment is returned unchanged.
	CreateAssignment(ctx context.Context, assignment *schema.Assignment) (*schema.Assignment, error)
	GetAssignment(ctx context.Context, agentID, integrationID string) (*schema.Assignment, error)
	DeleteAssignment(ctx context.Context, agentID, integrationID string) error
	ListAgentIntegrations(ctx context.Context, agentID string) ([]*schema.Integration, error)

	// Call logs, returned newest first.
	AppendLog(ctx context.Context, log *schema.CallLog) error
	ListLogs(ctx context.Context, integrationID string, limit int) ([]*schema.CallLog, error)

	Close() error
}

// ClampLogLimit applies DefaultLogLimit and MaxLogLimit to a requested limit.
func ClampLogLimit(limit int) int {
	if limit <= 0 {
		return DefaultLogLimit
	}
	if limit > MaxLogLimit {
		return MaxLogLimit
	}
	return limit
}
