// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlstore implements the record and secret stores on database/sql.
// The sqlite and postgres packages supply a Dialect and an opened *sql.DB.
//
// Queries are written with '?' placeholders and rebound per dialect.
// Timestamps are stored as Unix nanoseconds so ordering is exact on every
// backend.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/leseb/integrations-gw/pkg/core/schema"
	"github.com/leseb/integrations-gw/pkg/core/state"
)

// Dialect captures the differences between SQL backends.
type Dialect struct {
	Name string

	// NumberedPlaceholders rewrites '?' to $1, $2, ...
	NumberedPlaceholders bool

	// BlobType is the column type for opaque bytes.
	BlobType string

	// IsUniqueViolation reports whether err is a unique constraint failure.
	IsUniqueViolation func(error) bool
}

// compile-time check
var _ state.IntegrationStore = (*Store)(nil)

// Store is a database/sql implementation of state.IntegrationStore.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// New wraps db and creates the tables if they do not exist. The Store takes
// ownership of db and closes it on Close.
func New(ctx context.Context, db *sql.DB, dialect Dialect) (*Store, error) {
	s := &Store{db: db, dialect: dialect}
	if err := s.createTables(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS integrations (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			type TEXT NOT NULL DEFAULT '',
			api_type TEXT NOT NULL DEFAULT 'rest',
			status TEXT NOT NULL DEFAULT 'active',
			base_url TEXT NOT NULL,
			auth_scheme TEXT NOT NULL DEFAULT '{}',
			auth_fields TEXT NOT NULL DEFAULT '[]',
			endpoints TEXT NOT NULL DEFAULT '[]',
			request_transformers TEXT NOT NULL DEFAULT '[]',
			response_transformers TEXT NOT NULL DEFAULT '[]',
			usage_instructions TEXT NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS agent_integrations (
			id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			integration_id TEXT NOT NULL,
			created_at BIGINT NOT NULL,
			UNIQUE (agent_id, integration_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_agent_integrations_agent ON agent_integrations(agent_id)`,
		`CREATE TABLE IF NOT EXISTS integration_logs (
			id TEXT PRIMARY KEY,
			integration_id TEXT NOT NULL,
			agent_id TEXT NOT NULL,
			method TEXT NOT NULL,
			endpoint TEXT NOT NULL,
			status_code INTEGER NOT NULL,
			duration_ms BIGINT NOT NULL DEFAULT 0,
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_integration_logs_created ON integration_logs(integration_id, created_at)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS secrets (
			agent_id TEXT NOT NULL,
			service_name TEXT NOT NULL,
			data %s NOT NULL,
			updated_at BIGINT NOT NULL,
			PRIMARY KEY (agent_id, service_name)
		)`, s.dialect.BlobType),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s create tables: %w", s.dialect.Name, err)
		}
	}
	return nil
}

// rebind rewrites '?' placeholders for dialects that number them.
func (s *Store) rebind(query string) string {
	if !s.dialect.NumberedPlaceholders {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) exec(ctx context.Context, q execer, query string, args ...any) (sql.Result, error) {
	return q.ExecContext(ctx, s.rebind(query), args...)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) isUnique(err error) bool {
	return s.dialect.IsUniqueViolation != nil && s.dialect.IsUniqueViolation(err)
}

// --- Integration methods ---

var integrationFields = []string{
	"id", "name", "type", "api_type", "status", "base_url", "auth_scheme", "auth_fields",
	"endpoints", "request_transformers", "response_transformers", "usage_instructions",
	"created_at", "updated_at",
}

var integrationColumns = integrationColumnList("")

// integrationColumnList joins the integration columns, each with prefix.
func integrationColumnList(prefix string) string {
	cols := make([]string, len(integrationFields))
	for i, f := range integrationFields {
		cols[i] = prefix + f
	}
	return strings.Join(cols, ", ")
}

// integrationRow holds the JSON-encoded columns of an integration.
type integrationRow struct {
	authScheme, authFields, endpoints, reqRules, respRules string
}

func encodeIntegration(in *schema.Integration) (*integrationRow, error) {
	var row integrationRow
	var err error
	if row.authScheme, err = marshalJSON(in.AuthScheme); err != nil {
		return nil, fmt.Errorf("marshal auth_scheme: %w", err)
	}
	if row.authFields, err = marshalJSON(nonNil(in.AuthFields)); err != nil {
		return nil, fmt.Errorf("marshal auth_fields: %w", err)
	}
	if row.endpoints, err = marshalJSON(nonNil(in.Endpoints)); err != nil {
		return nil, fmt.Errorf("marshal endpoints: %w", err)
	}
	if row.reqRules, err = marshalJSON(nonNil(in.RequestTransformers)); err != nil {
		return nil, fmt.Errorf("marshal request_transformers: %w", err)
	}
	if row.respRules, err = marshalJSON(nonNil(in.ResponseTransformers)); err != nil {
		return nil, fmt.Errorf("marshal response_transformers: %w", err)
	}
	return &row, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanIntegration(sc scanner) (*schema.Integration, error) {
	var (
		in               schema.Integration
		row              integrationRow
		created, updated int64
	)
	err := sc.Scan(&in.ID, &in.Name, &in.Type, &in.APIType, &in.Status, &in.BaseURL,
		&row.authScheme, &row.authFields, &row.endpoints, &row.reqRules, &row.respRules,
		&in.UsageInstructions, &created, &updated)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(row.authScheme), &in.AuthScheme); err != nil {
		return nil, fmt.Errorf("unmarshal auth_scheme: %w", err)
	}
	if err := json.Unmarshal([]byte(row.authFields), &in.AuthFields); err != nil {
		return nil, fmt.Errorf("unmarshal auth_fields: %w", err)
	}
	if err := json.Unmarshal([]byte(row.endpoints), &in.Endpoints); err != nil {
		return nil, fmt.Errorf("unmarshal endpoints: %w", err)
	}
	if err := json.Unmarshal([]byte(row.reqRules), &in.RequestTransformers); err != nil {
		return nil, fmt.Errorf("unmarshal request_transformers: %w", err)
	}
	if err := json.Unmarshal([]byte(row.respRules), &in.ResponseTransformers); err != nil {
		return nil, fmt.Errorf("unmarshal response_transformers: %w", err)
	}
	in.CreatedAt = fromNanos(created)
	in.UpdatedAt = fromNanos(updated)
	return &in, nil
}

func (s *Store) CreateIntegration(ctx context.Context, in *schema.Integration) error {
	row, err := encodeIntegration(in)
	if err != nil {
		return err
	}

	_, err = s.exec(ctx, s.db,
		`INSERT INTO integrations (`+integrationColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.Name, in.Type, in.APIType, in.Status, in.BaseURL,
		row.authScheme, row.authFields, row.endpoints, row.reqRules, row.respRules,
		in.UsageInstructions, toNanos(in.CreatedAt), toNanos(in.UpdatedAt),
	)
	if err != nil {
		if s.isUnique(err) {
			return fmt.Errorf("integration name %q: %w", in.Name, state.ErrConflict)
		}
		return fmt.Errorf("insert integration: %w", err)
	}
	return nil
}

func (s *Store) GetIntegration(ctx context.Context, id string) (*schema.Integration, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+integrationColumns+` FROM integrations WHERE id = ?`), id)
	in, err := scanIntegration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("integration %s: %w", id, state.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get integration: %w", err)
	}
	return in, nil
}

func (s *Store) GetIntegrationByName(ctx context.Context, name string) (*schema.Integration, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+integrationColumns+` FROM integrations WHERE name = ?`), name)
	in, err := scanIntegration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("integration %q: %w", name, state.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get integration by name: %w", err)
	}
	return in, nil
}

func (s *Store) ListIntegrations(ctx context.Context) ([]*schema.Integration, error) {
	return s.queryIntegrations(ctx,
		`SELECT `+integrationColumns+` FROM integrations ORDER BY created_at ASC, name ASC`)
}

func (s *Store) queryIntegrations(ctx context.Context, query string, args ...any) ([]*schema.Integration, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list integrations: %w", err)
	}
	defer rows.Close()

	var out []*schema.Integration
	for rows.Next() {
		in, err := scanIntegration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan integration: %w", err)
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func (s *Store) UpdateIntegration(ctx context.Context, in *schema.Integration) error {
	row, err := encodeIntegration(in)
	if err != nil {
		return err
	}

	res, err := s.exec(ctx, s.db,
		`UPDATE integrations SET name=?, type=?, api_type=?, status=?, base_url=?, auth_scheme=?,
		 auth_fields=?, endpoints=?, request_transformers=?, response_transformers=?,
		 usage_instructions=?, updated_at=?
		 WHERE id=?`,
		in.Name, in.Type, in.APIType, in.Status, in.BaseURL, row.authScheme,
		row.authFields, row.endpoints, row.reqRules, row.respRules,
		in.UsageInstructions, toNanos(in.UpdatedAt), in.ID,
	)
	if err != nil {
		if s.isUnique(err) {
			return fmt.Errorf("integration name %q: %w", in.Name, state.ErrConflict)
		}
		return fmt.Errorf("update integration: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("integration %s: %w", in.ID, state.ErrNotFound)
	}
	return nil
}

// DeleteIntegration removes the integration, its assignments and its logs in
// one transaction.
func (s *Store) DeleteIntegration(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := s.exec(ctx, tx, `DELETE FROM integrations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete integration: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("integration %s: %w", id, state.ErrNotFound)
	}
	if _, err := s.exec(ctx, tx, `DELETE FROM agent_integrations WHERE integration_id = ?`, id); err != nil {
		return fmt.Errorf("delete assignments: %w", err)
	}
	if _, err := s.exec(ctx, tx, `DELETE FROM integration_logs WHERE integration_id = ?`, id); err != nil {
		return fmt.Errorf("delete logs: %w", err)
	}
	return tx.Commit()
}

// --- Assignment methods ---

func (s *Store) CreateAssignment(ctx context.Context, a *schema.Assignment) (*schema.Assignment, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var exists int
	err = tx.QueryRowContext(ctx, s.rebind(`SELECT 1 FROM integrations WHERE id = ?`), a.IntegrationID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("integration %s: %w", a.IntegrationID, state.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("check integration: %w", err)
	}

	_, err = s.exec(ctx, tx,
		`INSERT INTO agent_integrations (id, agent_id, integration_id, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (agent_id, integration_id) DO NOTHING`,
		a.ID, a.AgentID, a.IntegrationID, toNanos(a.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert assignment: %w", err)
	}

	got, err := s.getAssignment(ctx, tx, a.AgentID, a.IntegrationID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit assignment: %w", err)
	}
	return got, nil
}

func (s *Store) GetAssignment(ctx context.Context, agentID, integrationID string) (*schema.Assignment, error) {
	return s.getAssignment(ctx, s.db, agentID, integrationID)
}

func (s *Store) getAssignment(ctx context.Context, q execer, agentID, integrationID string) (*schema.Assignment, error) {
	var (
		a       schema.Assignment
		created int64
	)
	err := q.QueryRowContext(ctx, s.rebind(
		`SELECT id, agent_id, integration_id, created_at FROM agent_integrations
		 WHERE agent_id = ? AND integration_id = ?`), agentID, integrationID,
	).Scan(&a.ID, &a.AgentID, &a.IntegrationID, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("assignment %s/%s: %w", agentID, integrationID, state.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	a.CreatedAt = fromNanos(created)
	return &a, nil
}

func (s *Store) DeleteAssignment(ctx context.Context, agentID, integrationID string) error {
	res, err := s.exec(ctx, s.db,
		`DELETE FROM agent_integrations WHERE agent_id = ? AND integration_id = ?`, agentID, integrationID)
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("assignment %s/%s: %w", agentID, integrationID, state.ErrNotFound)
	}
	return nil
}

func (s *Store) ListAgentIntegrations(ctx context.Context, agentID string) ([]*schema.Integration, error) {
	return s.queryIntegrations(ctx,
		`SELECT `+integrationColumnList("i.")+` FROM integrations i
		 JOIN agent_integrations a ON a.integration_id = i.id
		 WHERE a.agent_id = ?
		 ORDER BY i.created_at ASC, i.name ASC`, agentID)
}

// --- Log methods ---

func (s *Store) AppendLog(ctx context.Context, l *schema.CallLog) error {
	_, err := s.exec(ctx, s.db,
		`INSERT INTO integration_logs (id, integration_id, agent_id, method, endpoint, status_code, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.IntegrationID, l.AgentID, l.Method, l.Endpoint, l.StatusCode, l.DurationMS, toNanos(l.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert log: %w", err)
	}
	return nil
}

func (s *Store) ListLogs(ctx context.Context, integrationID string, limit int) ([]*schema.CallLog, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, integration_id, agent_id, method, endpoint, status_code, duration_ms, created_at
		 FROM integration_logs WHERE integration_id = ?
		 ORDER BY created_at DESC LIMIT ?`), integrationID, state.ClampLogLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	defer rows.Close()

	out := []*schema.CallLog{}
	for rows.Next() {
		var (
			l       schema.CallLog
			created int64
		)
		if err := rows.Scan(&l.ID, &l.IntegrationID, &l.AgentID, &l.Method, &l.Endpoint,
			&l.StatusCode, &l.DurationMS, &created); err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		l.CreatedAt = fromNanos(created)
		out = append(out, &l)
	}
	return out, rows.Err()
}

// --- helpers ---

func marshalJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func toNanos(t time.Time) int64 {
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
