// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlite provides the SQLite record and secret stores, backed by the
// pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/leseb/integrations-gw/pkg/core/state"
	"github.com/leseb/integrations-gw/pkg/secretstore"
	"github.com/leseb/integrations-gw/pkg/storage/sqlstore"
)

func init() {
	state.Providers.Register("sqlite", func(ctx context.Context, params map[string]string) (state.IntegrationStore, error) {
		return New(ctx, params["dsn"])
	})
	secretstore.Providers.Register("sqlite", func(ctx context.Context, params map[string]string) (secretstore.SecretStore, error) {
		s, err := New(ctx, params["dsn"])
		if err != nil {
			return nil, err
		}
		return sqlstore.NewSecretStore(s), nil
	})
}

// Dialect is the SQLite flavour of SQL used by sqlstore.
var Dialect = sqlstore.Dialect{
	Name:              "sqlite",
	BlobType:          "BLOB",
	IsUniqueViolation: isUniqueViolation,
}

// New opens a SQLite database. dsn is a file path, a "file:" URI, or
// ":memory:". An empty dsn means ":memory:".
func New(ctx context.Context, dsn string) (*sqlstore.Store, error) {
	if dsn == "" {
		dsn = ":memory:"
	}
	inMemory := dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
	if !inMemory && !strings.Contains(dsn, "_pragma=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	if inMemory {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite ping: %w", err)
	}

	s, err := sqlstore.New(ctx, db, Dialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
