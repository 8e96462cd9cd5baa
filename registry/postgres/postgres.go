// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package postgres provides a [registry.Registry] stored in PostgreSQL.
//
// The live version references the active versions table through a foreign
// key, so PostgreSQL itself rejects removing the live version and making an
// inactive version live.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/z5labs/drain/registry"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of [pgxpool.Pool] used by [Registry].
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const schema = `
CREATE TABLE IF NOT EXISTS drain_schema_active (
	namespace TEXT NOT NULL,
	version   TEXT NOT NULL,
	PRIMARY KEY (namespace, version)
);
CREATE TABLE IF NOT EXISTS drain_schema_live (
	namespace TEXT PRIMARY KEY,
	version   TEXT NOT NULL,
	FOREIGN KEY (namespace, version) REFERENCES drain_schema_active (namespace, version)
);
`

// CreateTables creates the registry tables if they do not exist yet.
func CreateTables(ctx context.Context, db DB) error {
	_, err := db.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("postgres: failed to create registry tables: %w", err)
	}
	return nil
}

const foreignKeyViolation = "23503"

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation
}

// Registry is a [registry.Registry] backed by PostgreSQL.
// The tables must exist, see [CreateTables].
type Registry struct {
	db        DB
	namespace string
}

// NewRegistry initializes a [Registry] scoped to namespace.
func NewRegistry(db DB, namespace string) *Registry {
	return &Registry{
		db:        db,
		namespace: namespace,
	}
}

// Add implements the [registry.Registry] interface.
func (r *Registry) Add(ctx context.Context, version string) error {
	if err := registry.Validate(version); err != nil {
		return err
	}

	_, err := r.db.Exec(
		ctx,
		`INSERT INTO drain_schema_active (namespace, version) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		r.namespace,
		version,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to add version %s: %w", version, err)
	}
	return nil
}

// Remove implements the [registry.Registry] interface.
func (r *Registry) Remove(ctx context.Context, version string) error {
	_, err := r.db.Exec(
		ctx,
		`DELETE FROM drain_schema_active WHERE namespace = $1 AND version = $2`,
		r.namespace,
		version,
	)
	if isForeignKeyViolation(err) {
		return registry.ErrVersionLive
	}
	if err != nil {
		return fmt.Errorf("postgres: failed to remove version %s: %w", version, err)
	}
	return nil
}

// Live implements the [registry.Registry] interface.
func (r *Registry) Live(ctx context.Context) (string, error) {
	var version string
	err := r.db.QueryRow(
		ctx,
		`SELECT version FROM drain_schema_live WHERE namespace = $1`,
		r.namespace,
	).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", registry.ErrNoLiveVersion
	}
	if err != nil {
		return "", fmt.Errorf("postgres: failed to get live version: %w", err)
	}
	return version, nil
}

// SetLive implements the [registry.Registry] interface.
func (r *Registry) SetLive(ctx context.Context, version string) error {
	_, err := r.db.Exec(
		ctx,
		`INSERT INTO drain_schema_live (namespace, version) VALUES ($1, $2)
		ON CONFLICT (namespace) DO UPDATE SET version = EXCLUDED.version`,
		r.namespace,
		version,
	)
	if isForeignKeyViolation(err) {
		return registry.ErrVersionNotActive
	}
	if err != nil {
		return fmt.Errorf("postgres: failed to set live version %s: %w", version, err)
	}
	return nil
}

// ClearLive implements the [registry.Registry] interface.
func (r *Registry) ClearLive(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `DELETE FROM drain_schema_live WHERE namespace = $1`, r.namespace)
	if err != nil {
		return fmt.Errorf("postgres: failed to clear live version: %w", err)
	}
	return nil
}

// Active implements the [registry.Registry] interface.
func (r *Registry) Active(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(
		ctx,
		`SELECT version FROM drain_schema_active WHERE namespace = $1 ORDER BY version COLLATE "C"`,
		r.namespace,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list active versions: %w", err)
	}

	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list active versions: %w", err)
	}
	return versions, nil
}
