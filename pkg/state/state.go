// SPDX-License-Identifier: AGPL-3.0-or-later

// Package state is the control plane's persistence layer: one repository
// type per entity in the data model, each parameterized by a Querier and a
// tenant id, with tenant_id carried as a predicate on every query.
package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ironlayer/pkg/cperrors"
)

// Querier is satisfied by pgxpool.Pool, pgxpool.Conn, pgxpool.Tx, pgx.Conn,
// and pgx.Tx. Repositories take a Querier rather than a concrete pool type
// so callers control transaction boundaries: a repository method performs
// its write and a flush-equivalent (returning generated defaults via
// RETURNING) but never commits.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var (
	_ Querier = (*pgxpool.Pool)(nil)
	_ Querier = (*pgxpool.Conn)(nil)
	_ Querier = (pgx.Tx)(nil)
	_ Querier = (*pgx.Conn)(nil)
)

// ErrNotFound is returned when a lookup by id/name finds no row.
var ErrNotFound = cperrors.ErrNotFound

func wrapNotFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return err
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// dialectUpsert centralises INSERT ... ON CONFLICT DO UPDATE construction
// across the repositories below, so the conflict-target and
// update-column list are declared once per call site instead of
// hand-assembled per statement.
func dialectUpsert(table string, columns, indexElements, updateColumns []string) string {
	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	setClauses := make([]string, len(updateColumns))
	for i, col := range updateColumns {
		setClauses[i] = fmt.Sprintf("%s = EXCLUDED.%s", col, col)
	}

	stmt := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		table,
		joinColumns(columns),
		joinColumns(placeholders),
		joinColumns(indexElements),
		joinColumns(setClauses),
	)
	return stmt
}

func joinColumns(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}

// SQLRunner adapts a Querier to executor.SQLRunner, translating pgx's
// pgconn.CommandTag into the plain rows-affected count the executor
// package works with so it never needs to import pgx itself.
type SQLRunner struct {
	Q Querier
}

func (r SQLRunner) Exec(ctx context.Context, sql string, arguments ...any) (int64, error) {
	tag, err := r.Q.Exec(ctx, sql, arguments...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// NewPool constructs a pgxpool.Pool from a DSN. Callers are responsible for
// calling Close on the returned pool.
func NewPool(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("state: parsing dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("state: connecting: %w", err)
	}
	return pool, nil
}
