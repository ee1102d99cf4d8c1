// SPDX-License-Identifier: AGPL-3.0-or-later

package state

import (
	"context"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// EnsureSchema applies the embedded schema: one CREATE TABLE/INDEX IF NOT
// EXISTS per entity in the data model. Safe to call on every process start
// — against an up-to-date database every statement is a no-op. Callers run
// this once, against a bare connection, before constructing any repository.
func EnsureSchema(ctx context.Context, q Querier) error {
	if _, err := q.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("state: applying schema: %w", err)
	}
	return nil
}
