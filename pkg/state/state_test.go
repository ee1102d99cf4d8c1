// SPDX-License-Identifier: AGPL-3.0-or-later

package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDialectUpsertBuildsConflictClause(t *testing.T) {
	stmt := dialectUpsert(
		"watermarks",
		[]string{"tenant_id", "model_name", "range_start"},
		[]string{"tenant_id", "model_name"},
		[]string{"range_start"},
	)

	assert.Contains(t, stmt, "INSERT INTO watermarks (tenant_id, model_name, range_start) VALUES ($1, $2, $3)")
	assert.Contains(t, stmt, "ON CONFLICT (tenant_id, model_name)")
	assert.Contains(t, stmt, "DO UPDATE SET range_start = EXCLUDED.range_start")
}

func TestJoinColumnsEmpty(t *testing.T) {
	assert.Equal(t, "", joinColumns(nil))
	assert.Equal(t, "a", joinColumns([]string{"a"}))
	assert.Equal(t, "a, b, c", joinColumns([]string{"a", "b", "c"}))
}
