// SPDX-License-Identifier: AGPL-3.0-or-later

package pgquery

import (
	"testing"

	"github.com/stretchr/testify/require"

	"ironlayer/pkg/sqltoolkit"
)

func TestExtractTablesExcludesCTENames(t *testing.T) {
	sql := `
WITH recent_orders AS (
  SELECT * FROM orders WHERE created_at > '2026-01-01'
)
SELECT customers.id, recent_orders.total
FROM customers
JOIN recent_orders ON recent_orders.customer_id = customers.id
`
	scope := scopeAnalyzer{}
	result, err := scope.ExtractTables(sql, sqltoolkit.DialectRedshift)
	require.NoError(t, err)
	require.Equal(t, []string{"recent_orders"}, result.CTENames)

	var names []string
	for _, tbl := range result.ReferencedTables {
		names = append(names, tbl.Name)
	}
	require.ElementsMatch(t, []string{"customers", "orders"}, names)
}

func TestSafetyCheckFlagsUnscopedDelete(t *testing.T) {
	guard := safetyGuard{}
	result, err := guard.Check("DELETE FROM orders", sqltoolkit.DialectRedshift, false, false)
	require.NoError(t, err)
	require.False(t, result.IsSafe)
	require.Len(t, result.Violations, 1)
	require.Equal(t, "unscoped_delete", result.Violations[0].ViolationType)
}

func TestSafetyCheckAllowsScopedDelete(t *testing.T) {
	guard := safetyGuard{}
	result, err := guard.Check("DELETE FROM orders WHERE id = 1", sqltoolkit.DialectRedshift, false, false)
	require.NoError(t, err)
	require.True(t, result.IsSafe)
	require.Empty(t, result.Violations)
}

func TestSafetyCheckFlagsDrop(t *testing.T) {
	guard := safetyGuard{}
	result, err := guard.Check("DROP TABLE orders", sqltoolkit.DialectRedshift, false, false)
	require.NoError(t, err)
	require.False(t, result.IsSafe)
	require.Equal(t, "drop", result.Violations[0].ViolationType)
}

func TestNormalizeIsIdempotent(t *testing.T) {
	norm := normalizer{}
	sql := "SELECT id, name -- trailing comment\nFROM customers"
	first, err := norm.Normalize(sql, sqltoolkit.DialectRedshift, "")
	require.NoError(t, err)

	second, err := norm.Normalize(first.NormalizedSQL, sqltoolkit.DialectRedshift, "")
	require.NoError(t, err)
	require.Equal(t, first.NormalizedSQL, second.NormalizedSQL)
}

func TestExtractColumnChanges(t *testing.T) {
	d := differ{}
	changes, err := d.ExtractColumnChanges(
		"SELECT id, name FROM customers",
		"SELECT id, email FROM customers",
		sqltoolkit.DialectRedshift,
	)
	require.NoError(t, err)
	require.Equal(t, "removed", changes["name"])
	require.Equal(t, "added", changes["email"])
	_, hasID := changes["id"]
	require.False(t, hasID)
}

func TestRewriteTablesSchema(t *testing.T) {
	r := rewriter{}
	result, err := r.RewriteTables(
		"SELECT * FROM raw.orders",
		[]sqltoolkit.RewriteRule{{SourceSchema: "raw", TargetSchema: "staging"}},
		sqltoolkit.DialectRedshift,
	)
	require.NoError(t, err)
	require.Contains(t, result.RewrittenSQL, "staging.orders")
}

func TestQuoteIdentifierReservedWord(t *testing.T) {
	r := rewriter{}
	require.Equal(t, `"user"`, r.QuoteIdentifier("user", sqltoolkit.DialectRedshift))
	require.Equal(t, "id", r.QuoteIdentifier("id", sqltoolkit.DialectRedshift))
}

func TestToolkitRegisteredViaInit(t *testing.T) {
	tk := sqltoolkit.Get()
	require.NotNil(t, tk.Parser())
	require.NotNil(t, tk.SafetyGuard())
}

func TestSafetyCheckFlagsGrantAsError(t *testing.T) {
	guard := safetyGuard{}
	result, err := guard.Check("GRANT SELECT ON orders TO analyst", sqltoolkit.DialectRedshift, false, false)
	require.NoError(t, err)
	require.False(t, result.IsSafe)
	require.Equal(t, "grant", result.Violations[0].ViolationType)
	require.Equal(t, sqltoolkit.SeverityError, result.Violations[0].Severity)
}

func TestSafetyCheckFlagsRevokeAsError(t *testing.T) {
	guard := safetyGuard{}
	result, err := guard.Check("REVOKE SELECT ON orders FROM analyst", sqltoolkit.DialectRedshift, false, false)
	require.NoError(t, err)
	require.False(t, result.IsSafe)
	require.Equal(t, "revoke", result.Violations[0].ViolationType)
	require.Equal(t, sqltoolkit.SeverityError, result.Violations[0].Severity)
}

func TestSafetyCheckFlagsAlterDropColumn(t *testing.T) {
	guard := safetyGuard{}
	result, err := guard.Check("ALTER TABLE orders DROP COLUMN legacy_status", sqltoolkit.DialectRedshift, false, false)
	require.NoError(t, err)
	require.False(t, result.IsSafe)
	require.Equal(t, "alter_drop_column", result.Violations[0].ViolationType)
	require.Equal(t, sqltoolkit.SeverityError, result.Violations[0].Severity)
	require.Contains(t, result.Violations[0].Target, "legacy_status")
}

func TestSafetyCheckAllowsAlterAddColumn(t *testing.T) {
	guard := safetyGuard{}
	result, err := guard.Check("ALTER TABLE orders ADD COLUMN notes text", sqltoolkit.DialectRedshift, false, false)
	require.NoError(t, err)
	require.True(t, result.IsSafe)
	require.Empty(t, result.Violations)
}

func TestSafetyCheckFlagsExecuteStatement(t *testing.T) {
	guard := safetyGuard{}
	result, err := guard.Check("EXECUTE refresh_orders(1, 2)", sqltoolkit.DialectRedshift, false, false)
	require.NoError(t, err)
	require.False(t, result.IsSafe)
	require.Equal(t, "exec", result.Violations[0].ViolationType)
	require.Equal(t, sqltoolkit.SeverityError, result.Violations[0].Severity)
}

func TestSafetyCheckFallsBackToKeywordScanForUnparsableDialectSyntax(t *testing.T) {
	guard := safetyGuard{}
	// INSERT OVERWRITE has no Postgres grammar equivalent, so pg_query.Parse
	// rejects it outright; the command fallback scan is the only thing that
	// can flag it.
	result, err := guard.Check("INSERT OVERWRITE TABLE orders SELECT * FROM staging_orders", sqltoolkit.DialectDatabricks, false, true)
	require.NoError(t, err)
	require.True(t, result.IsSafe)
	require.Len(t, result.Violations, 1)
	require.Equal(t, "insert_overwrite_without_partition", result.Violations[0].ViolationType)
	require.Equal(t, sqltoolkit.SeverityWarning, result.Violations[0].Severity)
}

func TestSafetyCheckFallbackAllowsInsertOverwriteWithPartition(t *testing.T) {
	guard := safetyGuard{}
	result, err := guard.Check(
		"INSERT OVERWRITE TABLE orders PARTITION (ds='2026-01-01') SELECT * FROM staging_orders",
		sqltoolkit.DialectDatabricks, false, true,
	)
	require.NoError(t, err)
	require.True(t, result.IsSafe)
	require.Empty(t, result.Violations)
}

func TestSafetyCheckFallbackFlagsUnparsableDrop(t *testing.T) {
	guard := safetyGuard{}
	// A malformed/dialect-specific DROP that pg_query can't parse still
	// trips the fallback keyword scan rather than silently passing.
	result, err := guard.Check("DROP TABLE orders CASCADE IF EXISTS WITH PURGE", sqltoolkit.DialectDatabricks, false, false)
	require.NoError(t, err)
	require.False(t, result.IsSafe)
	require.Equal(t, "drop", result.Violations[0].ViolationType)
}

func TestSafetyCheckUnparsableSQLWithNoDangerousKeywordsStillErrors(t *testing.T) {
	guard := safetyGuard{}
	_, err := guard.Check("SELEKT * FORM orders", sqltoolkit.DialectRedshift, false, false)
	require.Error(t, err)
	require.ErrorIs(t, err, sqltoolkit.ErrParse)
}
