// SPDX-License-Identifier: AGPL-3.0-or-later

package sqltoolkit

// Parser parses SQL strings into AST representations.
type Parser interface {
	// ParseOne parses a single SQL statement. If raiseOnError is true, an
	// invalid statement returns a non-nil error wrapping ErrParse. If
	// false, it returns a ParseResult with Warnings instead.
	ParseOne(sql string, dialect Dialect, raiseOnError bool) (ParseResult, error)

	// ParseMulti parses potentially multi-statement SQL (statements
	// separated by ';').
	ParseMulti(sql string, dialect Dialect) (ParseResult, error)
}

// Renderer converts AST nodes back to SQL text.
type Renderer interface {
	// Render renders a node to a SQL string for the given target dialect.
	Render(node Node, dialect Dialect, pretty bool, normalizeKeywords bool) (string, error)

	// RenderExpression renders a single expression fragment.
	RenderExpression(node Node, dialect Dialect) (string, error)
}

// ScopeAnalyzer performs scope-aware table/column analysis.
type ScopeAnalyzer interface {
	// ExtractTables returns referenced external tables (CTE and
	// subquery-local tables excluded from ReferencedTables) plus CTE names.
	ExtractTables(sql string, dialect Dialect) (ScopeResult, error)

	// ExtractColumns returns output columns, all referenced columns, and
	// star/aggregation/window flags.
	ExtractColumns(sql string, dialect Dialect) (ColumnExtractionResult, error)
}

// Transpiler converts SQL between dialects.
type Transpiler interface {
	// Transpile converts sql from sourceDialect to targetDialect. On
	// failure it returns the original SQL with FallbackUsed=true rather
	// than an error, so callers that need a strict guarantee check the
	// flag explicitly.
	Transpile(sql string, sourceDialect, targetDialect Dialect, pretty bool) (TranspileResult, error)
}

// Normalizer produces a canonical SQL form for content hashing.
type Normalizer interface {
	// Normalize canonicalizes sql: strip comments, regenerate with keyword
	// normalization, and reorder CTEs alphabetically only when none
	// forward-reference another by name. canonicalizationVersion defaults
	// to "v1" when empty; a future version must use a different tag.
	Normalize(sql string, dialect Dialect, canonicalizationVersion string) (NormalizationResult, error)
}

// Differ diffs two SQL statements at the AST level.
type Differ interface {
	// Diff computes a semantic diff. It first normalizes both sides and
	// compares strings; if equal, the result is IsCosmeticOnly with zero
	// edits. Otherwise it computes a sorted, deterministic AST edit list.
	Diff(oldSQL, newSQL string, dialect Dialect) (AstDiffResult, error)

	// ExtractColumnChanges returns {column_name: "added"|"removed"|"modified"}
	// between two SELECT statements. Columns unchanged in both are omitted.
	ExtractColumnChanges(oldSQL, newSQL string, dialect Dialect) (map[string]string, error)
}

// SafetyGuard detects dangerous SQL operations via AST inspection (never
// regex).
type SafetyGuard interface {
	Check(sql string, dialect Dialect, allowCreate, allowInsert bool) (SafetyCheckResult, error)
}

// Rewriter rewrites table references in SQL via AST mutation.
type Rewriter interface {
	// RewriteTables rewrites table references per rules, matching
	// fully-qualified, schema-qualified, catalog-qualified, and
	// unqualified tables in that order of specificity.
	RewriteTables(sql string, rules []RewriteRule, dialect Dialect) (RewriteResult, error)

	// QuoteIdentifier safely quotes an identifier for the given dialect.
	QuoteIdentifier(name string, dialect Dialect) string
}

// LineageAnalyzer traces column-level lineage.
type LineageAnalyzer interface {
	// ColumnLineage traces each output column of sql to its source
	// columns. When schema is non-nil, SELECT * is expanded via the
	// qualifier; otherwise '*' is recorded in UnresolvedColumns rather than
	// fabricated.
	ColumnLineage(modelName, sql string, dialect Dialect, schema map[string][]string) (ColumnLineageResult, error)
}

// Toolkit is the composite capability set a consumer receives from the
// registry. Implementations satisfy every capability; the protocol split
// exists so individual capabilities can be tested/mocked independently.
type Toolkit interface {
	Parser() Parser
	Renderer() Renderer
	ScopeAnalyzer() ScopeAnalyzer
	Transpiler() Transpiler
	Normalizer() Normalizer
	Differ() Differ
	SafetyGuard() SafetyGuard
	Rewriter() Rewriter
	Lineage() LineageAnalyzer
}
