// SPDX-License-Identifier: AGPL-3.0-or-later

// Package sqltoolkit defines dialect-agnostic SQL capability interfaces and
// the shared types they operate on. No type in this file depends on any
// concrete parsing library — implementations live in subpackages (e.g.
// pkg/sqltoolkit/pgquery) and convert to/from these types at their
// boundary. Consumer code imports only this package and pkg/sqltoolkit's
// registry, never an implementation package directly.
package sqltoolkit

import "errors"

// Dialect identifies a supported SQL dialect.
type Dialect string

const (
	DialectDatabricks Dialect = "databricks"
	DialectDuckDB     Dialect = "duckdb"
	DialectRedshift   Dialect = "redshift"
)

// NodeKind enumerates the AST node kinds consumer code inspects. This is
// not a 1:1 mapping onto any backing parser's internal node types — it is
// the subset the control plane actually needs, kept minimal to reduce
// coupling to the backing implementation.
type NodeKind string

const (
	NodeSelect   NodeKind = "select"
	NodeCreate   NodeKind = "create"
	NodeInsert   NodeKind = "insert"
	NodeUpdate   NodeKind = "update"
	NodeDelete   NodeKind = "delete"
	NodeDrop     NodeKind = "drop"
	NodeAlter    NodeKind = "alter"
	NodeTruncate NodeKind = "truncate"
	NodeMerge    NodeKind = "merge"
	NodeGrant    NodeKind = "grant"
	NodeRevoke   NodeKind = "revoke"
	NodeCommand  NodeKind = "command" // parser escape-hatch / unrecognized statement

	NodeWith  NodeKind = "with"
	NodeCTE   NodeKind = "cte"
	NodeFrom  NodeKind = "from"
	NodeJoin  NodeKind = "join"
	NodeWhere NodeKind = "where"

	NodeTable      NodeKind = "table"
	NodeColumn     NodeKind = "column"
	NodeStar       NodeKind = "star"
	NodeAlias      NodeKind = "alias"
	NodeTableAlias NodeKind = "table_alias"
	NodeWindow     NodeKind = "window"
	NodeAggFunc    NodeKind = "agg_func"
	NodeSubquery   NodeKind = "subquery"

	NodeUnknown NodeKind = "unknown"
)

// TableRef is a fully (or partially) resolved table reference.
type TableRef struct {
	Catalog string
	Schema  string
	Name    string
}

// FullyQualified returns "catalog.schema.name", omitting empty parts.
func (t TableRef) FullyQualified() string {
	parts := make([]string, 0, 3)
	if t.Catalog != "" {
		parts = append(parts, t.Catalog)
	}
	if t.Schema != "" {
		parts = append(parts, t.Schema)
	}
	if t.Name != "" {
		parts = append(parts, t.Name)
	}
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "."
		}
		out += p
	}
	return out
}

func (t TableRef) String() string { return t.FullyQualified() }

// WithCatalog returns a copy of t with Catalog replaced.
func (t TableRef) WithCatalog(catalog string) TableRef {
	t.Catalog = catalog
	return t
}

// WithSchema returns a copy of t with Schema replaced.
func (t TableRef) WithSchema(schema string) TableRef {
	t.Schema = schema
	return t
}

// ColumnRef is a column reference, optionally qualified by table.
type ColumnRef struct {
	Table string
	Name  string
}

func (c ColumnRef) String() string {
	if c.Table != "" {
		return c.Table + "." + c.Name
	}
	return c.Name
}

// Node is an opaque wrapper around a backing-implementation AST node.
// Consumer code inspects Kind/Name/Alias/Children/SQLText; Raw holds the
// implementation-specific object for escape-hatch use inside the owning
// implementation package only — consumer code outside sqltoolkit must
// never type-assert Raw.
type Node struct {
	Kind     NodeKind
	Name     string
	Alias    string
	Children []Node
	SQLText  string
	Raw      any
}

// FindAll recursively finds all descendant nodes of the given kind
// (pre-order, not including n itself).
func (n Node) FindAll(kind NodeKind) []Node {
	var out []Node
	for _, c := range n.Children {
		if c.Kind == kind {
			out = append(out, c)
		}
		out = append(out, c.FindAll(kind)...)
	}
	return out
}

// Find returns the first descendant of kind (depth-first), or false.
func (n Node) Find(kind NodeKind) (Node, bool) {
	for _, c := range n.Children {
		if c.Kind == kind {
			return c, true
		}
		if found, ok := c.Find(kind); ok {
			return found, true
		}
	}
	return Node{}, false
}

// Walk returns a flat pre-order DFS list of n and all its descendants.
func (n Node) Walk() []Node {
	out := []Node{n}
	for _, c := range n.Children {
		out = append(out, c.Walk()...)
	}
	return out
}

// ParseResult is the result of parsing a SQL string.
type ParseResult struct {
	Statements []Node
	Dialect    Dialect
	Warnings   []string
}

// Single returns the single statement, or an error if there are zero or
// more than one.
func (p ParseResult) Single() (Node, error) {
	if len(p.Statements) != 1 {
		return Node{}, errWrongStatementCount
	}
	return p.Statements[0], nil
}

var errWrongStatementCount = errors.New("expected exactly 1 statement")

// ScopeResult is a scope-aware table extraction result. ReferencedTables
// excludes CTE names — the key property that makes this the correct
// source of dependency edges.
type ScopeResult struct {
	ReferencedTables []TableRef
	CTENames         []string
}

// ColumnExtractionResult is the output of extracting columns from SQL.
type ColumnExtractionResult struct {
	OutputColumns     []string
	ReferencedColumns []ColumnRef
	HasStar           bool
	HasAggregation    bool
	HasWindow         bool
}

// NormalizationResult is the result of SQL normalization.
type NormalizationResult struct {
	NormalizedSQL           string
	OriginalSQL             string
	AppliedRules            []string
	CanonicalizationVersion string
}

// TranspileResult is the result of transpiling SQL between dialects.
type TranspileResult struct {
	OutputSQL     string
	SourceDialect Dialect
	TargetDialect Dialect
	Warnings      []string
	FallbackUsed  bool
}

// DiffEditKind enumerates AST edit operation kinds.
type DiffEditKind string

const (
	DiffKeep   DiffEditKind = "keep"
	DiffInsert DiffEditKind = "insert"
	DiffRemove DiffEditKind = "remove"
	DiffUpdate DiffEditKind = "update"
	DiffMove   DiffEditKind = "move"
)

// DiffEdit is a single edit operation in an AST diff.
type DiffEdit struct {
	Kind      DiffEditKind
	SourceSQL string
	TargetSQL string
}

// AstDiffResult is the result of diffing two SQL ASTs.
type AstDiffResult struct {
	Edits          []DiffEdit
	IsIdentical    bool
	IsCosmeticOnly bool
}

// ViolationSeverity is the severity of a detected safety violation.
type ViolationSeverity string

const (
	SeverityError   ViolationSeverity = "error"
	SeverityWarning ViolationSeverity = "warning"
)

// SafetyViolation is a dangerous SQL operation detected by the safety guard.
type SafetyViolation struct {
	ViolationType string
	Target        string
	Detail        string
	Severity      ViolationSeverity
}

// SafetyCheckResult is the result of a SQL safety check.
type SafetyCheckResult struct {
	IsSafe            bool
	Violations        []SafetyViolation
	CheckedStatements int
}

// RewriteRule is a table-reference rewrite rule.
type RewriteRule struct {
	SourceCatalog string
	SourceSchema  string
	TargetCatalog string
	TargetSchema  string
}

// RewriteResult is the result of rewriting table references in SQL.
type RewriteResult struct {
	RewrittenSQL    string
	TablesRewritten []TableRef
	TablesUnchanged []TableRef
}

// ColumnLineageNode represents one hop in a column lineage trace: an
// output column derived from a source column, possibly through a
// transformation.
type ColumnLineageNode struct {
	Column        string
	SourceTable   string
	SourceColumn  string
	TransformType string // direct|expression|aggregation|window|case|literal
	TransformSQL  string
}

// ColumnLineageResult is the column lineage of a single SQL statement.
type ColumnLineageResult struct {
	ModelName         string
	ColumnLineage     map[string][]ColumnLineageNode
	UnresolvedColumns []string
	Dialect           Dialect
}

// CrossModelColumnLineage traces a single column across the model DAG back
// to its ultimate source tables/columns.
type CrossModelColumnLineage struct {
	TargetModel  string
	TargetColumn string
	LineagePath  []ColumnLineageNode
}

// Sentinel errors. Base is SqlToolkitError-equivalent via errors.Is chains.
var (
	ErrParse         = errors.New("sql toolkit: parse error")
	ErrTranspile     = errors.New("sql toolkit: transpile error")
	ErrNormalization = errors.New("sql toolkit: normalization error")
	ErrLineage       = errors.New("sql toolkit: lineage error")
)
