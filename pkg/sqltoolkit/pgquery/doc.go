// SPDX-License-Identifier: AGPL-3.0-or-later

// Package pgquery is the sole implementation of sqltoolkit.Toolkit in this
// module, backed by github.com/pganalyze/pg_query_go/v5 (a Go binding over
// PostgreSQL's own parser, libpg_query). No file outside this package
// imports pg_query_go directly — every other package that needs SQL
// analysis goes through sqltoolkit's protocol interfaces and the
// process-wide registry.
//
// pg_query_go parses PostgreSQL grammar. Of the three dialects this module
// targets, Redshift's SQL surface is close enough to Postgres that parsing
// is reliable; Databricks and DuckDB diverge more (backtick identifiers,
// QUALIFY, Spark-specific functions), so parsing those dialects is
// best-effort and ParseOne/ParseMulti may surface warnings a stricter,
// dialect-native parser would not. This tradeoff is recorded in DESIGN.md:
// no dialect-aware SQL parser ships in the example corpus, and pg_query_go
// is the closest real, actively maintained library available.
package pgquery

import "ironlayer/pkg/sqltoolkit"

func init() {
	sqltoolkit.RegisterImplementation(NewToolkit)
}

type toolkit struct {
	parser  parser
	render  renderer
	scope   scopeAnalyzer
	trans   transpiler
	norm    normalizer
	diff    differ
	safety  safetyGuard
	rewrite rewriter
	lineage lineageAnalyzer
}

// NewToolkit constructs the pg_query_go-backed sqltoolkit.Toolkit. Consumer
// code never calls this directly — it is installed as the registry's
// factory by this package's init().
func NewToolkit() sqltoolkit.Toolkit {
	return &toolkit{}
}

func (t *toolkit) Parser() sqltoolkit.Parser               { return t.parser }
func (t *toolkit) Renderer() sqltoolkit.Renderer           { return t.render }
func (t *toolkit) ScopeAnalyzer() sqltoolkit.ScopeAnalyzer { return t.scope }
func (t *toolkit) Transpiler() sqltoolkit.Transpiler       { return t.trans }
func (t *toolkit) Normalizer() sqltoolkit.Normalizer       { return t.norm }
func (t *toolkit) Differ() sqltoolkit.Differ               { return t.diff }
func (t *toolkit) SafetyGuard() sqltoolkit.SafetyGuard     { return t.safety }
func (t *toolkit) Rewriter() sqltoolkit.Rewriter           { return t.rewrite }
func (t *toolkit) Lineage() sqltoolkit.LineageAnalyzer     { return t.lineage }
