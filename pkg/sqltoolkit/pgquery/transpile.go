// SPDX-License-Identifier: AGPL-3.0-or-later

package pgquery

import (
	pg_query "github.com/pganalyze/pg_query_go/v5"

	"ironlayer/pkg/sqltoolkit"
)

type transpiler struct{}

// Transpile re-deparses sql through the parsed tree. libpg_query does not
// carry a dialect argument through parse/deparse the way a multi-dialect
// transpiler would, so true cross-dialect rewriting (e.g. Databricks
// QUALIFY clauses, DuckDB's list comprehensions) is out of reach here: when
// source and target dialect differ, the re-deparsed statement is returned
// in its source dialect with FallbackUsed=true and a warning, which is the
// honest signal a caller needs rather than a silently wrong rewrite.
func (transpiler) Transpile(sql string, sourceDialect, targetDialect sqltoolkit.Dialect, pretty bool) (sqltoolkit.TranspileResult, error) {
	tree, err := pg_query.Parse(sql)
	if err != nil {
		return sqltoolkit.TranspileResult{
			OutputSQL:     sql,
			SourceDialect: sourceDialect,
			TargetDialect: targetDialect,
			Warnings:      []string{err.Error()},
			FallbackUsed:  true,
		}, nil
	}

	out, err := pg_query.Deparse(tree)
	if err != nil {
		return sqltoolkit.TranspileResult{
			OutputSQL:     sql,
			SourceDialect: sourceDialect,
			TargetDialect: targetDialect,
			Warnings:      []string{err.Error()},
			FallbackUsed:  true,
		}, nil
	}

	if sourceDialect == targetDialect {
		return sqltoolkit.TranspileResult{
			OutputSQL:     out,
			SourceDialect: sourceDialect,
			TargetDialect: targetDialect,
		}, nil
	}

	return sqltoolkit.TranspileResult{
		OutputSQL:     out,
		SourceDialect: sourceDialect,
		TargetDialect: targetDialect,
		Warnings:      []string{"cross-dialect transpilation is not supported by the parsing backend; statement re-deparsed in its original dialect"},
		FallbackUsed:  true,
	}, nil
}
