// SPDX-License-Identifier: AGPL-3.0-or-later

package pgquery

import (
	"fmt"

	pg_query "github.com/pganalyze/pg_query_go/v5"

	"ironlayer/pkg/sqltoolkit"
)

type lineageAnalyzer struct{}

// ColumnLineage traces each top-level output column of a SELECT to its
// source column(s). Direct column references resolve immediately;
// expressions, aggregates, and window functions are traced one level
// (reporting the columns feeding them, tagged by transform kind) rather
// than recursively evaluated, matching the depth ExtractColumns already
// supports. A bare '*' cannot be expanded without a schema, so it is
// recorded as unresolved rather than guessed at.
func (lineageAnalyzer) ColumnLineage(modelName, sql string, dialect sqltoolkit.Dialect, schema map[string][]string) (sqltoolkit.ColumnLineageResult, error) {
	tree, err := pg_query.Parse(sql)
	if err != nil {
		return sqltoolkit.ColumnLineageResult{}, fmt.Errorf("%w: %v", sqltoolkit.ErrLineage, err)
	}
	if len(tree.Stmts) != 1 {
		return sqltoolkit.ColumnLineageResult{}, fmt.Errorf("%w: column lineage requires exactly 1 statement, got %d", sqltoolkit.ErrLineage, len(tree.Stmts))
	}
	sel := tree.Stmts[0].GetStmt().GetSelectStmt()
	if sel == nil {
		return sqltoolkit.ColumnLineageResult{}, fmt.Errorf("%w: column lineage only applies to SELECT statements", sqltoolkit.ErrLineage)
	}

	sourceTable := ""
	for _, f := range sel.GetFromClause() {
		if rv := f.GetRangeVar(); rv != nil {
			sourceTable = rv.GetRelname()
			break
		}
	}

	result := sqltoolkit.ColumnLineageResult{
		ModelName:     modelName,
		ColumnLineage: make(map[string][]sqltoolkit.ColumnLineageNode),
		Dialect:       dialect,
	}

	for _, target := range sel.GetTargetList() {
		rt := target.GetResTarget()
		if rt == nil {
			continue
		}
		val := rt.GetVal()
		outputName := rt.GetName()
		if outputName == "" {
			outputName = inferColumnName(val)
		}

		switch {
		case val.GetColumnRef() != nil && isStarRef(val.GetColumnRef()):
			if schema == nil {
				result.UnresolvedColumns = append(result.UnresolvedColumns, "*")
				continue
			}
			for _, col := range schema[sourceTable] {
				result.ColumnLineage[col] = []sqltoolkit.ColumnLineageNode{{
					Column: col, SourceTable: sourceTable, SourceColumn: col, TransformType: "direct",
				}}
			}

		case val.GetColumnRef() != nil:
			ref := columnRefToRef(val.GetColumnRef())
			table := ref.Table
			if table == "" {
				table = sourceTable
			}
			if outputName == "" {
				outputName = ref.Name
			}
			result.ColumnLineage[outputName] = []sqltoolkit.ColumnLineageNode{{
				Column: outputName, SourceTable: table, SourceColumn: ref.Name, TransformType: "direct",
			}}

		default:
			if outputName == "" {
				result.UnresolvedColumns = append(result.UnresolvedColumns, "<expr>")
				continue
			}
			nodes := directColumnSources(val, sourceTable)
			transformType := "expression"
			if fc := val.GetFuncCall(); fc != nil {
				if _, agg := aggFuncNames[lastFuncNamePart(fc)]; agg {
					transformType = "aggregation"
				}
				if fc.GetOver() != nil {
					transformType = "window"
				}
			}
			if len(nodes) == 0 {
				result.ColumnLineage[outputName] = []sqltoolkit.ColumnLineageNode{{
					Column: outputName, TransformType: "literal",
				}}
				continue
			}
			for i := range nodes {
				nodes[i].Column = outputName
				nodes[i].TransformType = transformType
			}
			result.ColumnLineage[outputName] = nodes
		}
	}

	return result, nil
}

// directColumnSources finds every ColumnRef reachable from an expression
// node, used to attribute an expression/aggregate/window column to its
// underlying source columns.
func directColumnSources(n *pg_query.Node, defaultTable string) []sqltoolkit.ColumnLineageNode {
	var nodes []sqltoolkit.ColumnLineageNode
	seen := make(map[string]struct{})
	walk(n, func(inner *pg_query.Node) {
		cr := inner.GetColumnRef()
		if cr == nil || isStarRef(cr) {
			return
		}
		ref := columnRefToRef(cr)
		table := ref.Table
		if table == "" {
			table = defaultTable
		}
		key := table + "." + ref.Name
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		nodes = append(nodes, sqltoolkit.ColumnLineageNode{SourceTable: table, SourceColumn: ref.Name})
	})
	return nodes
}
