// SPDX-License-Identifier: AGPL-3.0-or-later

package pgquery

import (
	"fmt"
	"sort"

	pg_query "github.com/pganalyze/pg_query_go/v5"

	"ironlayer/pkg/sqltoolkit"
)

type scopeAnalyzer struct{}

// aggFuncNames mirrors the sum of PostgreSQL's built-in aggregate function
// names this module cares about for HasAggregation detection. pg_query_go
// represents every function call uniformly as FuncCall, so aggregate-ness
// is not a distinct node kind the way it is in some ASTs — it is
// recognized by name and by the presence of an AggStar/AggDistinct/Over
// marker.
var aggFuncNames = map[string]struct{}{
	"sum": {}, "count": {}, "avg": {}, "min": {}, "max": {},
	"array_agg": {}, "string_agg": {}, "percentile_cont": {}, "percentile_disc": {},
	"stddev": {}, "stddev_pop": {}, "stddev_samp": {}, "variance": {},
	"bool_and": {}, "bool_or": {}, "every": {},
}

func (scopeAnalyzer) ExtractTables(sql string, dialect sqltoolkit.Dialect) (sqltoolkit.ScopeResult, error) {
	result, err := ParseMultiRaw(sql)
	if err != nil {
		return sqltoolkit.ScopeResult{}, fmt.Errorf("%w: %v", sqltoolkit.ErrParse, err)
	}

	cteNames := make(map[string]struct{})
	var ctes []string
	for _, raw := range result.Stmts {
		walk(raw.GetStmt(), func(n *pg_query.Node) {
			if cte := n.GetCommonTableExpr(); cte != nil {
				name := cte.GetCtename()
				if _, ok := cteNames[name]; !ok {
					cteNames[name] = struct{}{}
					ctes = append(ctes, name)
				}
			}
		})
	}

	tableSet := make(map[string]sqltoolkit.TableRef)
	for _, raw := range result.Stmts {
		walk(raw.GetStmt(), func(n *pg_query.Node) {
			rv := n.GetRangeVar()
			if rv == nil {
				return
			}
			if _, isCTE := cteNames[rv.GetRelname()]; isCTE {
				return
			}
			ref := rangeVarTable(rv)
			tableSet[ref.FullyQualified()] = ref
		})
	}

	tables := make([]sqltoolkit.TableRef, 0, len(tableSet))
	for _, ref := range tableSet {
		tables = append(tables, ref)
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].FullyQualified() < tables[j].FullyQualified() })
	sort.Strings(ctes)

	return sqltoolkit.ScopeResult{ReferencedTables: tables, CTENames: ctes}, nil
}

func (scopeAnalyzer) ExtractColumns(sql string, dialect sqltoolkit.Dialect) (sqltoolkit.ColumnExtractionResult, error) {
	result, err := ParseMultiRaw(sql)
	if err != nil {
		return sqltoolkit.ColumnExtractionResult{}, fmt.Errorf("%w: %v", sqltoolkit.ErrParse, err)
	}
	if len(result.Stmts) == 0 {
		return sqltoolkit.ColumnExtractionResult{}, fmt.Errorf("%w: no statements found", sqltoolkit.ErrParse)
	}

	out := sqltoolkit.ColumnExtractionResult{}
	columnSet := make(map[string]sqltoolkit.ColumnRef)

	for _, raw := range result.Stmts {
		stmt := raw.GetStmt()
		sel := stmt.GetSelectStmt()
		if sel == nil {
			continue
		}
		for _, target := range sel.GetTargetList() {
			resTarget := target.GetResTarget()
			if resTarget == nil {
				continue
			}
			val := resTarget.GetVal()
			if val.GetColumnRef() != nil {
				if isStarRef(val.GetColumnRef()) {
					out.HasStar = true
					out.OutputColumns = append(out.OutputColumns, "*")
					continue
				}
			}
			name := resTarget.GetName()
			if name == "" {
				name = inferColumnName(val)
			}
			out.OutputColumns = append(out.OutputColumns, name)
		}

		walk(stmt, func(n *pg_query.Node) {
			if cr := n.GetColumnRef(); cr != nil && !isStarRef(cr) {
				ref := columnRefToRef(cr)
				columnSet[ref.String()] = ref
			}
			if fc := n.GetFuncCall(); fc != nil {
				fname := lastFuncNamePart(fc)
				if _, ok := aggFuncNames[fname]; ok {
					out.HasAggregation = true
				}
				if fc.GetOver() != nil {
					out.HasWindow = true
				}
			}
		})
	}

	refs := make([]sqltoolkit.ColumnRef, 0, len(columnSet))
	for _, ref := range columnSet {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].String() < refs[j].String() })
	out.ReferencedColumns = refs

	return out, nil
}

func isStarRef(cr *pg_query.ColumnRef) bool {
	fields := cr.GetFields()
	if len(fields) == 0 {
		return false
	}
	last := fields[len(fields)-1]
	return last.GetAStar() != nil
}

func columnRefToRef(cr *pg_query.ColumnRef) sqltoolkit.ColumnRef {
	var parts []string
	for _, f := range cr.GetFields() {
		if s, ok := stringValue(f); ok {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return sqltoolkit.ColumnRef{}
	}
	if len(parts) == 1 {
		return sqltoolkit.ColumnRef{Name: parts[0]}
	}
	return sqltoolkit.ColumnRef{Table: parts[len(parts)-2], Name: parts[len(parts)-1]}
}

func inferColumnName(val *pg_query.Node) string {
	if cr := val.GetColumnRef(); cr != nil {
		return columnRefToRef(cr).Name
	}
	if fc := val.GetFuncCall(); fc != nil {
		return lastFuncNamePart(fc)
	}
	return ""
}

func lastFuncNamePart(fc *pg_query.FuncCall) string {
	names := fc.GetFuncname()
	if len(names) == 0 {
		return ""
	}
	if s, ok := stringValue(names[len(names)-1]); ok {
		return s
	}
	return ""
}
