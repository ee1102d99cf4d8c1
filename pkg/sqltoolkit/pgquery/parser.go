// SPDX-License-Identifier: AGPL-3.0-or-later

package pgquery

import (
	"fmt"

	pg_query "github.com/pganalyze/pg_query_go/v5"

	"ironlayer/pkg/sqltoolkit"
)

type parser struct{}

func (parser) ParseOne(sql string, dialect sqltoolkit.Dialect, raiseOnError bool) (sqltoolkit.ParseResult, error) {
	result, err := ParseMultiRaw(sql)
	if err != nil {
		if raiseOnError {
			return sqltoolkit.ParseResult{}, fmt.Errorf("%w: %v", sqltoolkit.ErrParse, err)
		}
		return sqltoolkit.ParseResult{Dialect: dialect, Warnings: []string{err.Error()}}, nil
	}
	if len(result.Stmts) != 1 {
		if raiseOnError {
			return sqltoolkit.ParseResult{}, fmt.Errorf("%w: expected exactly 1 statement, got %d", sqltoolkit.ErrParse, len(result.Stmts))
		}
		return sqltoolkit.ParseResult{Dialect: dialect, Warnings: []string{
			fmt.Sprintf("expected exactly 1 statement, got %d", len(result.Stmts)),
		}}, nil
	}
	nodes, err := toNodes(result, sql)
	if err != nil {
		if raiseOnError {
			return sqltoolkit.ParseResult{}, fmt.Errorf("%w: %v", sqltoolkit.ErrParse, err)
		}
		return sqltoolkit.ParseResult{Dialect: dialect, Warnings: []string{err.Error()}}, nil
	}
	return sqltoolkit.ParseResult{Statements: nodes, Dialect: dialect}, nil
}

func (parser) ParseMulti(sql string, dialect sqltoolkit.Dialect) (sqltoolkit.ParseResult, error) {
	result, err := ParseMultiRaw(sql)
	if err != nil {
		return sqltoolkit.ParseResult{}, fmt.Errorf("%w: %v", sqltoolkit.ErrParse, err)
	}
	nodes, err := toNodes(result, sql)
	if err != nil {
		return sqltoolkit.ParseResult{}, fmt.Errorf("%w: %v", sqltoolkit.ErrParse, err)
	}
	return sqltoolkit.ParseResult{Statements: nodes, Dialect: dialect}, nil
}

// ParseMultiRaw is exported within the package for reuse by other
// capability implementations (normalize, diff, safety) that need the raw
// protobuf tree rather than the converted Node form.
func ParseMultiRaw(sql string) (*pg_query.ParseResult, error) {
	return pg_query.Parse(sql)
}

func toNodes(result *pg_query.ParseResult, originalSQL string) ([]sqltoolkit.Node, error) {
	nodes := make([]sqltoolkit.Node, 0, len(result.Stmts))
	for _, raw := range result.Stmts {
		stmt := raw.GetStmt()
		if stmt == nil {
			continue
		}
		node, err := statementToNode(stmt)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// statementToNode converts a single top-level statement node into a
// sqltoolkit.Node, populating Children with the table and CTE references
// it directly contains. Deep expression-level conversion is done lazily by
// the scope/lineage extractors walking Raw instead of duplicating the
// whole tree here.
func statementToNode(stmt *pg_query.Node) (sqltoolkit.Node, error) {
	kind := classifyNode(stmt)
	node := sqltoolkit.Node{
		Kind: kind,
		Raw:  stmt,
	}

	var children []sqltoolkit.Node
	walk(stmt, func(n *pg_query.Node) {
		if rv := n.GetRangeVar(); rv != nil {
			table := rangeVarTable(rv)
			children = append(children, sqltoolkit.Node{
				Kind:  sqltoolkit.NodeTable,
				Name:  table.Name,
				Alias: aliasName(rv.GetAlias()),
				Raw:   rv,
			})
		}
		if cte := n.GetCommonTableExpr(); cte != nil {
			children = append(children, sqltoolkit.Node{
				Kind: sqltoolkit.NodeCTE,
				Name: cte.GetCtename(),
				Raw:  cte,
			})
		}
	})
	node.Children = children
	return node, nil
}

func aliasName(a *pg_query.Alias) string {
	if a == nil {
		return ""
	}
	return a.GetAliasname()
}
