// SPDX-License-Identifier: AGPL-3.0-or-later

package pgquery

import (
	"fmt"

	pg_query "github.com/pganalyze/pg_query_go/v5"

	"ironlayer/pkg/sqltoolkit"
)

type renderer struct{}

func (renderer) Render(node sqltoolkit.Node, dialect sqltoolkit.Dialect, pretty bool, normalizeKeywords bool) (string, error) {
	stmt, ok := node.Raw.(*pg_query.Node)
	if !ok || stmt == nil {
		if node.SQLText != "" {
			return node.SQLText, nil
		}
		return "", fmt.Errorf("sql toolkit: node has no renderable raw statement")
	}
	return deparseOne(stmt)
}

func (renderer) RenderExpression(node sqltoolkit.Node, dialect sqltoolkit.Dialect) (string, error) {
	// libpg_query's Deparse only operates on complete statements, not bare
	// expression fragments, so a standalone expression is rendered by
	// wrapping it in "SELECT <expr>" and stripping the prefix back off.
	stmt, ok := node.Raw.(*pg_query.Node)
	if !ok || stmt == nil {
		if node.SQLText != "" {
			return node.SQLText, nil
		}
		return "", fmt.Errorf("sql toolkit: node has no renderable raw expression")
	}
	wrapped := &pg_query.SelectStmt{
		TargetList: []*pg_query.Node{
			{Node: &pg_query.Node_ResTarget{ResTarget: &pg_query.ResTarget{Val: stmt}}},
		},
	}
	full, err := deparseOne(&pg_query.Node{Node: &pg_query.Node_SelectStmt{SelectStmt: wrapped}})
	if err != nil {
		return "", err
	}
	const prefix = "SELECT "
	if len(full) > len(prefix) {
		return full[len(prefix):], nil
	}
	return full, nil
}

func deparseOne(stmt *pg_query.Node) (string, error) {
	tree := &pg_query.ParseResult{
		Stmts: []*pg_query.RawStmt{{Stmt: stmt}},
	}
	sql, err := pg_query.Deparse(tree)
	if err != nil {
		return "", fmt.Errorf("%w: %v", sqltoolkit.ErrParse, err)
	}
	return sql, nil
}
