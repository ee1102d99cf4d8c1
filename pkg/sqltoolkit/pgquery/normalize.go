// SPDX-License-Identifier: AGPL-3.0-or-later

package pgquery

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v5"

	"ironlayer/pkg/sqltoolkit"
)

const defaultCanonicalizationVersion = "v1"

var (
	lineCommentRE  = regexp.MustCompile(`--[^\n]*`)
	blockCommentRE = regexp.MustCompile(`(?s)/\*.*?\*/`)
)

type normalizer struct{}

// Normalize strips comments, reparses, reorders CTEs alphabetically when no
// CTE references another, and re-deparses with consistent keyword casing.
// The result is the canonical form used for content-hashing a model's SQL.
func (normalizer) Normalize(sql string, dialect sqltoolkit.Dialect, canonicalizationVersion string) (sqltoolkit.NormalizationResult, error) {
	if canonicalizationVersion == "" {
		canonicalizationVersion = defaultCanonicalizationVersion
	}

	stripped := lineCommentRE.ReplaceAllString(sql, "")
	stripped = blockCommentRE.ReplaceAllString(stripped, "")
	stripped = strings.TrimSpace(stripped)

	tree, err := pg_query.Parse(stripped)
	if err != nil {
		return sqltoolkit.NormalizationResult{}, fmt.Errorf("%w: %v", sqltoolkit.ErrNormalization, err)
	}

	applied := []string{"strip_comments"}
	if reorderCTEs(tree) {
		applied = append(applied, "reorder_ctes")
	}

	normalized, err := pg_query.Deparse(tree)
	if err != nil {
		return sqltoolkit.NormalizationResult{}, fmt.Errorf("%w: %v", sqltoolkit.ErrNormalization, err)
	}
	applied = append(applied, "canonical_deparse")

	return sqltoolkit.NormalizationResult{
		NormalizedSQL:           normalized,
		OriginalSQL:             sql,
		AppliedRules:            applied,
		CanonicalizationVersion: canonicalizationVersion,
	}, nil
}

// reorderCTEs sorts each statement's CTE list alphabetically by name,
// unless any CTE's query references another CTE name, in which case
// reordering could change evaluation order or break a forward reference;
// it returns whether any statement was actually reordered.
func reorderCTEs(tree *pg_query.ParseResult) bool {
	changed := false
	for _, raw := range tree.Stmts {
		stmt := raw.GetStmt()
		sel := stmt.GetSelectStmt()
		if sel == nil || sel.GetWithClause() == nil {
			continue
		}
		ctes := sel.GetWithClause().GetCtes()
		if len(ctes) < 2 {
			continue
		}

		names := make(map[string]struct{}, len(ctes))
		for _, c := range ctes {
			names[c.GetCommonTableExpr().GetCtename()] = struct{}{}
		}

		hasForwardRef := false
		for i, c := range ctes {
			cteName := c.GetCommonTableExpr().GetCtename()
			walk(c.GetCommonTableExpr().GetCtequery(), func(n *pg_query.Node) {
				if rv := n.GetRangeVar(); rv != nil {
					if _, ok := names[rv.GetRelname()]; ok && rv.GetRelname() != cteName {
						hasForwardRef = true
					}
				}
			})
			_ = i
		}
		if hasForwardRef {
			continue
		}

		sort.SliceStable(ctes, func(i, j int) bool {
			return ctes[i].GetCommonTableExpr().GetCtename() < ctes[j].GetCommonTableExpr().GetCtename()
		})
		changed = true
	}
	return changed
}
