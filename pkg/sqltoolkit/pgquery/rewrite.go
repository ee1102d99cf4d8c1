// SPDX-License-Identifier: AGPL-3.0-or-later

package pgquery

import (
	"fmt"
	"strings"

	pg_query "github.com/pganalyze/pg_query_go/v5"

	"ironlayer/pkg/sqltoolkit"
)

type rewriter struct{}

// RewriteTables mutates every RangeVar in the parsed tree whose
// catalog/schema matches a rule, replacing it with the rule's target, then
// re-deparses. Matching prefers the most specific rule: an exact
// catalog+schema match beats a schema-only match.
func (rewriter) RewriteTables(sql string, rules []sqltoolkit.RewriteRule, dialect sqltoolkit.Dialect) (sqltoolkit.RewriteResult, error) {
	tree, err := pg_query.Parse(sql)
	if err != nil {
		return sqltoolkit.RewriteResult{}, fmt.Errorf("%w: %v", sqltoolkit.ErrParse, err)
	}

	rewrittenSet := make(map[string]sqltoolkit.TableRef)
	unchangedSet := make(map[string]sqltoolkit.TableRef)

	for _, raw := range tree.Stmts {
		walk(raw.GetStmt(), func(n *pg_query.Node) {
			rv := n.GetRangeVar()
			if rv == nil {
				return
			}
			before := rangeVarTable(rv)
			rule, ok := matchRule(before, rules)
			if !ok {
				unchangedSet[before.FullyQualified()] = before
				return
			}
			if rule.TargetCatalog != "" {
				rv.Catalogname = rule.TargetCatalog
			}
			if rule.TargetSchema != "" {
				rv.Schemaname = rule.TargetSchema
			}
			rewrittenSet[before.FullyQualified()] = before
		})
	}

	sql2, err := pg_query.Deparse(tree)
	if err != nil {
		return sqltoolkit.RewriteResult{}, fmt.Errorf("%w: %v", sqltoolkit.ErrParse, err)
	}

	return sqltoolkit.RewriteResult{
		RewrittenSQL:    sql2,
		TablesRewritten: mapValues(rewrittenSet),
		TablesUnchanged: mapValues(unchangedSet),
	}, nil
}

func matchRule(ref sqltoolkit.TableRef, rules []sqltoolkit.RewriteRule) (sqltoolkit.RewriteRule, bool) {
	best, bestScore := sqltoolkit.RewriteRule{}, -1
	for _, r := range rules {
		if r.SourceCatalog != "" && r.SourceCatalog != ref.Catalog {
			continue
		}
		if r.SourceSchema != "" && r.SourceSchema != ref.Schema {
			continue
		}
		// catalog+schema (3) > schema-only (2) > catalog-only (1) > unqualified (0);
		// ties keep the earlier rule.
		score := 0
		if r.SourceSchema != "" {
			score += 2
		}
		if r.SourceCatalog != "" {
			score++
		}
		if score > bestScore {
			best, bestScore = r, score
		}
	}
	return best, bestScore >= 0
}

func mapValues(m map[string]sqltoolkit.TableRef) []sqltoolkit.TableRef {
	out := make([]sqltoolkit.TableRef, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}

// reservedWords covers the common SQL keywords that force identifier
// quoting; dialect-specific reserved word lists are larger, but quoting
// unnecessarily is harmless while failing to quote a true keyword is not.
var reservedWords = map[string]struct{}{
	"select": {}, "from": {}, "where": {}, "table": {}, "order": {},
	"group": {}, "user": {}, "column": {}, "index": {}, "primary": {},
}

func (rewriter) QuoteIdentifier(name string, dialect sqltoolkit.Dialect) string {
	needsQuote := name == "" || strings.ToLower(name) != name
	if _, reserved := reservedWords[strings.ToLower(name)]; reserved {
		needsQuote = true
	}
	for _, r := range name {
		if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')) {
			needsQuote = true
			break
		}
	}
	if !needsQuote {
		return name
	}
	switch dialect {
	case sqltoolkit.DialectDatabricks:
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	default:
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
}
