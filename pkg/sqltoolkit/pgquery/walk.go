// SPDX-License-Identifier: AGPL-3.0-or-later

package pgquery

import (
	"reflect"

	pg_query "github.com/pganalyze/pg_query_go/v5"

	"ironlayer/pkg/sqltoolkit"
)

// pg_query_go exposes its parse tree as generated protobuf structs with no
// built-in visitor. walk performs a generic depth-first traversal over any
// value reachable from root, invoking visit for every *pg_query.Node it
// finds. This is the single place in the package that reasons about the
// tree's shape generically; every extractor below builds on it instead of
// hand-rolling per-statement field access.
func walk(root any, visit func(*pg_query.Node)) {
	seen := make(map[uintptr]struct{})
	walkValue(reflect.ValueOf(root), visit, seen)
}

func walkValue(rv reflect.Value, visit func(*pg_query.Node), seen map[uintptr]struct{}) {
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return
		}
		ptr := rv.Pointer()
		if _, ok := seen[ptr]; ok {
			return
		}
		seen[ptr] = struct{}{}

		if n, ok := rv.Interface().(*pg_query.Node); ok {
			visit(n)
		}
		walkValue(rv.Elem(), visit, seen)

	case reflect.Interface:
		if rv.IsNil() {
			return
		}
		walkValue(rv.Elem(), visit, seen)

	case reflect.Struct:
		for i := 0; i < rv.NumField(); i++ {
			f := rv.Field(i)
			if !f.CanInterface() {
				continue
			}
			walkValue(f, visit, seen)
		}

	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			walkValue(rv.Index(i), visit, seen)
		}
	}
}

// classifyNode maps a parsed node to the dialect-agnostic NodeKind the rest
// of the module reasons about. Uses pg_query_go's generated nil-safe
// Get* accessors rather than a type switch on the raw oneof, which is the
// idiomatic way this library is consumed.
func classifyNode(n *pg_query.Node) sqltoolkit.NodeKind {
	switch {
	case n.GetSelectStmt() != nil:
		return sqltoolkit.NodeSelect
	case n.GetInsertStmt() != nil:
		return sqltoolkit.NodeInsert
	case n.GetUpdateStmt() != nil:
		return sqltoolkit.NodeUpdate
	case n.GetDeleteStmt() != nil:
		return sqltoolkit.NodeDelete
	case n.GetCreateStmt() != nil, n.GetCreateTableAsStmt() != nil:
		return sqltoolkit.NodeCreate
	case n.GetDropStmt() != nil:
		return sqltoolkit.NodeDrop
	case n.GetAlterTableStmt() != nil:
		return sqltoolkit.NodeAlter
	case n.GetTruncateStmt() != nil:
		return sqltoolkit.NodeTruncate
	case n.GetMergeStmt() != nil:
		return sqltoolkit.NodeMerge
	case n.GetGrantStmt() != nil:
		if !n.GetGrantStmt().GetIsGrant() {
			return sqltoolkit.NodeRevoke
		}
		return sqltoolkit.NodeGrant
	default:
		return sqltoolkit.NodeCommand
	}
}

// stringValue extracts a String_ leaf's value, used for ColumnRef.Fields
// and similar identifier lists.
func stringValue(n *pg_query.Node) (string, bool) {
	if s := n.GetString_(); s != nil {
		return s.GetSval(), true
	}
	return "", false
}

// rangeVarTable converts a RangeVar into a TableRef.
func rangeVarTable(rv *pg_query.RangeVar) sqltoolkit.TableRef {
	return sqltoolkit.TableRef{
		Catalog: rv.GetCatalogname(),
		Schema:  rv.GetSchemaname(),
		Name:    rv.GetRelname(),
	}
}
