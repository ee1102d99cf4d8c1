// SPDX-License-Identifier: AGPL-3.0-or-later

package pgquery

import (
	"fmt"
	"regexp"

	pg_query "github.com/pganalyze/pg_query_go/v5"

	"ironlayer/pkg/sqltoolkit"
)

type safetyGuard struct{}

// Check walks the parsed AST looking for destructive operations: DROP,
// TRUNCATE, DELETE/UPDATE without a WHERE clause, privilege changes
// (GRANT/REVOKE, role creation), ALTER ... DROP COLUMN, and raw
// EXEC/EXECUTE. Every check on a parsed statement is a structural test on
// the parsed tree, except one: a parsed INSERT also has its own statement
// text scanned for OVERWRITE without PARTITION, since the tree has no node
// for that clause. The other exception is commandFallbackScan, the parser
// escape hatch below: pg_query_go implements only Postgres grammar, so a
// dialect-specific statement (e.g. Databricks' INSERT OVERWRITE, which has
// no Postgres equivalent) fails to parse at all, and the only remaining
// signal is the raw statement text. Unparsable SQL the scan finds nothing
// in returns ErrParse, unless it is an INSERT OVERWRITE statement, which
// is reported as checked.
func (safetyGuard) Check(sql string, dialect sqltoolkit.Dialect, allowCreate, allowInsert bool) (sqltoolkit.SafetyCheckResult, error) {
	tree, err := pg_query.Parse(sql)
	if err != nil {
		insertOverwrite := regexp.MustCompile(`(?i)^\s*INSERT\s+OVERWRITE\b`).MatchString(sql)
		if violations := commandFallbackScan(sql, allowInsert); len(violations) > 0 || insertOverwrite {
			return sqltoolkit.SafetyCheckResult{
				IsSafe:            !anyErrorSeverity(violations),
				Violations:        violations,
				CheckedStatements: 1,
			}, nil
		}
		return sqltoolkit.SafetyCheckResult{}, fmt.Errorf("%w: %v", sqltoolkit.ErrParse, err)
	}

	var violations []sqltoolkit.SafetyViolation
	for _, raw := range tree.Stmts {
		stmt := raw.GetStmt()

		if d := stmt.GetDropStmt(); d != nil {
			violations = append(violations, sqltoolkit.SafetyViolation{
				ViolationType: "drop",
				Target:        dropTargets(d),
				Detail:        "DROP statement removes objects irreversibly",
				Severity:      sqltoolkit.SeverityError,
			})
		}

		if t := stmt.GetTruncateStmt(); t != nil {
			violations = append(violations, sqltoolkit.SafetyViolation{
				ViolationType: "truncate",
				Target:        truncateTargets(t),
				Detail:        "TRUNCATE removes all rows and cannot be scoped with a WHERE clause",
				Severity:      sqltoolkit.SeverityError,
			})
		}

		if del := stmt.GetDeleteStmt(); del != nil && del.GetWhereClause() == nil {
			violations = append(violations, sqltoolkit.SafetyViolation{
				ViolationType: "unscoped_delete",
				Target:        del.GetRelation().GetRelname(),
				Detail:        "DELETE without a WHERE clause removes every row in the table",
				Severity:      sqltoolkit.SeverityError,
			})
		}

		if upd := stmt.GetUpdateStmt(); upd != nil && upd.GetWhereClause() == nil {
			violations = append(violations, sqltoolkit.SafetyViolation{
				ViolationType: "unscoped_update",
				Target:        upd.GetRelation().GetRelname(),
				Detail:        "UPDATE without a WHERE clause modifies every row in the table",
				Severity:      sqltoolkit.SeverityWarning,
			})
		}

		if g := stmt.GetGrantStmt(); g != nil {
			violationType := "grant"
			if !g.GetIsGrant() {
				violationType = "revoke"
			}
			violations = append(violations, sqltoolkit.SafetyViolation{
				ViolationType: violationType,
				Target:        "",
				Detail:        "privilege changes are not permitted in model SQL",
				Severity:      sqltoolkit.SeverityError,
			})
		}

		if alter := stmt.GetAlterTableStmt(); alter != nil {
			for _, cmdNode := range alter.GetCmds() {
				cmd := cmdNode.GetAlterTableCmd()
				if cmd == nil || cmd.GetSubtype() != pg_query.AlterTableType_AT_DropColumn {
					continue
				}
				violations = append(violations, sqltoolkit.SafetyViolation{
					ViolationType: "alter_drop_column",
					Target:        fmt.Sprintf("%s.%s", alter.GetRelation().GetRelname(), cmd.GetName()),
					Detail:        "ALTER TABLE ... DROP COLUMN removes data irreversibly",
					Severity:      sqltoolkit.SeverityError,
				})
			}
		}

		if stmt.GetExecuteStmt() != nil {
			violations = append(violations, sqltoolkit.SafetyViolation{
				ViolationType: "exec",
				Detail:        "raw EXEC/EXECUTE is not permitted in model SQL",
				Severity:      sqltoolkit.SeverityError,
			})
		}

		if stmt.GetCreateRoleStmt() != nil || stmt.GetAlterRoleStmt() != nil {
			violations = append(violations, sqltoolkit.SafetyViolation{
				ViolationType: "role_change",
				Detail:        "role/user management is not permitted in model SQL",
				Severity:      sqltoolkit.SeverityError,
			})
		}

		if c := stmt.GetCreateStmt(); c != nil && !allowCreate {
			violations = append(violations, sqltoolkit.SafetyViolation{
				ViolationType: "create",
				Target:        c.GetRelation().GetRelname(),
				Detail:        "CREATE statements are disallowed in this context",
				Severity:      sqltoolkit.SeverityWarning,
			})
		}

		if ins := stmt.GetInsertStmt(); ins != nil {
			if !allowInsert {
				violations = append(violations, sqltoolkit.SafetyViolation{
					ViolationType: "insert",
					Target:        ins.GetRelation().GetRelname(),
					Detail:        "INSERT statements are disallowed in this context",
					Severity:      sqltoolkit.SeverityWarning,
				})
			}
			if span := statementSpan(sql, raw); overwriteKeyword.MatchString(span) && !partitionKeyword.MatchString(span) {
				violations = append(violations, sqltoolkit.SafetyViolation{
					ViolationType: "insert_overwrite_without_partition",
					Target:        ins.GetRelation().GetRelname(),
					Detail:        "INSERT OVERWRITE without a PARTITION clause replaces the entire table",
					Severity:      sqltoolkit.SeverityWarning,
				})
			}
		}
	}

	return sqltoolkit.SafetyCheckResult{
		IsSafe:            !anyErrorSeverity(violations),
		Violations:        violations,
		CheckedStatements: len(tree.Stmts),
	}, nil
}

func anyErrorSeverity(violations []sqltoolkit.SafetyViolation) bool {
	for _, v := range violations {
		if v.Severity == sqltoolkit.SeverityError {
			return true
		}
	}
	return false
}

// statementSpan extracts the raw source text a RawStmt covers, using the
// parser's own statement boundaries rather than re-splitting on semicolons
// (which would break on semicolons inside string literals).
func statementSpan(sql string, raw *pg_query.RawStmt) string {
	start := int(raw.GetStmtLocation())
	length := int(raw.GetStmtLen())
	if start < 0 || start > len(sql) {
		return sql
	}
	end := start + length
	if length <= 0 || end > len(sql) {
		end = len(sql)
	}
	return sql[start:end]
}

var (
	overwriteKeyword = regexp.MustCompile(`(?i)\bOVERWRITE\b`)
	partitionKeyword = regexp.MustCompile(`(?i)\bPARTITION\b`)
	execKeyword      = regexp.MustCompile(`(?i)\bEXEC(UTE)?\b`)
	dropKeyword      = regexp.MustCompile(`(?i)\bDROP\s+(TABLE|VIEW|SCHEMA|COLUMN)\b`)
	truncateKeyword  = regexp.MustCompile(`(?i)\bTRUNCATE\b`)
	grantKeyword     = regexp.MustCompile(`(?i)\bGRANT\b`)
	revokeKeyword    = regexp.MustCompile(`(?i)\bREVOKE\b`)
	createUserRegexp = regexp.MustCompile(`(?i)\bCREATE\s+USER\b`)
	deleteKeyword    = regexp.MustCompile(`(?i)\bDELETE\s+FROM\b`)
	whereKeyword     = regexp.MustCompile(`(?i)\bWHERE\b`)
	insertKeyword    = regexp.MustCompile(`(?i)\bINSERT\s+INTO\b`)
)

// commandFallbackScan is the parser escape hatch spec.md §4.A calls for:
// when the statement cannot be parsed as a known structural node at all
// (typically a dialect-specific construct outside Postgres grammar), scan
// its raw text for the same dangerous-keyword set the structural checks
// look for. Only reached when pg_query.Parse rejects the SQL outright.
func commandFallbackScan(sql string, allowInsert bool) []sqltoolkit.SafetyViolation {
	var violations []sqltoolkit.SafetyViolation

	switch {
	case dropKeyword.MatchString(sql):
		violations = append(violations, sqltoolkit.SafetyViolation{
			ViolationType: "drop", Detail: "DROP statement removes objects irreversibly", Severity: sqltoolkit.SeverityError,
		})
	case truncateKeyword.MatchString(sql):
		violations = append(violations, sqltoolkit.SafetyViolation{
			ViolationType: "truncate", Detail: "TRUNCATE removes all rows and cannot be scoped with a WHERE clause", Severity: sqltoolkit.SeverityError,
		})
	}

	if grantKeyword.MatchString(sql) || revokeKeyword.MatchString(sql) {
		violationType := "grant"
		if revokeKeyword.MatchString(sql) {
			violationType = "revoke"
		}
		violations = append(violations, sqltoolkit.SafetyViolation{
			ViolationType: violationType, Detail: "privilege changes are not permitted in model SQL", Severity: sqltoolkit.SeverityError,
		})
	}

	if createUserRegexp.MatchString(sql) {
		violations = append(violations, sqltoolkit.SafetyViolation{
			ViolationType: "role_change", Detail: "role/user management is not permitted in model SQL", Severity: sqltoolkit.SeverityError,
		})
	}

	if execKeyword.MatchString(sql) {
		violations = append(violations, sqltoolkit.SafetyViolation{
			ViolationType: "exec", Detail: "raw EXEC/EXECUTE is not permitted in model SQL", Severity: sqltoolkit.SeverityError,
		})
	}

	if deleteKeyword.MatchString(sql) && !whereKeyword.MatchString(sql) {
		violations = append(violations, sqltoolkit.SafetyViolation{
			ViolationType: "unscoped_delete", Detail: "DELETE without a WHERE clause removes every row in the table", Severity: sqltoolkit.SeverityError,
		})
	}

	if overwriteKeyword.MatchString(sql) && !partitionKeyword.MatchString(sql) {
		violations = append(violations, sqltoolkit.SafetyViolation{
			ViolationType: "insert_overwrite_without_partition", Detail: "INSERT OVERWRITE without a PARTITION clause replaces the entire table", Severity: sqltoolkit.SeverityWarning,
		})
	}

	if !allowInsert && insertKeyword.MatchString(sql) {
		violations = append(violations, sqltoolkit.SafetyViolation{
			ViolationType: "insert", Detail: "INSERT statements are disallowed in this context", Severity: sqltoolkit.SeverityWarning,
		})
	}

	return violations
}

func dropTargets(d *pg_query.DropStmt) string {
	out := ""
	for i, obj := range d.GetObjects() {
		if i > 0 {
			out += ", "
		}
		out += listToDotted(obj)
	}
	return out
}

func truncateTargets(t *pg_query.TruncateStmt) string {
	out := ""
	for i, rel := range t.GetRelations() {
		if i > 0 {
			out += ", "
		}
		if rv := rel.GetRangeVar(); rv != nil {
			out += rv.GetRelname()
		}
	}
	return out
}

// listToDotted renders a List node of String_ parts as a dotted name,
// matching how DropStmt.Objects encodes possibly-qualified object names.
func listToDotted(n *pg_query.Node) string {
	list := n.GetList()
	if list == nil {
		if s, ok := stringValue(n); ok {
			return s
		}
		return ""
	}
	out := ""
	for i, item := range list.GetItems() {
		if i > 0 {
			out += "."
		}
		if s, ok := stringValue(item); ok {
			out += s
		}
	}
	return out
}
