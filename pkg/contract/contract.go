// SPDX-License-Identifier: AGPL-3.0-or-later

// Package contract validates a model's declared schema contract against
// its actual output: missing/added columns, type changes, and nullability
// tightened beyond what the contract promises.
package contract

import (
	"fmt"
	"sort"
	"strings"

	"ironlayer/pkg/model"
	"ironlayer/pkg/sqltoolkit"
)

// Actual is the observed shape of a model's output. Columns falls back to
// the model's statically-derived OutputColumns when nil (not merely
// empty — an explicit empty slice means "no columns observed", the same
// way the original validator distinguishes actual_columns=None from
// actual_columns=[]). Types and Nullable are column-name-keyed; a column
// absent from either map is treated as "unknown" and skipped for that
// check rather than flagged.
type Actual struct {
	Columns  []string
	Types    map[string]string
	Nullable map[string]bool
}

// Result is the outcome of checking one or more models' contracts.
type Result struct {
	Violations    []model.ContractViolation
	ModelsChecked int
}

// HasBreakingViolations reports whether any violation is error-severity.
func (r Result) HasBreakingViolations() bool {
	for _, v := range r.Violations {
		if v.Severity == sqltoolkit.SeverityError {
			return true
		}
	}
	return false
}

// ViolationsForModel filters to one model's violations, preserving order.
func (r Result) ViolationsForModel(name string) []model.ContractViolation {
	var out []model.ContractViolation
	for _, v := range r.Violations {
		if v.Model == name {
			out = append(out, v)
		}
	}
	return out
}

// Check validates a single model's contract. A DISABLED contract is
// skipped entirely: ModelsChecked stays 0, no violations are produced.
func Check(def *model.Definition, actual Actual) Result {
	if def.ContractMode == model.ContractDisabled {
		return Result{}
	}
	return Result{Violations: checkOne(def, actual), ModelsChecked: 1}
}

// CheckBatch validates every enabled model's contract and returns
// violations sorted deterministically by (model, column).
func CheckBatch(defs map[string]*model.Definition, actuals map[string]Actual) Result {
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)

	var all []model.ContractViolation
	checked := 0
	for _, name := range names {
		def := defs[name]
		if def.ContractMode == model.ContractDisabled {
			continue
		}
		checked++
		all = append(all, checkOne(def, actuals[name])...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Model != all[j].Model {
			return all[i].Model < all[j].Model
		}
		return all[i].Column < all[j].Column
	})
	return Result{Violations: all, ModelsChecked: checked}
}

func checkOne(def *model.Definition, actual Actual) []model.ContractViolation {
	if len(def.ContractColumns) == 0 {
		return nil
	}

	actualColumns := actual.Columns
	if actualColumns == nil {
		actualColumns = def.OutputColumns
	}
	actualSet := make(map[string]struct{}, len(actualColumns))
	for _, c := range actualColumns {
		actualSet[strings.ToLower(c)] = struct{}{}
	}
	contracted := make(map[string]struct{}, len(def.ContractColumns))

	var violations []model.ContractViolation
	for _, cc := range def.ContractColumns {
		key := strings.ToLower(cc.Name)
		contracted[key] = struct{}{}

		if _, present := actualSet[key]; !present {
			violations = append(violations, model.ContractViolation{
				Model:    def.Name,
				Column:   cc.Name,
				Kind:     model.ContractViolationMissingColumn,
				Severity: sqltoolkit.SeverityError,
				Detail:   fmt.Sprintf("contracted column %q (%s) is missing from model output", cc.Name, cc.DataType),
			})
			continue
		}

		if actualType, ok := actual.Types[cc.Name]; ok && normalizeType(actualType) != normalizeType(cc.DataType) {
			violations = append(violations, model.ContractViolation{
				Model:    def.Name,
				Column:   cc.Name,
				Kind:     model.ContractViolationTypeMismatch,
				Severity: sqltoolkit.SeverityError,
				Detail:   fmt.Sprintf("column %q type changed: contract declares %s, actual is %s", cc.Name, cc.DataType, actualType),
			})
		}

		if nullable, ok := actual.Nullable[cc.Name]; ok && !cc.Nullable && nullable {
			violations = append(violations, model.ContractViolation{
				Model:    def.Name,
				Column:   cc.Name,
				Kind:     model.ContractViolationNullableTightened,
				Severity: sqltoolkit.SeverityError,
				Detail:   fmt.Sprintf("column %q contract requires NOT NULL, actual is NULLABLE", cc.Name),
			})
		}
	}

	for _, col := range actualColumns {
		if _, ok := contracted[strings.ToLower(col)]; ok {
			continue
		}
		violations = append(violations, model.ContractViolation{
			Model:    def.Name,
			Column:   col,
			Kind:     model.ContractViolationExtraColumn,
			Severity: sqltoolkit.SeverityWarning,
			Detail:   fmt.Sprintf("column %q is present in model output but not declared in the contract", col),
		})
	}

	sort.SliceStable(violations, func(i, j int) bool { return violations[i].Column < violations[j].Column })
	return violations
}

// typeAliases collapses dialect-specific type spellings onto one of a
// small canonical set so a contract written against one warehouse's
// naming doesn't false-positive against another's.
var typeAliases = map[string]string{
	"VARCHAR": "STRING", "TEXT": "STRING", "CHAR": "STRING", "NVARCHAR": "STRING",
	"INTEGER":          "INT",
	"LONG":             "BIGINT",
	"BIGINTEGER":       "BIGINT",
	"SHORT":            "SMALLINT",
	"TINYINT":          "SMALLINT",
	"REAL":             "FLOAT",
	"DOUBLE PRECISION": "DOUBLE",
	"DATETIME":         "TIMESTAMP",
	"BOOL":             "BOOLEAN",
	"NUMERIC":          "DECIMAL",
	"NUMBER":           "DECIMAL",
}

func normalizeType(t string) string {
	upper := strings.ToUpper(strings.TrimSpace(t))
	if canon, ok := typeAliases[upper]; ok {
		return canon
	}
	return upper
}
