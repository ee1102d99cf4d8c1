// SPDX-License-Identifier: AGPL-3.0-or-later

package contract_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ironlayer/pkg/contract"
	"ironlayer/pkg/model"
	"ironlayer/pkg/sqltoolkit"
)

func makeDef(mode model.ContractMode, cols []model.ContractColumn, outputCols []string) *model.Definition {
	return &model.Definition{
		Name:            "test.model",
		ContractMode:    mode,
		ContractColumns: cols,
		OutputColumns:   outputCols,
	}
}

// named sets def's Name to the key it is stored under in a batch map, the
// way the loader keys definitions by model name.
func named(name string, def *model.Definition) *model.Definition {
	def.Name = name
	return def
}

func TestCheckDisabledModeYieldsZeroModelsChecked(t *testing.T) {
	def := makeDef(model.ContractDisabled,
		[]model.ContractColumn{{Name: "id", DataType: "INT"}}, nil)
	result := contract.Check(def, contract.Actual{})
	assert.Equal(t, 0, result.ModelsChecked)
	assert.Empty(t, result.Violations)
}

func TestCheckEmptyContractColumnsYieldsNoViolations(t *testing.T) {
	def := makeDef(model.ContractStrict, nil, []string{"id", "name"})
	result := contract.Check(def, contract.Actual{})
	assert.Equal(t, 1, result.ModelsChecked)
	assert.Empty(t, result.Violations)
}

func TestCheckExactMatchNoViolations(t *testing.T) {
	def := makeDef(model.ContractStrict, []model.ContractColumn{
		{Name: "id", DataType: "INT"},
		{Name: "name", DataType: "STRING"},
	}, []string{"id", "name"})
	result := contract.Check(def, contract.Actual{})
	assert.Empty(t, result.Violations)
}

func TestCheckTypeAliasesMatchNoViolation(t *testing.T) {
	def := makeDef(model.ContractStrict, []model.ContractColumn{
		{Name: "id", DataType: "INTEGER"},
		{Name: "label", DataType: "VARCHAR"},
	}, []string{"id", "label"})
	result := contract.Check(def, contract.Actual{Types: map[string]string{"id": "INT", "label": "STRING"}})
	assert.Empty(t, result.Violations)
}

func TestCheckColumnRemoved(t *testing.T) {
	def := makeDef(model.ContractStrict, []model.ContractColumn{
		{Name: "id", DataType: "INT"},
		{Name: "deleted_col", DataType: "STRING"},
	}, []string{"id"})
	result := contract.Check(def, contract.Actual{})
	assert.Len(t, result.Violations, 1)
	v := result.Violations[0]
	assert.Equal(t, model.ContractViolationMissingColumn, v.Kind)
	assert.Equal(t, sqltoolkit.SeverityError, v.Severity)
	assert.Equal(t, "deleted_col", v.Column)
}

func TestCheckTypeChanged(t *testing.T) {
	def := makeDef(model.ContractStrict, []model.ContractColumn{
		{Name: "id", DataType: "INT"},
	}, []string{"id"})
	result := contract.Check(def, contract.Actual{Types: map[string]string{"id": "STRING"}})
	assert.Len(t, result.Violations, 1)
	assert.Equal(t, model.ContractViolationTypeMismatch, result.Violations[0].Kind)
	assert.Equal(t, sqltoolkit.SeverityError, result.Violations[0].Severity)
}

func TestCheckNoTypeViolationWithoutTypeMap(t *testing.T) {
	def := makeDef(model.ContractStrict, []model.ContractColumn{
		{Name: "id", DataType: "INT"},
	}, []string{"id"})
	result := contract.Check(def, contract.Actual{})
	assert.Empty(t, result.Violations)
}

func TestCheckNullableTightened(t *testing.T) {
	def := makeDef(model.ContractStrict, []model.ContractColumn{
		{Name: "id", DataType: "INT", Nullable: false},
	}, []string{"id"})
	result := contract.Check(def, contract.Actual{Nullable: map[string]bool{"id": true}})
	assert.Len(t, result.Violations, 1)
	assert.Equal(t, model.ContractViolationNullableTightened, result.Violations[0].Kind)
}

func TestCheckContractNullableActualNotNullNoViolation(t *testing.T) {
	def := makeDef(model.ContractStrict, []model.ContractColumn{
		{Name: "id", DataType: "INT", Nullable: true},
	}, []string{"id"})
	result := contract.Check(def, contract.Actual{Nullable: map[string]bool{"id": false}})
	assert.Empty(t, result.Violations)
}

func TestCheckColumnAddedIsWarningNotBreaking(t *testing.T) {
	def := makeDef(model.ContractStrict, []model.ContractColumn{
		{Name: "id", DataType: "INT"},
	}, []string{"id", "extra_col"})
	result := contract.Check(def, contract.Actual{})
	assert.Len(t, result.Violations, 1)
	assert.Equal(t, model.ContractViolationExtraColumn, result.Violations[0].Kind)
	assert.Equal(t, sqltoolkit.SeverityWarning, result.Violations[0].Severity)
	assert.False(t, result.HasBreakingViolations())
}

func TestCheckCaseInsensitiveColumnMatch(t *testing.T) {
	def := makeDef(model.ContractStrict, []model.ContractColumn{
		{Name: "ID", DataType: "INT"},
		{Name: "Name", DataType: "STRING"},
	}, []string{"id", "name"})
	result := contract.Check(def, contract.Actual{})
	assert.Empty(t, result.Violations)
}

func TestCheckActualColumnsOverridesOutputColumns(t *testing.T) {
	def := makeDef(model.ContractStrict, []model.ContractColumn{
		{Name: "id", DataType: "INT"},
	}, []string{"id"})
	result := contract.Check(def, contract.Actual{Columns: []string{}})
	assert.Len(t, result.Violations, 1)
	assert.Equal(t, model.ContractViolationMissingColumn, result.Violations[0].Kind)
}

func TestCheckNilActualColumnsFallsBackToOutputColumns(t *testing.T) {
	def := makeDef(model.ContractStrict, []model.ContractColumn{
		{Name: "id", DataType: "INT"},
	}, []string{"id"})
	result := contract.Check(def, contract.Actual{Columns: nil})
	assert.Empty(t, result.Violations)
}

func TestCheckWarnAndStrictModesProduceSameViolations(t *testing.T) {
	cols := []model.ContractColumn{
		{Name: "id", DataType: "INT"},
		{Name: "name", DataType: "STRING"},
	}
	warnDef := makeDef(model.ContractWarn, cols, nil)
	strictDef := makeDef(model.ContractStrict, cols, nil)

	warnResult := contract.Check(warnDef, contract.Actual{})
	strictResult := contract.Check(strictDef, contract.Actual{})
	assert.Equal(t, len(warnResult.Violations), len(strictResult.Violations))
	for i := range warnResult.Violations {
		assert.Equal(t, warnResult.Violations[i].Kind, strictResult.Violations[i].Kind)
		assert.Equal(t, warnResult.Violations[i].Severity, strictResult.Violations[i].Severity)
	}
}

func TestCheckViolationsSortedByColumnName(t *testing.T) {
	def := makeDef(model.ContractStrict, []model.ContractColumn{
		{Name: "z_col", DataType: "INT"},
		{Name: "a_col", DataType: "STRING"},
	}, nil)
	result := contract.Check(def, contract.Actual{})
	assert.Equal(t, "a_col", result.Violations[0].Column)
	assert.Equal(t, "z_col", result.Violations[1].Column)
}

func TestCheckBatchSkipsDisabledModels(t *testing.T) {
	defs := map[string]*model.Definition{
		"enabled": named("enabled", makeDef(model.ContractStrict, []model.ContractColumn{
			{Name: "id", DataType: "INT"},
		}, nil)),
		"disabled": named("disabled", makeDef(model.ContractDisabled, []model.ContractColumn{
			{Name: "id", DataType: "INT"},
		}, nil)),
	}
	result := contract.CheckBatch(defs, nil)
	assert.Equal(t, 1, result.ModelsChecked)
	for _, v := range result.Violations {
		assert.Equal(t, "enabled", v.Model)
	}
}

func TestCheckBatchViolationsSortedByModelThenColumn(t *testing.T) {
	defs := map[string]*model.Definition{
		"b_model": named("b_model", makeDef(model.ContractStrict, []model.ContractColumn{{Name: "col", DataType: "INT"}}, nil)),
		"a_model": named("a_model", makeDef(model.ContractStrict, []model.ContractColumn{{Name: "col", DataType: "INT"}}, nil)),
	}
	result := contract.CheckBatch(defs, nil)
	assert.Equal(t, "a_model", result.Violations[0].Model)
	assert.Equal(t, "b_model", result.Violations[1].Model)
}

func TestResultViolationsForModelFiltersCorrectly(t *testing.T) {
	defs := map[string]*model.Definition{
		"alpha": named("alpha", makeDef(model.ContractStrict, []model.ContractColumn{{Name: "x", DataType: "INT"}}, nil)),
		"beta":  named("beta", makeDef(model.ContractStrict, []model.ContractColumn{{Name: "y", DataType: "STRING"}}, nil)),
	}
	result := contract.CheckBatch(defs, nil)
	assert.Len(t, result.ViolationsForModel("alpha"), 1)
	assert.Len(t, result.ViolationsForModel("beta"), 1)
	assert.Empty(t, result.ViolationsForModel("nonexistent"))
}
