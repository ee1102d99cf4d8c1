// SPDX-License-Identifier: AGPL-3.0-or-later

package executor_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ironlayer/pkg/executor"
	"ironlayer/pkg/logging"
	"ironlayer/pkg/sqltoolkit"
	_ "ironlayer/pkg/sqltoolkit/pgquery"
)

type fakeRunner struct {
	execErr    error
	explainErr error
}

func (f *fakeRunner) Exec(ctx context.Context, sql string, arguments ...any) (int64, error) {
	if len(sql) >= 7 && sql[:7] == "EXPLAIN" {
		return 0, f.explainErr
	}
	return 1, f.execErr
}

func TestLocalExecuteStepSucceedsAtExecuteLevel(t *testing.T) {
	tk := sqltoolkit.Get()
	l := executor.NewLocal(logging.NewNop(), &fakeRunner{}, tk, sqltoolkit.DialectRedshift)

	result, err := l.ExecuteStep(context.Background(), executor.Step{
		ModelName: "orders",
		SQL:       "SELECT 1",
	})
	require.NoError(t, err)
	assert.Equal(t, executor.RunStatusSuccess, result.Status)
}

func TestLocalExecuteStepFallsBackToExplain(t *testing.T) {
	tk := sqltoolkit.Get()
	l := executor.NewLocal(logging.NewNop(), &fakeRunner{execErr: errors.New("permission denied")}, tk, sqltoolkit.DialectRedshift)

	result, err := l.ExecuteStep(context.Background(), executor.Step{
		ModelName: "orders",
		SQL:       "SELECT 1",
	})
	require.NoError(t, err)
	assert.Equal(t, executor.RunStatusSuccess, result.Status)
}

func TestLocalExecuteStepFallsBackToParseOnlyWithNoRunner(t *testing.T) {
	tk := sqltoolkit.Get()
	l := executor.NewLocal(logging.NewNop(), nil, tk, sqltoolkit.DialectRedshift)

	result, err := l.ExecuteStep(context.Background(), executor.Step{
		ModelName: "orders",
		SQL:       "SELECT 1",
	})
	require.NoError(t, err)
	assert.Equal(t, executor.RunStatusSuccess, result.Status)
}

func TestLocalExecuteStepFailsWhenSQLIsInvalidAtEveryLevel(t *testing.T) {
	tk := sqltoolkit.Get()
	l := executor.NewLocal(logging.NewNop(), nil, tk, sqltoolkit.DialectRedshift)

	result, err := l.ExecuteStep(context.Background(), executor.Step{
		ModelName: "orders",
		SQL:       "SELEKT NOT VALID SQL (((",
	})
	require.NoError(t, err)
	assert.Equal(t, executor.RunStatusFailed, result.Status)
	assert.NotEmpty(t, result.ErrorMessage)
}
