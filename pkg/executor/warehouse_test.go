// SPDX-License-Identifier: AGPL-3.0-or-later

package executor_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ironlayer/pkg/executor"
)

func TestWarehouseExecuteStepReportsUnconfigured(t *testing.T) {
	w := executor.NewWarehouse("medium")
	result, err := w.ExecuteStep(context.Background(), executor.Step{ModelName: "orders", SQL: "SELECT 1"})
	require.NoError(t, err)
	assert.Equal(t, executor.RunStatusFailed, result.Status)
	assert.Contains(t, result.ErrorMessage, "medium")
}
