// SPDX-License-Identifier: AGPL-3.0-or-later

package sqltoolkit

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type stubToolkit struct{}

func (stubToolkit) Parser() Parser                 { return nil }
func (stubToolkit) Renderer() Renderer             { return nil }
func (stubToolkit) ScopeAnalyzer() ScopeAnalyzer   { return nil }
func (stubToolkit) Transpiler() Transpiler         { return nil }
func (stubToolkit) Normalizer() Normalizer         { return nil }
func (stubToolkit) Differ() Differ                { return nil }
func (stubToolkit) SafetyGuard() SafetyGuard       { return nil }
func (stubToolkit) Rewriter() Rewriter             { return nil }
func (stubToolkit) Lineage() LineageAnalyzer       { return nil }

func TestRegisterAndGet(t *testing.T) {
	Reset()
	defer Reset()

	calls := 0
	RegisterImplementation(func() Toolkit {
		calls++
		return stubToolkit{}
	})

	tk1 := Get()
	tk2 := Get()
	require.NotNil(t, tk1)
	require.Equal(t, 1, calls, "factory should be invoked once and cached")
	require.Equal(t, tk1, tk2)
}

func TestRegisterTwicePanics(t *testing.T) {
	Reset()
	defer Reset()

	RegisterImplementation(func() Toolkit { return stubToolkit{} })
	require.Panics(t, func() {
		RegisterImplementation(func() Toolkit { return stubToolkit{} })
	})
}

func TestGetWithoutRegistrationPanics(t *testing.T) {
	Reset()
	defer Reset()
	require.Panics(t, func() { Get() })
}
