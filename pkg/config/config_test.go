// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "ironlayer.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.ErrorIs(t, err, ErrConfigNotFound)
}

func TestLoadValid(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
project:
  name: acme-analytics
  environment: dev
  tenant_id: acme
database:
  dsn: "postgres://localhost/ironlayer"
executor:
  backend: local
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "acme-analytics", cfg.Project.Name)
	require.Equal(t, 30, cfg.Planner.DefaultLookbackDays)
	require.Equal(t, 3600, cfg.Lock.DefaultTTLSeconds)
	require.True(t, cfg.IsDev())
	require.False(t, cfg.IsProduction())

	rate, err := cfg.CostRate("small")
	require.NoError(t, err)
	require.InDelta(t, 0.10, rate, 1e-9)
}

func TestLoadRejectsMissingTenant(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
project:
  name: acme-analytics
  environment: dev
database:
  dsn: "postgres://localhost/ironlayer"
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsWarehouseWithoutDSN(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
project:
  name: acme-analytics
  environment: production
  tenant_id: acme
database:
  dsn: "postgres://localhost/ironlayer"
executor:
  backend: warehouse
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestCostRateUnknownCluster(t *testing.T) {
	cfg := Default()
	_, err := cfg.CostRate("xlarge")
	require.Error(t, err)
}
