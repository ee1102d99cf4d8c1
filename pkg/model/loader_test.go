// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	"ironlayer/pkg/logging"
	"ironlayer/pkg/sqltoolkit"
	_ "ironlayer/pkg/sqltoolkit/pgquery"
)

func fixtureFS() fstest.MapFS {
	return fstest.MapFS{
		"models/raw/events.sql": &fstest.MapFile{Data: []byte(
			"-- name: raw.events\n-- kind: FULL_REFRESH\n\nSELECT * FROM source_events\n",
		)},
		"models/staging/events_clean.sql": &fstest.MapFile{Data: []byte(
			"-- name: staging.events_clean\n-- kind: FULL_REFRESH\n\n" +
				"SELECT id, event_type FROM {{ ref('raw.events') }}\n",
		)},
		"models/analytics/orders_daily.sql": &fstest.MapFile{Data: []byte(
			"-- name: analytics.orders_daily\n-- kind: INCREMENTAL_BY_TIME_RANGE\n-- time_column: order_date\n\n" +
				"SELECT order_date, COUNT(*) AS n FROM {{ ref('staging.events_clean') }} GROUP BY order_date\n",
		)},
	}
}

func TestLoadDirectoryResolvesRefsAndDeps(t *testing.T) {
	loader := NewLoader(logging.NewNop(), sqltoolkit.Get(), sqltoolkit.DialectRedshift)
	defs, err := loader.LoadDirectory("models", fixtureFS())
	require.NoError(t, err)
	require.Len(t, defs, 3)

	clean := defs["staging.events_clean"]
	require.Contains(t, clean.CleanSQL, "raw.events")
	require.NotContains(t, clean.CleanSQL, "ref(")
	require.Contains(t, clean.Dependencies, "raw.events")

	orders := defs["analytics.orders_daily"]
	require.Equal(t, KindIncrementalByTimeRange, orders.Kind)
	require.Equal(t, "order_date", orders.TimeColumn)
	require.Contains(t, orders.Dependencies, "staging.events_clean")
}

func TestLoadDirectoryRejectsMissingTimeColumn(t *testing.T) {
	fsys := fstest.MapFS{
		"models/bad.sql": &fstest.MapFile{Data: []byte(
			"-- name: bad.model\n-- kind: INCREMENTAL_BY_TIME_RANGE\n\nSELECT 1\n",
		)},
	}
	loader := NewLoader(logging.NewNop(), sqltoolkit.Get(), sqltoolkit.DialectRedshift)
	_, err := loader.LoadDirectory("models", fsys)
	require.ErrorIs(t, err, ErrValidation)
}

func TestContentHashStableAcrossWhitespaceOnlyChanges(t *testing.T) {
	loader := NewLoader(logging.NewNop(), sqltoolkit.Get(), sqltoolkit.DialectRedshift)

	fsysA := fstest.MapFS{
		"models/m.sql": &fstest.MapFile{Data: []byte("-- name: m\n\nSELECT 1 AS x\n")},
	}
	fsysB := fstest.MapFS{
		"models/m.sql": &fstest.MapFile{Data: []byte("-- name: m\n\nSELECT   1    AS x -- comment\n")},
	}

	defsA, err := loader.LoadDirectory("models", fsysA)
	require.NoError(t, err)
	defsB, err := loader.LoadDirectory("models", fsysB)
	require.NoError(t, err)

	require.Equal(t, defsA["m"].ContentHash, defsB["m"].ContentHash)
}
