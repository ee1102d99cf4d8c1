// SPDX-License-Identifier: AGPL-3.0-or-later

package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeEntryHashDeterministic(t *testing.T) {
	createdAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := computeEntryHash("tenant-a", "alice", "lock.force_release", "lock", "m:s:e", []byte(`{"k":"v"}`), "prevhash", createdAt)
	b := computeEntryHash("tenant-a", "alice", "lock.force_release", "lock", "m:s:e", []byte(`{"k":"v"}`), "prevhash", createdAt)
	assert.Equal(t, a, b)
}

func TestComputeEntryHashChangesWithPreviousHash(t *testing.T) {
	createdAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := computeEntryHash("tenant-a", "alice", "plan.approve", "plan", "p1", []byte(`{}`), "", createdAt)
	b := computeEntryHash("tenant-a", "alice", "plan.approve", "plan", "p1", []byte(`{}`), "somehash", createdAt)
	assert.NotEqual(t, a, b)
}

func TestComputeEntryHashChangesWithMetadata(t *testing.T) {
	createdAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := computeEntryHash("tenant-a", "alice", "plan.approve", "plan", "p1", []byte(`{"note":"x"}`), "", createdAt)
	b := computeEntryHash("tenant-a", "alice", "plan.approve", "plan", "p1", []byte(`{"note":"y"}`), "", createdAt)
	assert.NotEqual(t, a, b)
}
