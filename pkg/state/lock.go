// SPDX-License-Identifier: AGPL-3.0-or-later

package state

import (
	"context"
	"fmt"
	"time"
)

// Lock is a TTL-bounded advisory lock on (tenant, model, range_start,
// range_end) held by a named owner.
type Lock struct {
	ModelName  string
	RangeStart string
	RangeEnd   string
	Owner      string
	LockedAt   time.Time
	TTLSeconds int
}

// LockRepository persists row-level partition-range locks.
type LockRepository struct {
	q        Querier
	tenantID string
}

func NewLockRepository(q Querier, tenantID string) *LockRepository {
	return &LockRepository{q: q, tenantID: tenantID}
}

// Acquire attempts to take the lock for (model, rangeStart, rangeEnd).
// It first deletes any expired lock for the same key, then performs an
// atomic INSERT ... ON CONFLICT DO NOTHING and reports whether the insert
// affected a row. This is never a SELECT-then-INSERT: that would leave a
// window where two callers both observe no lock and both insert.
func (r *LockRepository) Acquire(ctx context.Context, modelName, rangeStart, rangeEnd, owner string, ttlSeconds int) (bool, error) {
	_, err := r.q.Exec(ctx, `
		DELETE FROM locks
		WHERE tenant_id = $1 AND model_name = $2 AND range_start = $3 AND range_end = $4
		  AND locked_at + (ttl_seconds || ' seconds')::interval < now()
	`, r.tenantID, modelName, rangeStart, rangeEnd)
	if err != nil {
		return false, fmt.Errorf("state: expiring stale lock for %s: %w", modelName, err)
	}

	tag, err := r.q.Exec(ctx, `
		INSERT INTO locks (tenant_id, model_name, range_start, range_end, owner, locked_at, ttl_seconds)
		VALUES ($1, $2, $3, $4, $5, now(), $6)
		ON CONFLICT (tenant_id, model_name, range_start, range_end) DO NOTHING
	`, r.tenantID, modelName, rangeStart, rangeEnd, owner, ttlSeconds)
	if err != nil {
		return false, fmt.Errorf("state: acquiring lock for %s: %w", modelName, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Release unconditionally deletes the lock row; safe to call when no lock
// is held.
func (r *LockRepository) Release(ctx context.Context, modelName, rangeStart, rangeEnd string) error {
	_, err := r.q.Exec(ctx, `
		DELETE FROM locks WHERE tenant_id = $1 AND model_name = $2 AND range_start = $3 AND range_end = $4
	`, r.tenantID, modelName, rangeStart, rangeEnd)
	if err != nil {
		return fmt.Errorf("state: releasing lock for %s: %w", modelName, err)
	}
	return nil
}

// Check is an observational read: does a live (non-expired) lock exist?
func (r *LockRepository) Check(ctx context.Context, modelName, rangeStart, rangeEnd string) (bool, error) {
	var count int
	err := r.q.QueryRow(ctx, `
		SELECT COUNT(*) FROM locks
		WHERE tenant_id = $1 AND model_name = $2 AND range_start = $3 AND range_end = $4
		  AND locked_at + (ttl_seconds || ' seconds')::interval >= now()
	`, r.tenantID, modelName, rangeStart, rangeEnd).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("state: checking lock for %s: %w", modelName, err)
	}
	return count > 0, nil
}

// ForceRelease deletes a lock row regardless of TTL, after writing an
// audit entry that captures the original owner. Returns false if no lock
// was held.
func (r *LockRepository) ForceRelease(ctx context.Context, modelName, rangeStart, rangeEnd, releasedBy, reason string, auditLog *AuditLogRepository) (bool, error) {
	var owner string
	err := r.q.QueryRow(ctx, `
		SELECT owner FROM locks WHERE tenant_id = $1 AND model_name = $2 AND range_start = $3 AND range_end = $4
	`, r.tenantID, modelName, rangeStart, rangeEnd).Scan(&owner)
	if isNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("state: reading lock owner before force-release for %s: %w", modelName, err)
	}

	if auditLog != nil {
		if _, err := auditLog.Log(ctx, AuditEntryInput{
			Actor:      releasedBy,
			Action:     "lock.force_release",
			EntityType: "lock",
			EntityID:   fmt.Sprintf("%s:%s:%s", modelName, rangeStart, rangeEnd),
			Metadata: map[string]any{
				"original_owner": owner,
				"reason":         reason,
			},
		}); err != nil {
			return false, fmt.Errorf("state: recording audit entry for force-release: %w", err)
		}
	}

	if err := r.Release(ctx, modelName, rangeStart, rangeEnd); err != nil {
		return false, err
	}
	return true, nil
}

// ExpireStale deletes every lock row whose TTL has elapsed, across all
// models for this tenant. Background maintenance, not part of the
// acquire/release hot path.
func (r *LockRepository) ExpireStale(ctx context.Context) (int64, error) {
	tag, err := r.q.Exec(ctx, `
		DELETE FROM locks
		WHERE tenant_id = $1 AND locked_at + (ttl_seconds || ' seconds')::interval < now()
	`, r.tenantID)
	if err != nil {
		return 0, fmt.Errorf("state: expiring stale locks: %w", err)
	}
	return tag.RowsAffected(), nil
}
