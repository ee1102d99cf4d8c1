// SPDX-License-Identifier: AGPL-3.0-or-later

package state

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// AuditEntryInput is the caller-supplied half of an audit entry; the
// repository fills in entry id, previous hash, entry hash, and timestamp.
type AuditEntryInput struct {
	Actor      string
	Action     string
	EntityType string
	EntityID   string
	Metadata   map[string]any
}

// AuditEntry is a persisted, hash-chained audit record.
type AuditEntry struct {
	EntryID      string
	Actor        string
	Action       string
	EntityType   string
	EntityID     string
	Metadata     map[string]any
	PreviousHash string
	EntryHash    string
	CreatedAt    time.Time
}

// AuditLogRepository persists an append-only, hash-chained audit log: each
// entry's hash covers the previous entry's hash, so any retroactive edit or
// deletion breaks the chain from that point forward.
type AuditLogRepository struct {
	q        Querier
	tenantID string
}

func NewAuditLogRepository(q Querier, tenantID string) *AuditLogRepository {
	return &AuditLogRepository{q: q, tenantID: tenantID}
}

// Log appends one entry to the chain. It takes a per-tenant Postgres
// advisory transaction lock before reading the current chain head, so two
// concurrent writers can never observe the same previous_hash and fork the
// chain; the lock releases automatically at transaction end. Log must
// therefore be called with a Querier bound to a transaction when more than
// one writer can race for a tenant — a bare pool connection has no
// transaction boundary for the advisory lock to scope to.
func (r *AuditLogRepository) Log(ctx context.Context, in AuditEntryInput) (*AuditEntry, error) {
	if _, err := r.q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('audit_chain_' || $1))`, r.tenantID); err != nil {
		return nil, fmt.Errorf("state: acquiring audit chain lock: %w", err)
	}

	var previousHash string
	err := r.q.QueryRow(ctx, `
		SELECT entry_hash FROM audit_log
		WHERE tenant_id = $1
		ORDER BY created_at DESC, entry_id DESC
		LIMIT 1
	`, r.tenantID).Scan(&previousHash)
	if err != nil && !isNoRows(err) {
		return nil, fmt.Errorf("state: reading audit chain head: %w", err)
	}
	if isNoRows(err) {
		previousHash = ""
	}

	metadataJSON, err := json.Marshal(in.Metadata)
	if err != nil {
		return nil, fmt.Errorf("state: marshaling audit metadata: %w", err)
	}

	entry := AuditEntry{
		Actor:        in.Actor,
		Action:       in.Action,
		EntityType:   in.EntityType,
		EntityID:     in.EntityID,
		Metadata:     in.Metadata,
		PreviousHash: previousHash,
		CreatedAt:    time.Now().UTC(),
	}
	entry.EntryHash = computeEntryHash(r.tenantID, entry.Actor, entry.Action, entry.EntityType, entry.EntityID, metadataJSON, previousHash, entry.CreatedAt)

	err = r.q.QueryRow(ctx, `
		INSERT INTO audit_log (tenant_id, actor, action, entity_type, entity_id, metadata, previous_hash, entry_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING entry_id
	`, r.tenantID, entry.Actor, entry.Action, entry.EntityType, entry.EntityID, metadataJSON, entry.PreviousHash, entry.EntryHash, entry.CreatedAt).Scan(&entry.EntryID)
	if err != nil {
		return nil, fmt.Errorf("state: appending audit entry: %w", err)
	}
	return &entry, nil
}

func computeEntryHash(tenantID, actor, action, entityType, entityID string, metadataJSON []byte, previousHash string, createdAt time.Time) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s|%s|%s|%s",
		tenantID, actor, action, entityType, entityID, metadataJSON, previousHash, createdAt.Format(time.RFC3339Nano))
	return hex.EncodeToString(h.Sum(nil))
}

// Query returns the most recent entries for this tenant, newest first.
func (r *AuditLogRepository) Query(ctx context.Context, limit int) ([]AuditEntry, error) {
	rows, err := r.q.Query(ctx, `
		SELECT entry_id, actor, action, entity_type, entity_id, metadata, previous_hash, entry_hash, created_at
		FROM audit_log
		WHERE tenant_id = $1
		ORDER BY created_at DESC, entry_id DESC
		LIMIT $2
	`, r.tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("state: querying audit log: %w", err)
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var metadataJSON []byte
		if err := rows.Scan(&e.EntryID, &e.Actor, &e.Action, &e.EntityType, &e.EntityID, &metadataJSON, &e.PreviousHash, &e.EntryHash, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("state: scanning audit entry: %w", err)
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &e.Metadata); err != nil {
				return nil, fmt.Errorf("state: unmarshaling audit metadata: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// VerifyChain walks the oldest `limit` entries (the whole chain when limit
// is zero or negative) in chronological order and recomputes each
// entry_hash, confirming previous_hash linkage and hash integrity. Returns
// the number of entries checked; isValid is false at the first broken link
// or hash mismatch.
func (r *AuditLogRepository) VerifyChain(ctx context.Context, limit int) (isValid bool, entriesChecked int, err error) {
	var limitArg any = limit
	if limit <= 0 {
		limitArg = nil // LIMIT NULL places no limit on the rows returned
	}
	rows, err := r.q.Query(ctx, `
		SELECT actor, action, entity_type, entity_id, metadata, previous_hash, entry_hash, created_at
		FROM audit_log
		WHERE tenant_id = $1
		ORDER BY created_at ASC, entry_id ASC
		LIMIT $2
	`, r.tenantID, limitArg)
	if err != nil {
		return false, 0, fmt.Errorf("state: querying audit log for verification: %w", err)
	}
	defer rows.Close()

	expectedPrevious := ""
	for rows.Next() {
		var actor, action, entityType, entityID, previousHash, entryHash string
		var metadataJSON []byte
		var createdAt time.Time
		if err := rows.Scan(&actor, &action, &entityType, &entityID, &metadataJSON, &previousHash, &entryHash, &createdAt); err != nil {
			return false, entriesChecked, fmt.Errorf("state: scanning audit entry during verification: %w", err)
		}
		entriesChecked++

		if previousHash != expectedPrevious {
			return false, entriesChecked, nil
		}
		want := computeEntryHash(r.tenantID, actor, action, entityType, entityID, metadataJSON, previousHash, createdAt)
		if want != entryHash {
			return false, entriesChecked, nil
		}
		expectedPrevious = entryHash
	}
	if err := rows.Err(); err != nil {
		return false, entriesChecked, fmt.Errorf("state: iterating audit log during verification: %w", err)
	}
	return true, entriesChecked, nil
}
