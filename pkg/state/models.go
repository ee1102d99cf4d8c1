// SPDX-License-Identifier: AGPL-3.0-or-later

package state

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"ironlayer/pkg/model"
)

// ModelRepository persists model versions: one row per (tenant, name,
// content_hash) so history is retained across edits.
type ModelRepository struct {
	q        Querier
	tenantID string
}

func NewModelRepository(q Querier, tenantID string) *ModelRepository {
	return &ModelRepository{q: q, tenantID: tenantID}
}

// ModelVersionID is the persisted identity of one (name, content_hash)
// pair — the value a Snapshot references.
type ModelVersionID struct {
	Name        string
	ContentHash string
	VersionID   string
}

// Upsert records def as the current version for its name, returning the
// version id (generated if the content hash is new, reused if unchanged).
func (r *ModelRepository) Upsert(ctx context.Context, def *model.Definition) (string, error) {
	var versionID string
	err := r.q.QueryRow(ctx, `
		INSERT INTO model_versions (tenant_id, name, content_hash, kind, materialization, raw_sql, clean_sql, dependencies)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (tenant_id, name, content_hash) DO UPDATE SET name = EXCLUDED.name
		RETURNING version_id
	`, r.tenantID, def.Name, def.ContentHash, def.Kind, def.Materialization, def.RawSQL, def.CleanSQL, strings.Join(def.Dependencies, ",")).Scan(&versionID)
	if err != nil {
		return "", fmt.Errorf("state: upserting model version for %q: %w", def.Name, err)
	}
	return versionID, nil
}

// LatestHash returns the current content_hash for every model name in this
// tenant, the snapshot the Structural Differ compares against.
func (r *ModelRepository) LatestHash(ctx context.Context) (map[string]string, error) {
	rows, err := r.q.Query(ctx, `
		SELECT DISTINCT ON (name) name, content_hash
		FROM model_versions
		WHERE tenant_id = $1
		ORDER BY name, created_at DESC
	`, r.tenantID)
	if err != nil {
		return nil, fmt.Errorf("state: querying latest model hashes: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var name, hash string
		if err := rows.Scan(&name, &hash); err != nil {
			return nil, fmt.Errorf("state: scanning model hash row: %w", err)
		}
		out[name] = hash
	}
	return out, rows.Err()
}

// SnapshotRepository persists named point-in-time captures of
// {model_name -> model_version_id}.
type SnapshotRepository struct {
	q        Querier
	tenantID string
}

func NewSnapshotRepository(q Querier, tenantID string) *SnapshotRepository {
	return &SnapshotRepository{q: q, tenantID: tenantID}
}

// ComputeSnapshotID derives the deterministic snapshot id: a hash over
// tenant, environment, and sorted (name, version_id) pairs.
func ComputeSnapshotID(tenantID, environment string, versions map[string]string) string {
	names := make([]string, 0, len(versions))
	for name := range versions {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString(tenantID)
	sb.WriteString("|")
	sb.WriteString(environment)
	for _, name := range names {
		sb.WriteString("|")
		sb.WriteString(name)
		sb.WriteString("=")
		sb.WriteString(versions[name])
	}
	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

// Create persists an immutable snapshot. Calling Create twice with the
// same (tenant, environment, versions) is idempotent: the snapshot id is
// deterministic and the insert is a no-op conflict on a second call.
func (r *SnapshotRepository) Create(ctx context.Context, environment string, versions map[string]string) (string, error) {
	snapshotID := ComputeSnapshotID(r.tenantID, environment, versions)

	_, err := r.q.Exec(ctx, `
		INSERT INTO snapshots (snapshot_id, tenant_id, environment)
		VALUES ($1, $2, $3)
		ON CONFLICT (snapshot_id) DO NOTHING
	`, snapshotID, r.tenantID, environment)
	if err != nil {
		return "", fmt.Errorf("state: creating snapshot: %w", err)
	}

	for name, versionID := range versions {
		_, err := r.q.Exec(ctx, `
			INSERT INTO snapshot_members (snapshot_id, tenant_id, model_name, model_version_id)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (snapshot_id, model_name) DO NOTHING
		`, snapshotID, r.tenantID, name, versionID)
		if err != nil {
			return "", fmt.Errorf("state: recording snapshot member %q: %w", name, err)
		}
	}

	return snapshotID, nil
}

// MemberHashes returns {model_name -> content_hash} for a snapshot, joining
// through model_versions — the form the Structural Differ consumes.
func (r *SnapshotRepository) MemberHashes(ctx context.Context, snapshotID string) (map[string]string, error) {
	rows, err := r.q.Query(ctx, `
		SELECT sm.model_name, mv.content_hash
		FROM snapshot_members sm
		JOIN model_versions mv ON mv.version_id = sm.model_version_id
		WHERE sm.tenant_id = $1 AND sm.snapshot_id = $2
	`, r.tenantID, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("state: querying snapshot member hashes: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var name, hash string
		if err := rows.Scan(&name, &hash); err != nil {
			return nil, fmt.Errorf("state: scanning snapshot member hash: %w", err)
		}
		out[name] = hash
	}
	return out, rows.Err()
}

// Members returns {model_name -> model_version_id} for a snapshot.
func (r *SnapshotRepository) Members(ctx context.Context, snapshotID string) (map[string]string, error) {
	rows, err := r.q.Query(ctx, `
		SELECT model_name, model_version_id FROM snapshot_members
		WHERE tenant_id = $1 AND snapshot_id = $2
	`, r.tenantID, snapshotID)
	if err != nil {
		return nil, fmt.Errorf("state: querying snapshot members: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var name, versionID string
		if err := rows.Scan(&name, &versionID); err != nil {
			return nil, fmt.Errorf("state: scanning snapshot member: %w", err)
		}
		out[name] = versionID
	}
	return out, rows.Err()
}
