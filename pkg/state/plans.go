// SPDX-License-Identifier: AGPL-3.0-or-later

package state

import (
	"context"
	"fmt"
	"time"

	"ironlayer/pkg/plan"
)

// PlanRepository persists serialized plans and their approval records.
type PlanRepository struct {
	q        Querier
	tenantID string
}

func NewPlanRepository(q Querier, tenantID string) *PlanRepository {
	return &PlanRepository{q: q, tenantID: tenantID}
}

// Save persists a plan's canonical JSON, keyed by its deterministic id.
func (r *PlanRepository) Save(ctx context.Context, p *plan.Plan) error {
	body, err := plan.Serialize(p)
	if err != nil {
		return fmt.Errorf("state: serializing plan %s: %w", p.PlanID, err)
	}
	_, err = r.q.Exec(ctx, `
		INSERT INTO plans (plan_id, tenant_id, base_snapshot, target_snapshot, body, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (plan_id) DO NOTHING
	`, p.PlanID, r.tenantID, p.Base, p.Target, body, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("state: saving plan %s: %w", p.PlanID, err)
	}
	return nil
}

// Get loads and deserializes a plan by id.
func (r *PlanRepository) Get(ctx context.Context, planID string) (*plan.Plan, error) {
	var body []byte
	err := r.q.QueryRow(ctx, `
		SELECT body FROM plans WHERE tenant_id = $1 AND plan_id = $2
	`, r.tenantID, planID).Scan(&body)
	if err != nil {
		return nil, wrapNotFound(err, "plan "+planID)
	}
	return plan.Deserialize(body)
}

// ApprovalCount reports how many approval records a plan carries, used by
// the orchestrator's "non-dev environments require at least one approval"
// rule.
func (r *PlanRepository) ApprovalCount(ctx context.Context, planID string) (int, error) {
	var count int
	err := r.q.QueryRow(ctx, `
		SELECT jsonb_array_length(COALESCE(approvals, '[]'::jsonb)) FROM plans
		WHERE tenant_id = $1 AND plan_id = $2
	`, r.tenantID, planID).Scan(&count)
	if err != nil {
		return 0, wrapNotFound(err, "plan "+planID)
	}
	return count, nil
}

// Approval is one recorded sign-off on a plan.
type Approval struct {
	ApprovedBy string    `json:"approved_by"`
	ApprovedAt time.Time `json:"approved_at"`
	Note       string    `json:"note,omitempty"`
}

// AddApproval appends an approval record to the plan's approvals array.
// The JSONB concatenation operator (||) performs the append atomically at
// the database level: two concurrent approvals both read the pre-append
// value and both writes apply against the current row version under
// Postgres's MVCC row-level locking, so neither can silently clobber the
// other's append the way a read-modify-write in application code would. A
// backend without JSONB || (e.g. a test double backed by a non-Postgres
// store) would need the read-modify-write-inside-a-savepoint fallback
// described in the State Repository's write discipline; this module only
// ships the Postgres-native path because no other backend is wired.
func (r *PlanRepository) AddApproval(ctx context.Context, planID string, approval Approval) error {
	_, err := r.q.Exec(ctx, `
		UPDATE plans
		SET approvals = COALESCE(approvals, '[]'::jsonb) || jsonb_build_array(jsonb_build_object(
			'approved_by', $3::text,
			'approved_at', $4::text,
			'note', $5::text
		))
		WHERE tenant_id = $1 AND plan_id = $2
	`, r.tenantID, planID, approval.ApprovedBy, approval.ApprovedAt.UTC().Format(time.RFC3339), approval.Note)
	if err != nil {
		return fmt.Errorf("state: appending approval to plan %s: %w", planID, err)
	}
	return nil
}
