// SPDX-License-Identifier: AGPL-3.0-or-later

// Package reconcile compares the control plane's recorded run status
// against warehouse truth for the same run, recording discrepancies for
// an operator to triage. The cron-driven trigger loop that periodically
// invokes this service is an external collaborator, out of scope here.
package reconcile

import (
	"context"
	"fmt"

	"ironlayer/pkg/state"
)

// Service is a thin behavioral layer over state.ReconciliationRepository.
type Service struct {
	repo *state.ReconciliationRepository
}

func NewService(repo *state.ReconciliationRepository) *Service {
	return &Service{repo: repo}
}

// Check compares expected vs. warehouse status for a model's run and
// records the result. A matching status is recorded already resolved by
// the repository's insert; a mismatch is recorded unresolved until a
// caller marks it via Resolve — Check only classifies and persists, it
// never auto-resolves a mismatch.
func (s *Service) Check(ctx context.Context, modelName string, expected, warehouse state.ReconciliationStatus, discrepancy *state.DiscrepancyType) (string, error) {
	checkID, err := s.repo.Record(ctx, state.ReconciliationCheck{
		ModelName:       modelName,
		ExpectedStatus:  expected,
		WarehouseStatus: warehouse,
		DiscrepancyType: discrepancy,
	})
	if err != nil {
		return "", fmt.Errorf("reconcile: recording check for %s: %w", modelName, err)
	}
	return checkID, nil
}

// GetUnresolved returns up to limit unresolved discrepancies, oldest first.
func (s *Service) GetUnresolved(ctx context.Context, limit int) ([]state.ReconciliationCheck, error) {
	return s.repo.GetUnresolved(ctx, limit)
}

// Resolve marks a discrepancy resolved with an operator's note.
func (s *Service) Resolve(ctx context.Context, checkID, resolvedBy, note string) error {
	return s.repo.Resolve(ctx, checkID, resolvedBy, note)
}

// ListSchedules returns every configured reconciliation schedule.
func (s *Service) ListSchedules(ctx context.Context) ([]state.ReconciliationSchedule, error) {
	return s.repo.ListSchedules(ctx)
}

// UpsertSchedule creates or replaces a named reconciliation schedule.
func (s *Service) UpsertSchedule(ctx context.Context, schedule state.ReconciliationSchedule) error {
	return s.repo.UpsertSchedule(ctx, schedule)
}
