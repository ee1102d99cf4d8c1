// SPDX-License-Identifier: AGPL-3.0-or-later

// Package audit is a thin service over state.AuditLogRepository: Log,
// Query, and VerifyChain are exposed as the audit surface the rest of
// the control plane (and the CLI) calls into, without callers needing to
// know about the hash-chain mechanics underneath.
package audit

import (
	"context"
	"fmt"

	"ironlayer/pkg/state"
)

// Service records and verifies the per-tenant audit log.
type Service struct {
	repo *state.AuditLogRepository
}

func NewService(repo *state.AuditLogRepository) *Service {
	return &Service{repo: repo}
}

// Log appends one audit entry to the tenant's chain.
func (s *Service) Log(ctx context.Context, actor, action, entityType, entityID string, metadata map[string]any) (*state.AuditEntry, error) {
	entry, err := s.repo.Log(ctx, state.AuditEntryInput{
		Actor: actor, Action: action, EntityType: entityType, EntityID: entityID, Metadata: metadata,
	})
	if err != nil {
		return nil, fmt.Errorf("audit: logging %s on %s %s: %w", action, entityType, entityID, err)
	}
	return entry, nil
}

// Query returns the most recent entries, newest first.
func (s *Service) Query(ctx context.Context, limit int) ([]state.AuditEntry, error) {
	return s.repo.Query(ctx, limit)
}

// VerifyChain walks the oldest limit entries and confirms the hash chain
// is unbroken, returning (is_valid, entries_checked).
func (s *Service) VerifyChain(ctx context.Context, limit int) (bool, int, error) {
	return s.repo.VerifyChain(ctx, limit)
}
