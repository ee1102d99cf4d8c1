// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cperrors defines the shared error-category sentinels used across
// the control plane. Components wrap these with fmt.Errorf("...: %w", ...)
// so callers can classify a failure with errors.Is without depending on
// the component that produced it.
package cperrors

import "errors"

var (
	// ErrValidation marks an input validation failure (bad dates, start > end,
	// unknown enum value, chunk size < 1).
	ErrValidation = errors.New("validation error")

	// ErrPermission marks an authorization failure (missing role, unapproved
	// plan in a non-dev environment).
	ErrPermission = errors.New("permission error")

	// ErrConflict marks a conflicting state (lock already held, backfill
	// already exists, resuming an already-completed backfill).
	ErrConflict = errors.New("conflict")

	// ErrNotFound marks a missing entity (unknown plan, run, backfill, model).
	ErrNotFound = errors.New("not found")

	// ErrIntegrity marks a safety or contract violation, or an internal
	// bookkeeping inconsistency that must not be silently papered over.
	ErrIntegrity = errors.New("integrity error")
)
