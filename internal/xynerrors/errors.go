// Package xynerrors defines the error taxonomy of spec §7 on top of
// github.com/containerd/errdefs, the same predicate-based error package the
// teacher's Docker client already depends on. Kinds wrap one of errdefs'
// base sentinels so callers can branch with errdefs.Is* instead of string
// matching, while the Kind string carries the exact taxonomy name.
package xynerrors

import (
	"errors"
	"fmt"

	"github.com/containerd/errdefs"
)

// Kind is the taxonomy name surfaced in API responses and logs, per spec §7.
type Kind string

const (
	KindNoClaimAvailable          Kind = "no_claim_available"
	KindLostLease                 Kind = "lost_lease"
	KindRunDeadlineExceeded        Kind = "run_deadline_exceeded"
	KindStepBudgetExceeded         Kind = "step_budget_exceeded"
	KindHandlerCrash               Kind = "handler_crash"
	KindStepHandlerError           Kind = "step_handler_error"
	KindTemplateResolutionError    Kind = "template_resolution_error"
	KindBlueprintNotFound          Kind = "blueprint_not_found"
	KindPackAlreadyInstalled       Kind = "pack_already_installed"
	KindInstallationInProgress     Kind = "installation_in_progress"
	KindInstallationPreviouslyFailed Kind = "installation_previously_failed"
	KindConflictingState           Kind = "conflicting_state"
	KindOwnershipViolation         Kind = "ownership_violation"
	KindInvariantViolation         Kind = "invariant_violation"
	KindInvalidIdentifier          Kind = "invalid_identifier"
	KindMigrationApplyFailed       Kind = "migration_apply_failed"
	KindPackNotInstalled           Kind = "pack_not_installed"
	KindUpgradeNotAllowed          Kind = "upgrade_not_allowed"
	KindNotFound                   Kind = "not_found"
	KindConstraintViolation        Kind = "constraint_violation"
	KindConflict                   Kind = "conflict"
	KindTransientDBError           Kind = "transient_db_error"
)

// Error is a kind-tagged error that wraps an errdefs base sentinel.
type Error struct {
	Kind    Kind
	Message string
	base    error
	wrapped error
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	if e.wrapped != nil {
		return e.wrapped
	}
	return e.base
}

// Is lets errors.Is(err, errdefs.ErrNotFound) succeed transparently.
func (e *Error) Is(target error) bool {
	return errors.Is(e.base, target)
}

func newError(kind Kind, base error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), base: base}
}

// NotFound builds a not_found error, base errdefs.ErrNotFound.
func NotFound(format string, args ...any) *Error {
	return newError(KindNotFound, errdefs.ErrNotFound, format, args...)
}

// Conflict builds a conflict-kind error with the given taxonomy kind, base errdefs.ErrConflict.
// kind must be one of the pack-install conflict kinds or KindConflict itself.
func Conflict(kind Kind, format string, args ...any) *Error {
	return newError(kind, errdefs.ErrConflict, format, args...)
}

// InvalidArgument builds an invalid-argument error, base errdefs.ErrInvalidArgument.
func InvalidArgument(kind Kind, format string, args ...any) *Error {
	return newError(kind, errdefs.ErrInvalidArgument, format, args...)
}

// FailedPrecondition builds a failed-precondition error, base errdefs.ErrFailedPrecondition.
func FailedPrecondition(kind Kind, format string, args ...any) *Error {
	return newError(kind, errdefs.ErrFailedPrecondition, format, args...)
}

// Internal builds an internal/unknown-kind error, base errdefs.ErrUnknown.
func Internal(kind Kind, format string, args ...any) *Error {
	return newError(kind, errdefs.ErrUnknown, format, args...)
}

// Wrap attaches kind to an existing error without discarding its chain.
func Wrap(kind Kind, base error, err error) *Error {
	return &Error{Kind: kind, Message: err.Error(), base: base, wrapped: err}
}

// As extracts the *Error from err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the taxonomy kind of err, or "" if err is not a tagged Error.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return ""
}

// IsNotFound reports whether err (or its wrapped chain) is a not-found error.
func IsNotFound(err error) bool {
	return errdefs.IsNotFound(err)
}

// IsConflict reports whether err (or its wrapped chain) is a conflict error.
func IsConflict(err error) bool {
	return errdefs.IsConflict(err)
}
