package casework

import (
	"errors"

	"caseflow/internal/errs"
)

var (
	ErrStaleState        = errs.New(errs.KindStaleState, "case already handled")
	ErrInvalidTransition = errs.New(errs.KindInvalidTransition, "invalid case transition")
	ErrCaseNotFound      = errs.New(errs.KindNotFound, "case not found")
	ErrUploadFailure     = errs.New(errs.KindUploadFailure, "could not save one or more files, your answers are saved")

	ErrUnknownStatus      = errs.New(errs.KindInvalidInput, "unknown case status")
	ErrUnknownEvent       = errs.New(errs.KindInvalidInput, "unknown case event")
	ErrAssigneeRequired   = errs.New(errs.KindInvalidInput, "assignee is required")
	ErrInvalidAssignee    = errs.New(errs.KindInvalidInput, "invalid assignee")
	ErrInvalidQCResult    = errs.New(errs.KindInvalidInput, "invalid qc result")
	ErrCaseNumberRequired = errs.New(errs.KindInvalidInput, "case number is required")
	ErrEventTimeRequired  = errs.New(errs.KindInvalidInput, "event time is required")

	ErrNotAssignee         = errs.New(errs.KindInvalidTransition, "actor is not the current assignee")
	ErrNoAcceptanceExpiry  = errs.New(errs.KindInvalidTransition, "direct gig allocations never expire")
	ErrDeadlineNotReached  = errs.New(errs.KindInvalidTransition, "acceptance deadline not reached")
	ErrReworkPending       = errs.New(errs.KindInvalidTransition, "case is waiting for rework")
	ErrReworkWindowOpen    = errs.New(errs.KindInvalidTransition, "rework window has not expired")
	ErrReworkWindowExpired = errs.New(errs.KindStaleState, "rework window expired")
)

// ErrorKind is the caller-facing classification of a core error.
type ErrorKind = errs.Kind

// KindOf classifies err using the shared error taxonomy.
func KindOf(err error) ErrorKind {
	return errs.KindOf(err)
}

// IsBenignRace reports errors that mean another actor won the precondition.
func IsBenignRace(err error) bool {
	return errors.Is(err, ErrStaleState) || errs.IsKind(err, errs.KindStaleState)
}
