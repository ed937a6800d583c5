package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures for the HTTP boundary. Every error that
// crosses a service boundary carries exactly one kind; anything
// unclassified is treated as KindInternal and not leaked to callers.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindValidation
	KindInvalidState
	KindConflict
	KindNotFound
	KindUnavailable
)

type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func E(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func Wrap(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the kind of err, defaulting to KindInternal.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

var (
	ErrStageNotOpen           = E(KindInvalidState, "stage is not open for enrollment")
	ErrStageNotInQualifying   = E(KindInvalidState, "stage is not in qualifying")
	ErrInvalidStateTransition = E(KindInvalidState, "operation not permitted in current stage state")
	ErrTeamAlreadyEnrolled    = E(KindConflict, "team already enrolled in stage")
	ErrCarNotOwnedByTeam      = E(KindValidation, "car does not belong to team")
	ErrDriverAlreadyCommitted = E(KindConflict, "driver already committed in this stage")
	ErrNoCandidates           = E(KindNotFound, "no pending candidates for team")
	ErrAlreadyAssigned        = E(KindConflict, "participation already has a driver")
	ErrBracketUnavailable     = E(KindUnavailable, "tournament service unavailable")
	ErrMatchNotOpen           = E(KindConflict, "match is already closed")
	ErrBattleClosed           = E(KindConflict, "battle already has a winner")
	ErrPartNotInstalled       = E(KindValidation, "part is not installed on the target car")
	ErrPassLimitReached       = E(KindConflict, "battle already has the maximum number of passes")
	ErrInsufficientBalance    = E(KindValidation, "insufficient pix balance")
	ErrStageNotFound          = E(KindNotFound, "stage not found")
	ErrTeamNotFound           = E(KindNotFound, "team not found")
	ErrDriverNotFound         = E(KindNotFound, "driver not found")
	ErrCarNotFound            = E(KindNotFound, "car not found")
	ErrPartNotFound           = E(KindNotFound, "part not found")
	ErrBattleNotFound         = E(KindNotFound, "battle not found")
	ErrParticipationNotFound  = E(KindNotFound, "participation not found")
	ErrNotCandidacyOwner      = E(KindValidation, "driver does not own this candidacy")
)
