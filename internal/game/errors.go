package game

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidWord        = errors.New("invalid word")
	ErrNotFound           = errors.New("not found")
	ErrAlreadyGuessed     = errors.New("word already guessed")
	ErrUnknownTeam        = errors.New("unknown team")
	ErrNoEligibleTeams    = errors.New("no eligible teams")
	ErrEmptyPool          = errors.New("word pool is empty")
	ErrRoundComplete      = errors.New("round complete")
	ErrPreconditionNotMet = errors.New("precondition not met")
	ErrConflict           = errors.New("snapshot conflict")
	ErrSkipLimit          = errors.New("skip limit reached for this turn")
	ErrInvalidSetting     = errors.New("invalid setting")
	ErrInvalidPoints      = errors.New("points must be positive")
)

// PreconditionError reports an operation or transition that is not legal in
// the current phase. It matches ErrPreconditionNotMet.
type PreconditionError struct {
	Phase  PhaseKind
	Reason string
}

func (e *PreconditionError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("precondition not met for %s", e.Phase)
	}
	return fmt.Sprintf("precondition not met for %s: %s", e.Phase, e.Reason)
}

func (e *PreconditionError) Is(target error) bool {
	return target == ErrPreconditionNotMet
}

func preconditionf(phase PhaseKind, format string, args ...any) error {
	return &PreconditionError{Phase: phase, Reason: fmt.Sprintf(format, args...)}
}

// ConflictError is returned by ApplySnapshot when a remote snapshot cannot be
// applied on top of local state. The synchronizer should re-fetch the
// authoritative snapshot instead of retrying.
type ConflictError struct {
	Reason string
	Local  uint64
	Remote uint64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("snapshot conflict (local v%d, remote v%d): %s", e.Local, e.Remote, e.Reason)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}
