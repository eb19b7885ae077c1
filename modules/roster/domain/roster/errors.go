package roster

import (
	"fmt"

	"github.com/iota-uz/roster-sync/pkg/serrors"
)

var (
	// ErrInput marks a row that is unusable before resolution.
	ErrInput = serrors.NewError("ROSTER_INPUT", "row is not usable", "Roster.Errors.Input")
	// ErrResolution marks a row whose org cannot be resolved or created.
	ErrResolution = serrors.NewError("ROSTER_RESOLUTION", "cannot resolve organization", "Roster.Errors.Resolution")
	ErrConflict   = serrors.NewError("ROSTER_CONFLICT", "uniqueness conflict", "Roster.Errors.Conflict")
	ErrRemote     = serrors.NewError("ROSTER_REMOTE", "remote store call failed", "Roster.Errors.Remote")
	// ErrClassification is only raised in strict level mode.
	ErrClassification = serrors.NewError("ROSTER_CLASSIFICATION", "level could not be classified", "Roster.Errors.Classification")
	ErrNotFound       = serrors.NewError("ROSTER_NOT_FOUND", "record not found", "Roster.Errors.NotFound")
)

// ConflictError is returned by Store.CreateOrg when the code is already taken.
type ConflictError struct {
	Code int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: organization code %d already exists", ErrConflict.Message, e.Code)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}
