/*
errors.go - Centralized error taxonomy for the gathering engine

PURPOSE:
  All failure kinds in one place. Every error here is a caller-correctable
  precondition violation, never transient: there is no retry policy, and a
  failed mutation is always fully rolled back.

ERROR CATEGORIES:
  1. Identity errors  - malformed or duplicate gathering ids
  2. Lifecycle errors - mutations against a closed gathering
  3. Membership errors - missing members, name collisions, removal blocks
  4. Amount errors    - non-positive expense amounts, negative roster sizes

USAGE:
  Stores and the service facade surface these kinds verbatim; storage
  technology errors never leak. Callers match with errors.Is():

    if errors.Is(err, gathering.ErrMemberNotFound) { ... }

SEE ALSO:
  - store.go: the contract that produces these errors
  - api/handlers.go: maps kinds to HTTP status codes
*/
package gathering

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidID is returned when a gathering id does not start with a
	// calendar-valid YYYY-MM-DD date fragment.
	ErrInvalidID = errors.New("invalid gathering id")

	// ErrAlreadyExists is returned when creating a gathering whose id is taken.
	ErrAlreadyExists = errors.New("gathering already exists")

	// ErrNotFound is returned when a referenced gathering doesn't exist.
	ErrNotFound = errors.New("gathering not found")

	// ErrGatheringClosed is returned when a mutation targets a closed gathering.
	ErrGatheringClosed = errors.New("gathering is closed")

	// ErrAlreadyClosed is returned when closing a gathering twice.
	ErrAlreadyClosed = errors.New("gathering already closed")

	// ErrInvalidAmount is returned when an expense amount is not strictly positive.
	ErrInvalidAmount = errors.New("expense amount must be positive")

	// ErrInvalidMemberCount is returned when creating a gathering with a
	// negative member count.
	ErrInvalidMemberCount = errors.New("member count must be a non-negative integer")

	// ErrMemberNotFound is returned when a referenced member doesn't exist
	// and, for expense recording, no placeholder is available either.
	ErrMemberNotFound = errors.New("member not found")

	// ErrDuplicateName is returned when a member name is already taken
	// within the same gathering.
	ErrDuplicateName = errors.New("member name already taken")

	// ErrMemberHasActivity is returned when removing a member with recorded
	// expenses or payments.
	ErrMemberHasActivity = errors.New("member has recorded activity")
)

// =============================================================================
// STRUCTURED ERRORS - Carry the violated precondition's context
// =============================================================================

// InvalidIDError identifies the malformed gathering id.
type InvalidIDError struct {
	ID string
}

func (e *InvalidIDError) Error() string {
	return fmt.Sprintf("gathering id %q must start with a valid date in format yyyy-mm-dd", e.ID)
}

func (e *InvalidIDError) Unwrap() error { return ErrInvalidID }

// NotFoundError identifies the missing gathering.
type NotFoundError struct {
	GatheringID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("gathering %q not found", e.GatheringID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ClosedError identifies the closed gathering and the rejected operation.
type ClosedError struct {
	GatheringID string
	Operation   string
}

func (e *ClosedError) Error() string {
	return fmt.Sprintf("cannot %s: gathering %q is closed", e.Operation, e.GatheringID)
}

func (e *ClosedError) Unwrap() error { return ErrGatheringClosed }

// MemberNotFoundError identifies the missing member.
type MemberNotFoundError struct {
	GatheringID string
	MemberName  string
}

func (e *MemberNotFoundError) Error() string {
	return fmt.Sprintf("member %q not found in gathering %q", e.MemberName, e.GatheringID)
}

func (e *MemberNotFoundError) Unwrap() error { return ErrMemberNotFound }

// DuplicateNameError identifies the colliding member name.
type DuplicateNameError struct {
	GatheringID string
	MemberName  string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("member %q already exists in gathering %q", e.MemberName, e.GatheringID)
}

func (e *DuplicateNameError) Unwrap() error { return ErrDuplicateName }

// MemberActivityError identifies the member blocking removal.
type MemberActivityError struct {
	GatheringID string
	MemberName  string
}

func (e *MemberActivityError) Error() string {
	return fmt.Sprintf("cannot remove member %q from gathering %q: member has recorded expenses or payments",
		e.MemberName, e.GatheringID)
}

func (e *MemberActivityError) Unwrap() error { return ErrMemberHasActivity }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing gathering or member.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrMemberNotFound)
}

// IsConflict returns true if the error indicates a state conflict
// (duplicates, closed-gathering guards, removal blocks).
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrDuplicateName) ||
		errors.Is(err, ErrGatheringClosed) ||
		errors.Is(err, ErrAlreadyClosed) ||
		errors.Is(err, ErrMemberHasActivity)
}

// IsInvalid returns true if the error indicates malformed input.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidMemberCount)
}
