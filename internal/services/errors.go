package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"reserve/internal/models"
)

var (
	// ErrNotRequester is returned when a resident attempts a return or
	// extension on a borrowing they did not submit.
	ErrNotRequester = errors.New("only the original requester may perform this action")

	// ErrReservationNotFound is returned when the referenced reservation
	// does not exist.
	ErrReservationNotFound = errors.New("reservation not found")
)

// ConflictReason tags why an availability check rejected a request.
type ConflictReason string

const (
	// ReasonSlotTaken: another active reservation overlaps the requested window.
	ReasonSlotTaken ConflictReason = "SLOT_TAKEN"

	// ReasonCapacityExceeded: the attendee count exceeds the resource headcount.
	ReasonCapacityExceeded ConflictReason = "CAPACITY_EXCEEDED"

	// ReasonInsufficientStock: the requested quantity exceeds what remains
	// in the pool over the requested range.
	ReasonInsufficientStock ConflictReason = "INSUFFICIENT_STOCK"

	// ReasonResourceUnavailable: the resource itself is flagged unavailable.
	ReasonResourceUnavailable ConflictReason = "RESOURCE_UNAVAILABLE"
)

// ValidationError reports a missing or malformed field. Nothing is
// persisted when one is returned.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// ConflictError reports a failed availability check, carrying the
// conflicting reservations so the caller can show them and offer the
// advisory alternatives.
type ConflictError struct {
	Reasons           []ConflictReason
	Conflicts         []models.Reservation
	RemainingCapacity int
	Suggestions       []SlotSuggestion
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("reservation conflicts with %d existing reservation(s): %v", len(e.Conflicts), e.Reasons)
}

// InvalidStateError reports a transition attempted from a status that
// does not allow it. It is recoverable and scoped to one reservation;
// batch processing reports it per item and keeps going.
type InvalidStateError struct {
	ReservationID uuid.UUID
	Current       models.ReservationStatus
	Attempted     string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s reservation %s in status %s", e.Attempted, e.ReservationID, e.Current)
}

// ResourceLookupError reports that a referenced resource no longer
// exists. During the approve-side stock decrement it is logged and
// swallowed rather than failing the decision.
type ResourceLookupError struct {
	ResourceID uuid.UUID
}

func (e *ResourceLookupError) Error() string {
	return fmt.Sprintf("resource %s not found", e.ResourceID)
}
