package models

// Lifecycle: PENDING → APPROVED | DENIED; APPROVED → RETURNED (pool only).
// DENIED and RETURNED are terminal. OVERDUE is derived at read time and
// never participates in transitions.

// DecisionOutcome is an administrator's verdict on a pending reservation.
type DecisionOutcome string

const (
	OutcomeApprove DecisionOutcome = "APPROVE"
	OutcomeDeny    DecisionOutcome = "DENY"
)

// StatusFor maps a decision outcome to the status it stores.
func (o DecisionOutcome) StatusFor() (ReservationStatus, bool) {
	switch o {
	case OutcomeApprove:
		return StatusApproved, true
	case OutcomeDeny:
		return StatusDenied, true
	default:
		return "", false
	}
}

// CanDecide reports whether an admin decision may be applied from s.
// Only pending reservations are decidable; deciding anything else is a
// per-item failure, never a batch abort.
func CanDecide(s ReservationStatus) bool {
	return s == StatusPending
}

// CanReturn reports whether a resident return may be applied from s.
func CanReturn(s ReservationStatus) bool {
	return s == StatusApproved
}

// CanExtend reports whether an extension request may be filed from s.
// Extensions re-enter the pending queue, so only active borrowings qualify.
func CanExtend(s ReservationStatus) bool {
	return s == StatusApproved
}

// IsTerminal reports whether s permits no further transition.
func IsTerminal(s ReservationStatus) bool {
	return s == StatusDenied || s == StatusReturned
}

// IsActive reports whether a reservation in s holds or contends for the
// resource. Active reservations are the ones availability checks count.
func IsActive(s ReservationStatus) bool {
	return s == StatusPending || s == StatusApproved
}
