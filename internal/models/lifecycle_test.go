package models

import (
	"testing"
	"time"
)

func TestStatusFor(t *testing.T) {
	if s, ok := OutcomeApprove.StatusFor(); !ok || s != StatusApproved {
		t.Errorf("OutcomeApprove.StatusFor() = %v, %v", s, ok)
	}
	if s, ok := OutcomeDeny.StatusFor(); !ok || s != StatusDenied {
		t.Errorf("OutcomeDeny.StatusFor() = %v, %v", s, ok)
	}
	if _, ok := DecisionOutcome("SHRED").StatusFor(); ok {
		t.Error("unknown outcome must not map to a status")
	}
}

func TestTransitionGuards(t *testing.T) {
	all := []ReservationStatus{StatusPending, StatusApproved, StatusDenied, StatusReturned}

	for _, s := range all {
		if got, want := CanDecide(s), s == StatusPending; got != want {
			t.Errorf("CanDecide(%s) = %v, want %v", s, got, want)
		}
		if got, want := CanReturn(s), s == StatusApproved; got != want {
			t.Errorf("CanReturn(%s) = %v, want %v", s, got, want)
		}
		if got, want := IsTerminal(s), s == StatusDenied || s == StatusReturned; got != want {
			t.Errorf("IsTerminal(%s) = %v, want %v", s, got, want)
		}
		if IsTerminal(s) && (CanDecide(s) || CanReturn(s) || CanExtend(s)) {
			t.Errorf("terminal status %s must not permit any transition", s)
		}
	}

	if !IsActive(StatusPending) || !IsActive(StatusApproved) {
		t.Error("pending and approved reservations must count as active")
	}
	if IsActive(StatusDenied) || IsActive(StatusReturned) {
		t.Error("terminal reservations must not count as active")
	}
}

func TestIsOverdue(t *testing.T) {
	now := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)
	ret := time.Date(2024, 6, 8, 0, 0, 0, 0, time.UTC)

	r := &PoolReservation{Status: StatusApproved, ReturnDate: ret}
	if !r.IsOverdue(now) {
		t.Error("approved borrowing past its return date must be overdue")
	}
	if r.DisplayStatus(now) != StatusOverdue {
		t.Errorf("DisplayStatus = %s, want %s", r.DisplayStatus(now), StatusOverdue)
	}

	// Due today is not yet overdue.
	r.ReturnDate = time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	if r.IsOverdue(now) {
		t.Error("borrowing due today must not be overdue")
	}

	// An actual return clears the label even past the date.
	returned := now
	r.ReturnDate = ret
	r.ActualReturnDate = &returned
	if r.IsOverdue(now) {
		t.Error("returned borrowing must never be overdue")
	}

	r.ActualReturnDate = nil
	r.Status = StatusPending
	if r.IsOverdue(now) {
		t.Error("pending borrowing must never be overdue")
	}
}
