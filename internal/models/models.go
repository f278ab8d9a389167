package models

import (
	"time"

	"github.com/google/uuid"

	"reserve/internal/interval"
)

type Role string

const (
	RoleResident Role = "RESIDENT"
	RoleAdmin    Role = "ADMIN"
)

// Actor identifies who is performing an operation. Every mutating call
// receives one explicitly; the engine never reads ambient session state.
type Actor struct {
	UserID uuid.UUID
	Role   Role
}

type ResourceKind string

const (
	ResourceFacility ResourceKind = "FACILITY"
	ResourceVehicle  ResourceKind = "VEHICLE"
	ResourceItem     ResourceKind = "ITEM"
)

type ResourceStatus string

const (
	ResourceStatusAvailable   ResourceStatus = "AVAILABLE"
	ResourceStatusUnavailable ResourceStatus = "UNAVAILABLE"
)

// Resource is a shared community asset residents can reserve. For
// facilities and vehicles Capacity is a headcount; for items Quantity is
// the stock counter that approval decrements.
type Resource struct {
	ID       uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name     string         `gorm:"size:255;not null" json:"name"`
	Kind     ResourceKind   `gorm:"type:resource_kind;not null;index" json:"kind"`
	Status   ResourceStatus `gorm:"type:resource_status;not null" json:"status"`
	Capacity int            `gorm:"not null;default:0" json:"capacity"`
	Quantity int            `gorm:"not null;default:0" json:"quantity"`
}

type ReservationStatus string

const (
	StatusPending  ReservationStatus = "PENDING"
	StatusApproved ReservationStatus = "APPROVED"
	StatusDenied   ReservationStatus = "DENIED"
	StatusReturned ReservationStatus = "RETURNED"

	// StatusOverdue is a derived, read-time label for approved pool
	// reservations past their return date. It is never stored.
	StatusOverdue ReservationStatus = "OVERDUE"
)

type ReservationKind string

const (
	KindSlot ReservationKind = "SLOT"
	KindPool ReservationKind = "POOL"
)

// Reservation is the common view over the two concrete reservation kinds.
type Reservation interface {
	ReservationID() uuid.UUID
	Kind() ReservationKind
	ResourceRef() uuid.UUID
	RequesterRef() uuid.UUID
	CurrentStatus() ReservationStatus
}

// SlotReservation is a facility booking or vehicle request: one calendar
// date plus a half-open [StartTime, EndTime) window on that date.
type SlotReservation struct {
	ID          uuid.UUID         `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ResourceID  uuid.UUID         `gorm:"type:uuid;not null;index" json:"resource_id"`
	Resource    Resource          `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
	RequesterID uuid.UUID         `gorm:"type:uuid;not null;index" json:"requester_id"`
	Date        time.Time         `gorm:"type:date;not null;index" json:"date"`
	StartTime   time.Time         `gorm:"not null" json:"start_time"`
	EndTime     time.Time         `gorm:"not null" json:"end_time"`
	Attendees   int               `gorm:"not null;default:0" json:"attendees"`
	Purpose     string            `gorm:"size:500" json:"purpose"`
	Status      ReservationStatus `gorm:"type:reservation_status;not null;index" json:"status"`
	AdminNotes  string            `gorm:"size:1000" json:"admin_notes"`
	CreatedAt   time.Time         `gorm:"not null;default:now()" json:"created_at"`
}

func (r *SlotReservation) ReservationID() uuid.UUID         { return r.ID }
func (r *SlotReservation) Kind() ReservationKind            { return KindSlot }
func (r *SlotReservation) ResourceRef() uuid.UUID           { return r.ResourceID }
func (r *SlotReservation) RequesterRef() uuid.UUID          { return r.RequesterID }
func (r *SlotReservation) CurrentStatus() ReservationStatus { return r.Status }

// PoolReservation is an item borrowing: N units over an inclusive
// [BorrowDate, ReturnDate] calendar-day range.
type PoolReservation struct {
	ID               uuid.UUID         `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ResourceID       uuid.UUID         `gorm:"type:uuid;not null;index" json:"resource_id"`
	Resource         Resource          `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"-"`
	RequesterID      uuid.UUID         `gorm:"type:uuid;not null;index" json:"requester_id"`
	BorrowDate       time.Time         `gorm:"type:date;not null;index" json:"borrow_date"`
	ReturnDate       time.Time         `gorm:"type:date;not null" json:"return_date"`
	Quantity         int               `gorm:"not null" json:"quantity"`
	Purpose          string            `gorm:"size:500" json:"purpose"`
	Status           ReservationStatus `gorm:"type:reservation_status;not null;index" json:"status"`
	AdminNotes       string            `gorm:"size:1000" json:"admin_notes"`
	ActualReturnDate *time.Time        `json:"actual_return_date"`
	ConditionAfter   string            `gorm:"size:100" json:"condition_after"`
	CreatedAt        time.Time         `gorm:"not null;default:now()" json:"created_at"`
}

func (r *PoolReservation) ReservationID() uuid.UUID         { return r.ID }
func (r *PoolReservation) Kind() ReservationKind            { return KindPool }
func (r *PoolReservation) ResourceRef() uuid.UUID           { return r.ResourceID }
func (r *PoolReservation) RequesterRef() uuid.UUID          { return r.RequesterID }
func (r *PoolReservation) CurrentStatus() ReservationStatus { return r.Status }

// IsOverdue reports whether the borrowing is approved, unreturned, and
// past its return date as of now.
func (r *PoolReservation) IsOverdue(now time.Time) bool {
	if r.Status != StatusApproved || r.ActualReturnDate != nil {
		return false
	}
	return interval.DayOf(r.ReturnDate).Before(interval.DayOf(now))
}

// DisplayStatus is the stored status plus the derived overdue label.
func (r *PoolReservation) DisplayStatus(now time.Time) ReservationStatus {
	if r.IsOverdue(now) {
		return StatusOverdue
	}
	return r.Status
}

// ExtensionRequest is the structured payload embedded in admin notes when
// a resident asks to keep a borrowing longer. The reservation drops back
// to pending and is decided through the normal approval path.
type ExtensionRequest struct {
	RequestedReturnDate time.Time `json:"requested_return_date"`
	Reason              string    `json:"reason"`
	RequestedAt         time.Time `json:"requested_at"`
}
