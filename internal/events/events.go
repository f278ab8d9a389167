// Package events carries the domain events the engine emits after a
// transaction commits. Delivery is fire-and-forget: a publisher failure
// is logged and never propagated into a transaction outcome.
package events

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"reserve/internal/models"
)

type Type string

const (
	TypeReservationCreated  Type = "reservation.created"
	TypeReservationDecided  Type = "reservation.decided"
	TypeReservationReturned Type = "reservation.returned"
	TypeReservationDueSoon  Type = "reservation.due_soon"
	TypeReservationOverdue  Type = "reservation.overdue"
)

type Event struct {
	Type          Type                     `json:"type"`
	Kind          models.ReservationKind   `json:"kind"`
	ReservationID uuid.UUID                `json:"reservation_id"`
	ResourceID    uuid.UUID                `json:"resource_id"`
	RequesterID   uuid.UUID                `json:"requester_id"`
	Status        models.ReservationStatus `json:"status"`
	OccurredAt    time.Time                `json:"occurred_at"`
}

// Publisher delivers events to whatever notification layer is listening.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// LogPublisher writes events to the process log. It is the default when
// no broker is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, ev Event) error {
	log.Printf("[INFO] event: type=%s kind=%s reservation=%s status=%s", ev.Type, ev.Kind, ev.ReservationID, ev.Status)
	return nil
}

// Emit publishes ev and logs a warning on failure. Callers use it after
// commit so notification trouble cannot affect the stored state.
func Emit(ctx context.Context, p Publisher, ev Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, ev); err != nil {
		log.Printf("[WARN] event publish failed: type=%s reservation=%s: %v", ev.Type, ev.ReservationID, err)
	}
}
