package services

import (
	"context"
	"log"

	"github.com/google/uuid"

	"reserve/internal/models"
)

// Decision is one administrator verdict inside a batch.
type Decision struct {
	Kind    models.ReservationKind `json:"kind"`
	ID      uuid.UUID              `json:"id"`
	Outcome models.DecisionOutcome `json:"outcome"`
	Notes   string                 `json:"notes"`
}

type BatchFailure struct {
	ID     uuid.UUID `json:"id"`
	Reason string    `json:"reason"`
}

// BatchResult reports per-item outcomes. Failures never roll back or
// block the other items.
type BatchResult struct {
	Succeeded []uuid.UUID    `json:"succeeded"`
	Failed    []BatchFailure `json:"failed"`
}

// ApprovalCoordinator applies administrator decisions, one transaction
// per reservation. The single-decision path and the batch path share the
// same underlying Decide transaction so side-effect behavior cannot
// diverge between them.
type ApprovalCoordinator struct {
	reservations ReservationService
}

func NewApprovalCoordinator(reservations ReservationService) *ApprovalCoordinator {
	return &ApprovalCoordinator{reservations: reservations}
}

// DecideOne applies a single decision. Equivalent to a one-element batch.
func (c *ApprovalCoordinator) DecideOne(ctx context.Context, actor models.Actor, d Decision) error {
	return c.reservations.Decide(ctx, actor, d.Kind, d.ID, d.Outcome, d.Notes)
}

// DecideBatch applies each decision independently and collects per-item
// outcomes. Deliberately best-effort: an already-decided or missing
// reservation fails that item only, and earlier items stay committed.
func (c *ApprovalCoordinator) DecideBatch(ctx context.Context, actor models.Actor, decisions []Decision) BatchResult {
	var result BatchResult
	for _, d := range decisions {
		if err := c.reservations.Decide(ctx, actor, d.Kind, d.ID, d.Outcome, d.Notes); err != nil {
			log.Printf("[WARN] DecideBatch: decision on reservation %s failed: %v", d.ID, err)
			result.Failed = append(result.Failed, BatchFailure{ID: d.ID, Reason: err.Error()})
			continue
		}
		result.Succeeded = append(result.Succeeded, d.ID)
	}
	log.Printf("[INFO] DecideBatch: %d succeeded, %d failed of %d decision(s) by admin %s",
		len(result.Succeeded), len(result.Failed), len(decisions), actor.UserID)
	return result
}
