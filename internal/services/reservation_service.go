package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"reserve/internal/events"
	"reserve/internal/interval"
	"reserve/internal/models"
	"reserve/internal/repositories"
)

// ─── Service Interface ────────────────────────────────────────────────────────

// TxRunner runs a function inside one atomic transaction. *gorm.DB
// satisfies it; tests substitute an in-memory runner.
type TxRunner interface {
	Transaction(fc func(tx *gorm.DB) error, opts ...*sql.TxOptions) error
}

// ReservationService owns the reservation lifecycle: creation with the
// authoritative conflict check, administrator decisions with the
// approve-side stock decrement, resident returns, and extensions.
//
// Every mutating operation runs its read-check-write sequence inside one
// transaction, anchored on a FOR UPDATE lock of the resource row so two
// concurrent submissions against the same resource cannot both observe
// "no conflict" and both commit.
type ReservationService interface {
	CreateSlot(ctx context.Context, actor models.Actor, req SlotRequest) (*models.SlotReservation, error)
	CreatePool(ctx context.Context, actor models.Actor, req PoolRequest) (*models.PoolReservation, error)
	Decide(ctx context.Context, actor models.Actor, kind models.ReservationKind, id uuid.UUID, outcome models.DecisionOutcome, notes string) error
	Return(ctx context.Context, actor models.Actor, id uuid.UUID, condition, damageNotes string) (*models.PoolReservation, error)
	Extend(ctx context.Context, actor models.Actor, id uuid.UUID, newReturnDate time.Time, reason string) (*models.PoolReservation, error)

	ListPending(ctx context.Context) ([]models.SlotReservation, []models.PoolReservation, error)
	ListByRequester(ctx context.Context, userID uuid.UUID) ([]models.SlotReservation, []models.PoolReservation, error)
}

// ─── Implementation ───────────────────────────────────────────────────────────

type reservationService struct {
	db           TxRunner
	availability *AvailabilityService
	resourceRepo repositories.ResourceRepository
	slotRepo     repositories.SlotReservationRepository
	poolRepo     repositories.PoolReservationRepository
	publisher    events.Publisher
	now          func() time.Time
}

// NewReservationService wires up all dependencies and returns a ReservationService.
func NewReservationService(
	db TxRunner,
	availability *AvailabilityService,
	resourceRepo repositories.ResourceRepository,
	slotRepo repositories.SlotReservationRepository,
	poolRepo repositories.PoolReservationRepository,
	publisher events.Publisher,
) ReservationService {
	return &reservationService{
		db:           db,
		availability: availability,
		resourceRepo: resourceRepo,
		slotRepo:     slotRepo,
		poolRepo:     poolRepo,
		publisher:    publisher,
		now:          time.Now,
	}
}

// ─── Creation ─────────────────────────────────────────────────────────────────

// CreateSlot validates and submits a facility booking or vehicle request.
//
// Inside one transaction: the resource row is locked (serializing
// concurrent submissions for the same resource), the availability check
// runs against the now-stable active set, and the reservation is
// persisted as pending. A failed check surfaces as a ConflictError
// carrying the conflicting set and advisory alternative windows.
func (s *reservationService) CreateSlot(ctx context.Context, actor models.Actor, req SlotRequest) (*models.SlotReservation, error) {
	if err := validateSlotRequest(req); err != nil {
		return nil, err
	}

	var created *models.SlotReservation
	err := s.db.Transaction(func(tx *gorm.DB) error {
		resource, err := s.resourceRepo.GetByIDForUpdate(tx, req.ResourceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &ResourceLookupError{ResourceID: req.ResourceID}
			}
			return err
		}

		result, err := s.availability.CheckSlot(tx, req)
		if err != nil {
			return err
		}
		if !result.Available {
			suggestions, serr := s.availability.SuggestSlots(tx, req)
			if serr != nil {
				log.Printf("[WARN] CreateSlot: suggestion scan failed for resource %s: %v", req.ResourceID, serr)
			}
			return &ConflictError{
				Reasons:           result.Reasons,
				Conflicts:         result.Conflicts,
				RemainingCapacity: result.RemainingCapacity,
				Suggestions:       suggestions,
			}
		}

		created = &models.SlotReservation{
			ResourceID:  resource.ID,
			RequesterID: actor.UserID,
			Date:        interval.DayOf(req.Date),
			StartTime:   req.StartTime,
			EndTime:     req.EndTime,
			Attendees:   req.Attendees,
			Purpose:     req.Purpose,
			Status:      models.StatusPending,
			CreatedAt:   s.now().UTC(),
		}
		if err := s.slotRepo.Create(tx, created); err != nil {
			log.Printf("[ERROR] CreateSlot: failed to persist reservation for resource %s: %v", req.ResourceID, err)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[INFO] CreateSlot: reservation %s created for resource %s on %s by user %s",
		created.ID, created.ResourceID, created.Date.Format("2006-01-02"), actor.UserID)
	events.Emit(ctx, s.publisher, events.Event{
		Type:          events.TypeReservationCreated,
		Kind:          models.KindSlot,
		ReservationID: created.ID,
		ResourceID:    created.ResourceID,
		RequesterID:   created.RequesterID,
		Status:        created.Status,
		OccurredAt:    s.now().UTC(),
	})
	return created, nil
}

// CreatePool validates and submits an item borrowing, with the same
// transaction shape as CreateSlot: resource row lock, quantity check over
// intersecting ranges, insert as pending.
func (s *reservationService) CreatePool(ctx context.Context, actor models.Actor, req PoolRequest) (*models.PoolReservation, error) {
	if err := validatePoolRequest(req); err != nil {
		return nil, err
	}

	var created *models.PoolReservation
	err := s.db.Transaction(func(tx *gorm.DB) error {
		resource, err := s.resourceRepo.GetByIDForUpdate(tx, req.ResourceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &ResourceLookupError{ResourceID: req.ResourceID}
			}
			return err
		}

		result, err := s.availability.CheckPool(tx, req)
		if err != nil {
			return err
		}
		if !result.Available {
			return &ConflictError{
				Reasons:           result.Reasons,
				Conflicts:         result.Conflicts,
				RemainingCapacity: result.RemainingCapacity,
			}
		}

		created = &models.PoolReservation{
			ResourceID:  resource.ID,
			RequesterID: actor.UserID,
			BorrowDate:  interval.DayOf(req.BorrowDate),
			ReturnDate:  interval.DayOf(req.ReturnDate),
			Quantity:    req.Quantity,
			Purpose:     req.Purpose,
			Status:      models.StatusPending,
			CreatedAt:   s.now().UTC(),
		}
		if err := s.poolRepo.Create(tx, created); err != nil {
			log.Printf("[ERROR] CreatePool: failed to persist borrowing for item %s: %v", req.ResourceID, err)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[INFO] CreatePool: borrowing %s created for item %s (%d units, %s..%s) by user %s",
		created.ID, created.ResourceID, created.Quantity,
		created.BorrowDate.Format("2006-01-02"), created.ReturnDate.Format("2006-01-02"), actor.UserID)
	events.Emit(ctx, s.publisher, events.Event{
		Type:          events.TypeReservationCreated,
		Kind:          models.KindPool,
		ReservationID: created.ID,
		ResourceID:    created.ResourceID,
		RequesterID:   created.RequesterID,
		Status:        created.Status,
		OccurredAt:    s.now().UTC(),
	})
	return created, nil
}

// ─── Decisions ────────────────────────────────────────────────────────────────

// Decide applies a single administrator decision inside one transaction.
//
// pending → approved|denied, with admin notes attached. Approving a pool
// reservation also decrements the item stock in the same transaction, so
// a decided-but-not-decremented state is never visible. If the item row
// has vanished the decision still commits and the skipped decrement is
// logged as a data-integrity warning.
func (s *reservationService) Decide(ctx context.Context, actor models.Actor, kind models.ReservationKind, id uuid.UUID, outcome models.DecisionOutcome, notes string) error {
	status, ok := outcome.StatusFor()
	if !ok {
		return &ValidationError{Field: "outcome", Reason: "must be APPROVE or DENY"}
	}

	var decided models.Reservation
	err := s.db.Transaction(func(tx *gorm.DB) error {
		switch kind {
		case models.KindSlot:
			r, err := s.slotRepo.GetByIDForUpdate(tx, id)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrReservationNotFound
				}
				return err
			}
			if !models.CanDecide(r.Status) {
				return &InvalidStateError{ReservationID: id, Current: r.Status, Attempted: "decide"}
			}
			if err := s.slotRepo.UpdateDecision(tx, id, status, notes); err != nil {
				return err
			}
			r.Status = status
			decided = r
			return nil

		case models.KindPool:
			r, err := s.poolRepo.GetByIDForUpdate(tx, id)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrReservationNotFound
				}
				return err
			}
			if !models.CanDecide(r.Status) {
				return &InvalidStateError{ReservationID: id, Current: r.Status, Attempted: "decide"}
			}
			if err := s.poolRepo.UpdateDecision(tx, id, status, notes); err != nil {
				return err
			}
			if status == models.StatusApproved {
				if err := s.decrementStock(tx, r); err != nil {
					return err
				}
			}
			r.Status = status
			decided = r
			return nil

		default:
			return &ValidationError{Field: "kind", Reason: "unknown reservation kind"}
		}
	})
	if err != nil {
		return err
	}

	log.Printf("[INFO] Decide: reservation %s (%s) %s by admin %s", id, kind, status, actor.UserID)
	events.Emit(ctx, s.publisher, events.Event{
		Type:          events.TypeReservationDecided,
		Kind:          kind,
		ReservationID: id,
		ResourceID:    decided.ResourceRef(),
		RequesterID:   decided.RequesterRef(),
		Status:        status,
		OccurredAt:    s.now().UTC(),
	})
	return nil
}

// decrementStock deducts the approved quantity from the item's stock
// counter. A missing item row does not fail the decision: the skip is
// logged as a data-integrity warning and the transaction commits.
func (s *reservationService) decrementStock(tx *gorm.DB, r *models.PoolReservation) error {
	if _, err := s.resourceRepo.GetByID(tx, r.ResourceID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[WARN] Decide: data-integrity: item %s for borrowing %s no longer exists, stock decrement skipped",
				r.ResourceID, r.ID)
			return nil
		}
		return err
	}
	if err := s.resourceRepo.DecrementQuantity(tx, r.ResourceID, r.Quantity); err != nil {
		log.Printf("[ERROR] Decide: failed to decrement stock for item %s: %v", r.ResourceID, err)
		return err
	}
	return nil
}

// restoreStock adds the borrowing's quantity back to the item's on-hand
// counter when the approval hold is released. A missing item row is
// logged and skipped, mirroring the approve-side decrement.
func (s *reservationService) restoreStock(tx *gorm.DB, r *models.PoolReservation) error {
	if _, err := s.resourceRepo.GetByID(tx, r.ResourceID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[WARN] data-integrity: item %s for borrowing %s no longer exists, stock restore skipped",
				r.ResourceID, r.ID)
			return nil
		}
		return err
	}
	if err := s.resourceRepo.IncrementQuantity(tx, r.ResourceID, r.Quantity); err != nil {
		log.Printf("[ERROR] failed to restore stock for item %s: %v", r.ResourceID, err)
		return err
	}
	return nil
}

// ─── Return & Extend ──────────────────────────────────────────────────────────

// Return transitions an approved borrowing to returned, recording the
// actual return date and the item's condition. Only the original
// requester may return.
func (s *reservationService) Return(ctx context.Context, actor models.Actor, id uuid.UUID, condition, damageNotes string) (*models.PoolReservation, error) {
	var returned *models.PoolReservation
	err := s.db.Transaction(func(tx *gorm.DB) error {
		r, err := s.poolRepo.GetByIDForUpdate(tx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReservationNotFound
			}
			return err
		}
		if r.RequesterID != actor.UserID {
			return ErrNotRequester
		}
		if !models.CanReturn(r.Status) {
			return &InvalidStateError{ReservationID: id, Current: r.Status, Attempted: "return"}
		}

		returnedAt := interval.DayOf(s.now())
		if err := s.poolRepo.MarkReturned(tx, id, returnedAt, condition, damageNotes); err != nil {
			log.Printf("[ERROR] Return: failed to mark borrowing %s returned: %v", id, err)
			return err
		}
		if err := s.restoreStock(tx, r); err != nil {
			return err
		}
		r.Status = models.StatusReturned
		r.ActualReturnDate = &returnedAt
		r.ConditionAfter = condition
		r.AdminNotes = damageNotes
		returned = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[INFO] Return: borrowing %s returned by user %s (condition=%s)", id, actor.UserID, condition)
	events.Emit(ctx, s.publisher, events.Event{
		Type:          events.TypeReservationReturned,
		Kind:          models.KindPool,
		ReservationID: returned.ID,
		ResourceID:    returned.ResourceID,
		RequesterID:   returned.RequesterID,
		Status:        returned.Status,
		OccurredAt:    s.now().UTC(),
	})
	return returned, nil
}

// Extend files an extension request for an active borrowing. It is not a
// new state: the borrowing drops back to pending with the structured
// request embedded in admin notes, and a fresh admin decision follows
// through the normal Decide path.
func (s *reservationService) Extend(ctx context.Context, actor models.Actor, id uuid.UUID, newReturnDate time.Time, reason string) (*models.PoolReservation, error) {
	var extended *models.PoolReservation
	err := s.db.Transaction(func(tx *gorm.DB) error {
		r, err := s.poolRepo.GetByIDForUpdate(tx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReservationNotFound
			}
			return err
		}
		if r.RequesterID != actor.UserID {
			return ErrNotRequester
		}
		if !models.CanExtend(r.Status) {
			return &InvalidStateError{ReservationID: id, Current: r.Status, Attempted: "extend"}
		}
		if interval.DayOf(newReturnDate).Before(interval.DayOf(r.ReturnDate)) {
			return &ValidationError{Field: "new_return_date", Reason: "must not be before the current return date"}
		}

		payload, err := json.Marshal(models.ExtensionRequest{
			RequestedReturnDate: interval.DayOf(newReturnDate),
			Reason:              reason,
			RequestedAt:         s.now().UTC(),
		})
		if err != nil {
			return err
		}
		if err := s.poolRepo.MarkExtensionRequested(tx, id, string(payload)); err != nil {
			log.Printf("[ERROR] Extend: failed to file extension for borrowing %s: %v", id, err)
			return err
		}
		// The borrowing is back in the pending queue: release its approval
		// hold so the availability math counts it once, as pending. A fresh
		// approval deducts it again.
		if err := s.restoreStock(tx, r); err != nil {
			return err
		}
		r.Status = models.StatusPending
		r.AdminNotes = string(payload)
		extended = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[INFO] Extend: borrowing %s re-entered pending with extension to %s by user %s",
		id, newReturnDate.Format("2006-01-02"), actor.UserID)
	return extended, nil
}

// ─── Queries ──────────────────────────────────────────────────────────────────

func (s *reservationService) ListPending(_ context.Context) ([]models.SlotReservation, []models.PoolReservation, error) {
	slots, err := s.slotRepo.ListPending(nil)
	if err != nil {
		return nil, nil, err
	}
	pools, err := s.poolRepo.ListPending(nil)
	if err != nil {
		return nil, nil, err
	}
	return slots, pools, nil
}

func (s *reservationService) ListByRequester(_ context.Context, userID uuid.UUID) ([]models.SlotReservation, []models.PoolReservation, error) {
	slots, err := s.slotRepo.ListByRequester(nil, userID)
	if err != nil {
		return nil, nil, err
	}
	pools, err := s.poolRepo.ListByRequester(nil, userID)
	if err != nil {
		return nil, nil, err
	}
	return slots, pools, nil
}

// ─── Request Validation ───────────────────────────────────────────────────────

func validateSlotRequest(req SlotRequest) error {
	if req.ResourceID == uuid.Nil {
		return &ValidationError{Field: "resource_id", Reason: "required"}
	}
	if req.Date.IsZero() {
		return &ValidationError{Field: "date", Reason: "required"}
	}
	if req.StartTime.IsZero() || req.EndTime.IsZero() {
		return &ValidationError{Field: "start_time", Reason: "start and end times are required"}
	}
	if !req.StartTime.Before(req.EndTime) {
		return &ValidationError{Field: "end_time", Reason: "must be after start_time"}
	}
	if req.Attendees < 0 {
		return &ValidationError{Field: "attendees", Reason: "must not be negative"}
	}
	if req.Purpose == "" {
		return &ValidationError{Field: "purpose", Reason: "required"}
	}
	return nil
}

func validatePoolRequest(req PoolRequest) error {
	if req.ResourceID == uuid.Nil {
		return &ValidationError{Field: "resource_id", Reason: "required"}
	}
	if req.BorrowDate.IsZero() || req.ReturnDate.IsZero() {
		return &ValidationError{Field: "borrow_date", Reason: "borrow and return dates are required"}
	}
	if interval.DayOf(req.ReturnDate).Before(interval.DayOf(req.BorrowDate)) {
		return &ValidationError{Field: "return_date", Reason: "must not be before borrow_date"}
	}
	if req.Quantity <= 0 {
		return &ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	if req.Purpose == "" {
		return &ValidationError{Field: "purpose", Reason: "required"}
	}
	return nil
}
