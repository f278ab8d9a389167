package services

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"reserve/internal/interval"
	"reserve/internal/models"
	"reserve/internal/repositories"
)

// ─── Requests & Results ───────────────────────────────────────────────────────

// Suggestion-grid bounds: free windows are searched between DayOpen and
// DayClose on a SuggestionStep grid, up to SuggestionDays ahead, and at
// most MaxSuggestions are offered.
const (
	DayOpenHour    = 8
	DayCloseHour   = 20
	SuggestionStep = 30 * time.Minute
	SuggestionDays = 7
	MaxSuggestions = 3
)

// SlotRequest is a candidate facility booking or vehicle request.
type SlotRequest struct {
	ResourceID uuid.UUID
	Date       time.Time
	StartTime  time.Time
	EndTime    time.Time
	Attendees  int
	Purpose    string
}

// PoolRequest is a candidate item borrowing.
type PoolRequest struct {
	ResourceID uuid.UUID
	BorrowDate time.Time
	ReturnDate time.Time
	Quantity   int
	Purpose    string
}

// AvailabilityResult is what a conflict check found. Available is false
// iff at least one reason is present.
type AvailabilityResult struct {
	Available         bool                    `json:"available"`
	Reasons           []ConflictReason        `json:"reasons,omitempty"`
	Conflicts         []models.Reservation    `json:"conflicts,omitempty"`
	RemainingCapacity int                     `json:"remaining_capacity"`
}

// SlotSuggestion is an advisory free window offered when a slot check
// conflicts.
type SlotSuggestion struct {
	Date      time.Time `json:"date"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// ─── Checks ───────────────────────────────────────────────────────────────────

// AvailabilityService answers "could this request be accepted right now"
// without side effects. It is called standalone for pre-submission checks
// and inside the Create transaction for the authoritative one.
type AvailabilityService struct {
	resourceRepo repositories.ResourceRepository
	slotRepo     repositories.SlotReservationRepository
	poolRepo     repositories.PoolReservationRepository
}

func NewAvailabilityService(
	resourceRepo repositories.ResourceRepository,
	slotRepo repositories.SlotReservationRepository,
	poolRepo repositories.PoolReservationRepository,
) *AvailabilityService {
	return &AvailabilityService{
		resourceRepo: resourceRepo,
		slotRepo:     slotRepo,
		poolRepo:     poolRepo,
	}
}

// CheckSlot evaluates a slot request. Slot resources are single-occupancy:
// any overlapping active reservation makes the window unavailable,
// regardless of headcount. Headcount is validated separately against the
// resource capacity and reported with its own reason code.
func (s *AvailabilityService) CheckSlot(db *gorm.DB, req SlotRequest) (*AvailabilityResult, error) {
	resource, err := s.resourceRepo.GetByID(db, req.ResourceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ResourceLookupError{ResourceID: req.ResourceID}
		}
		return nil, err
	}

	result := &AvailabilityResult{Available: true, RemainingCapacity: 1}

	if resource.Status != models.ResourceStatusAvailable {
		result.Reasons = append(result.Reasons, ReasonResourceUnavailable)
	}
	if req.Attendees > 0 && req.Attendees > resource.Capacity {
		result.Reasons = append(result.Reasons, ReasonCapacityExceeded)
	}

	existing, err := s.slotRepo.ListActiveByResourceDate(db, req.ResourceID, interval.DayOf(req.Date))
	if err != nil {
		return nil, err
	}
	for i := range existing {
		r := existing[i]
		if interval.Overlaps(req.StartTime, req.EndTime, r.StartTime, r.EndTime) {
			result.Conflicts = append(result.Conflicts, &r)
		}
	}
	if len(result.Conflicts) > 0 {
		result.Reasons = append(result.Reasons, ReasonSlotTaken)
		result.RemainingCapacity = 0
	}

	result.Available = len(result.Reasons) == 0
	return result, nil
}

// CheckPool evaluates a pool request: the quantity sum of every active
// borrowing whose inclusive date range intersects the candidate's, plus
// the requested quantity, must not exceed the item's total stock.
//
// Resource.Quantity is the on-hand counter, already reduced by every
// approved borrowing that is still out. Subtracting the intersecting
// active sum from it would count approvals twice, so the total is
// reconstructed first: on-hand plus everything currently out.
func (s *AvailabilityService) CheckPool(db *gorm.DB, req PoolRequest) (*AvailabilityResult, error) {
	resource, err := s.resourceRepo.GetByID(db, req.ResourceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ResourceLookupError{ResourceID: req.ResourceID}
		}
		return nil, err
	}

	result := &AvailabilityResult{Available: true}

	if resource.Status != models.ResourceStatusAvailable {
		result.Reasons = append(result.Reasons, ReasonResourceUnavailable)
	}

	existing, err := s.poolRepo.ListActiveIntersecting(db, req.ResourceID, interval.DayOf(req.BorrowDate), interval.DayOf(req.ReturnDate))
	if err != nil {
		return nil, err
	}
	borrowed := 0
	for i := range existing {
		r := existing[i]
		borrowed += r.Quantity
		result.Conflicts = append(result.Conflicts, &r)
	}

	outstanding, err := s.poolRepo.SumApprovedOutstanding(db, req.ResourceID)
	if err != nil {
		return nil, err
	}

	result.RemainingCapacity = resource.Quantity + outstanding - borrowed
	if req.Quantity > result.RemainingCapacity {
		result.Reasons = append(result.Reasons, ReasonInsufficientStock)
	}

	result.Available = len(result.Reasons) == 0
	return result, nil
}

// ─── Suggestions ──────────────────────────────────────────────────────────────

// SuggestSlots scans up to SuggestionDays forward from the requested date
// for free windows of the same duration. Advisory only; correctness is
// never staked on it.
func (s *AvailabilityService) SuggestSlots(db *gorm.DB, req SlotRequest) ([]SlotSuggestion, error) {
	duration := req.EndTime.Sub(req.StartTime)
	if duration <= 0 {
		return nil, nil
	}

	var suggestions []SlotSuggestion
	for i := 0; i < SuggestionDays && len(suggestions) < MaxSuggestions; i++ {
		day := interval.DayOf(req.Date).AddDate(0, 0, i)
		existing, err := s.slotRepo.ListActiveByResourceDate(db, req.ResourceID, day)
		if err != nil {
			return nil, err
		}
		for _, w := range freeWindows(existing, day, duration, MaxSuggestions-len(suggestions)) {
			suggestions = append(suggestions, w)
		}
	}
	return suggestions, nil
}

// freeWindows walks the day's booking grid and returns up to max windows
// of the given duration that overlap no existing active reservation.
func freeWindows(existing []models.SlotReservation, day time.Time, duration time.Duration, max int) []SlotSuggestion {
	if max <= 0 {
		return nil
	}
	dayOpen := day.Add(DayOpenHour * time.Hour)
	dayClose := day.Add(DayCloseHour * time.Hour)

	var windows []SlotSuggestion
	for start := dayOpen; !start.Add(duration).After(dayClose); start = start.Add(SuggestionStep) {
		end := start.Add(duration)
		taken := false
		for i := range existing {
			if interval.Overlaps(start, end, existing[i].StartTime, existing[i].EndTime) {
				taken = true
				break
			}
		}
		if !taken {
			windows = append(windows, SlotSuggestion{Date: day, StartTime: start, EndTime: end})
			if len(windows) >= max {
				break
			}
		}
	}
	return windows
}
