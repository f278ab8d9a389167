package services

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"reserve/internal/interval"
	"reserve/internal/models"
	"reserve/internal/repositories"
)

// CalendarEvent is one entry in the merged timeline. Slot reservations
// span their time window; active borrowings span their date range as
// all-day events; returned borrowings collapse to a single all-day event
// on the actual return date.
type CalendarEvent struct {
	ID            string                   `json:"id"`
	Kind          models.ReservationKind   `json:"kind"`
	ReservationID uuid.UUID                `json:"reservation_id"`
	ResourceID    uuid.UUID                `json:"resource_id"`
	ResourceName  string                   `json:"resource_name"`
	RequesterID   uuid.UUID                `json:"requester_id"`
	Start         time.Time                `json:"start"`
	End           time.Time                `json:"end"`
	AllDay        bool                     `json:"all_day"`
	Status        models.ReservationStatus `json:"status"`
	Label         string                   `json:"label,omitempty"`
	Quantity      int                      `json:"quantity,omitempty"`
	Risk          *RiskAnnotation          `json:"risk,omitempty"`
}

// ConflictPair flags two events on the same resource whose intervals
// overlap. Purely advisory: it surfaces approvals that raced past each
// other, and never mutates anything.
type ConflictPair struct {
	ResourceID uuid.UUID     `json:"resource_id"`
	A          CalendarEvent `json:"a"`
	B          CalendarEvent `json:"b"`
}

// CalendarService aggregates reservations of all kinds into one ordered
// feed. Reads are unsynchronized snapshots; briefly stale data is fine
// because nothing here is authoritative.
type CalendarService struct {
	resourceRepo repositories.ResourceRepository
	slotRepo     repositories.SlotReservationRepository
	poolRepo     repositories.PoolReservationRepository
	now          func() time.Time
}

func NewCalendarService(
	resourceRepo repositories.ResourceRepository,
	slotRepo repositories.SlotReservationRepository,
	poolRepo repositories.PoolReservationRepository,
) *CalendarService {
	return &CalendarService{
		resourceRepo: resourceRepo,
		slotRepo:     slotRepo,
		poolRepo:     poolRepo,
		now:          time.Now,
	}
}

// ListEvents merges slot and pool reservations inside [from, to] into one
// sequence ordered by start, annotated with resource names, derived
// statuses, and advisory risk.
func (s *CalendarService) ListEvents(_ context.Context, from, to time.Time) ([]CalendarEvent, error) {
	from, to = interval.DayOf(from), interval.DayOf(to)
	now := s.now()

	slots, err := s.slotRepo.ListInRange(nil, from, to)
	if err != nil {
		return nil, err
	}
	pools, err := s.poolRepo.ListInRange(nil, from, to)
	if err != nil {
		return nil, err
	}

	events := make([]CalendarEvent, 0, len(slots)+len(pools))
	for i := range slots {
		events = append(events, slotEvent(&slots[i]))
	}
	for i := range pools {
		events = append(events, poolEvent(&pools[i], now))
	}

	if err := s.fillResourceNames(events); err != nil {
		return nil, err
	}

	for i := range events {
		events[i].Risk = AnnotateRisk(events[i], now)
	}

	sort.Slice(events, func(i, j int) bool {
		if !events[i].Start.Equal(events[j].Start) {
			return events[i].Start.Before(events[j].Start)
		}
		return events[i].ID < events[j].ID
	})
	return events, nil
}

func slotEvent(r *models.SlotReservation) CalendarEvent {
	return CalendarEvent{
		ID:            "slot_" + r.ID.String(),
		Kind:          models.KindSlot,
		ReservationID: r.ID,
		ResourceID:    r.ResourceID,
		RequesterID:   r.RequesterID,
		Start:         r.StartTime,
		End:           r.EndTime,
		Status:        r.Status,
		Label:         r.Purpose,
	}
}

func poolEvent(r *models.PoolReservation, now time.Time) CalendarEvent {
	if r.Status == models.StatusReturned && r.ActualReturnDate != nil {
		// Returned borrowings show as a single-day marker on the day the
		// units actually came back, not as their original span.
		day := interval.DayOf(*r.ActualReturnDate)
		return CalendarEvent{
			ID:            "pool_return_" + r.ID.String(),
			Kind:          models.KindPool,
			ReservationID: r.ID,
			ResourceID:    r.ResourceID,
			RequesterID:   r.RequesterID,
			Start:         day,
			End:           day,
			AllDay:        true,
			Status:        models.StatusReturned,
			Label:         "Returned",
			Quantity:      r.Quantity,
		}
	}
	return CalendarEvent{
		ID:            "pool_" + r.ID.String(),
		Kind:          models.KindPool,
		ReservationID: r.ID,
		ResourceID:    r.ResourceID,
		RequesterID:   r.RequesterID,
		Start:         interval.DayOf(r.BorrowDate),
		End:           interval.DayOf(r.ReturnDate),
		AllDay:        true,
		Status:        r.DisplayStatus(now),
		Label:         r.Purpose,
		Quantity:      r.Quantity,
	}
}

func (s *CalendarService) fillResourceNames(events []CalendarEvent) error {
	seen := map[uuid.UUID]bool{}
	var ids []uuid.UUID
	for i := range events {
		if !seen[events[i].ResourceID] {
			seen[events[i].ResourceID] = true
			ids = append(ids, events[i].ResourceID)
		}
	}
	resources, err := s.resourceRepo.ListByIDs(nil, ids)
	if err != nil {
		return err
	}
	names := map[uuid.UUID]string{}
	for i := range resources {
		names[resources[i].ID] = resources[i].Name
	}
	for i := range events {
		events[i].ResourceName = names[events[i].ResourceID]
	}
	return nil
}

// DetectConflicts scans the merged feed for slot events on the same
// resource whose windows overlap. These are pairs that slipped past the
// submission-time check, typically two approvals decided concurrently.
// The scan only surfaces warnings; it never invalidates either side.
func DetectConflicts(events []CalendarEvent) []ConflictPair {
	byResource := map[uuid.UUID][]CalendarEvent{}
	for _, ev := range events {
		if ev.Kind != models.KindSlot || !models.IsActive(ev.Status) {
			continue
		}
		byResource[ev.ResourceID] = append(byResource[ev.ResourceID], ev)
	}

	var pairs []ConflictPair
	for resourceID, group := range byResource {
		sort.Slice(group, func(i, j int) bool { return group[i].Start.Before(group[j].Start) })
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				if !group[j].Start.Before(group[i].End) {
					break
				}
				if interval.Overlaps(group[i].Start, group[i].End, group[j].Start, group[j].End) {
					pairs = append(pairs, ConflictPair{ResourceID: resourceID, A: group[i], B: group[j]})
				}
			}
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].A.ID < pairs[j].A.ID })
	return pairs
}
