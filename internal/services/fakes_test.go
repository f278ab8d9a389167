package services

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"reserve/internal/events"
	"reserve/internal/interval"
	"reserve/internal/models"
)

// In-memory stand-ins for the repository layer. Repository methods take
// an explicit transaction handle and fall back to their own connection
// when it is nil, so the fakes simply ignore the handle.

type fakeTxRunner struct{}

func (fakeTxRunner) Transaction(fc func(tx *gorm.DB) error, _ ...*sql.TxOptions) error {
	return fc(nil)
}

type fakeResourceRepo struct {
	mu        sync.Mutex
	resources map[uuid.UUID]*models.Resource
}

func newFakeResourceRepo() *fakeResourceRepo {
	return &fakeResourceRepo{resources: map[uuid.UUID]*models.Resource{}}
}

func (f *fakeResourceRepo) add(r *models.Resource) *models.Resource {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	f.resources[r.ID] = r
	return r
}

func (f *fakeResourceRepo) GetByID(_ *gorm.DB, id uuid.UUID) (*models.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.resources[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeResourceRepo) GetByIDForUpdate(db *gorm.DB, id uuid.UUID) (*models.Resource, error) {
	return f.GetByID(db, id)
}

func (f *fakeResourceRepo) ListByIDs(_ *gorm.DB, ids []uuid.UUID) ([]models.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Resource
	for _, id := range ids {
		if r, ok := f.resources[id]; ok {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeResourceRepo) DecrementQuantity(_ *gorm.DB, id uuid.UUID, qty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.resources[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	r.Quantity -= qty
	return nil
}

func (f *fakeResourceRepo) IncrementQuantity(_ *gorm.DB, id uuid.UUID, qty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.resources[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	r.Quantity += qty
	return nil
}

type fakeSlotRepo struct {
	mu    sync.Mutex
	slots map[uuid.UUID]*models.SlotReservation
}

func newFakeSlotRepo() *fakeSlotRepo {
	return &fakeSlotRepo{slots: map[uuid.UUID]*models.SlotReservation{}}
}

func (f *fakeSlotRepo) Create(_ *gorm.DB, r *models.SlotReservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	cp := *r
	f.slots[r.ID] = &cp
	return nil
}

func (f *fakeSlotRepo) GetByIDForUpdate(_ *gorm.DB, id uuid.UUID) (*models.SlotReservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.slots[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeSlotRepo) ListActiveByResourceDate(_ *gorm.DB, resourceID uuid.UUID, date time.Time) ([]models.SlotReservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.SlotReservation
	for _, r := range f.slots {
		if r.ResourceID == resourceID && interval.SameDay(r.Date, date) && models.IsActive(r.Status) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeSlotRepo) UpdateDecision(_ *gorm.DB, id uuid.UUID, status models.ReservationStatus, notes string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.slots[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	r.Status = status
	r.AdminNotes = notes
	return nil
}

func (f *fakeSlotRepo) ListInRange(_ *gorm.DB, from, to time.Time) ([]models.SlotReservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.SlotReservation
	for _, r := range f.slots {
		d := interval.DayOf(r.Date)
		if !d.Before(from) && !d.After(to) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeSlotRepo) ListPending(_ *gorm.DB) ([]models.SlotReservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.SlotReservation
	for _, r := range f.slots {
		if r.Status == models.StatusPending {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeSlotRepo) ListByRequester(_ *gorm.DB, userID uuid.UUID) ([]models.SlotReservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.SlotReservation
	for _, r := range f.slots {
		if r.RequesterID == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

type fakePoolRepo struct {
	mu    sync.Mutex
	pools map[uuid.UUID]*models.PoolReservation
}

func newFakePoolRepo() *fakePoolRepo {
	return &fakePoolRepo{pools: map[uuid.UUID]*models.PoolReservation{}}
}

func (f *fakePoolRepo) Create(_ *gorm.DB, r *models.PoolReservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	cp := *r
	f.pools[r.ID] = &cp
	return nil
}

func (f *fakePoolRepo) GetByIDForUpdate(_ *gorm.DB, id uuid.UUID) (*models.PoolReservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.pools[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakePoolRepo) ListActiveIntersecting(_ *gorm.DB, resourceID uuid.UUID, from, to time.Time) ([]models.PoolReservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PoolReservation
	for _, r := range f.pools {
		if r.ResourceID == resourceID && models.IsActive(r.Status) &&
			interval.DateRangesIntersect(r.BorrowDate, r.ReturnDate, from, to) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakePoolRepo) UpdateDecision(_ *gorm.DB, id uuid.UUID, status models.ReservationStatus, notes string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.pools[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	r.Status = status
	r.AdminNotes = notes
	return nil
}

func (f *fakePoolRepo) MarkReturned(_ *gorm.DB, id uuid.UUID, returnedAt time.Time, condition, damageNotes string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.pools[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	r.Status = models.StatusReturned
	r.ActualReturnDate = &returnedAt
	r.ConditionAfter = condition
	r.AdminNotes = damageNotes
	return nil
}

func (f *fakePoolRepo) MarkExtensionRequested(_ *gorm.DB, id uuid.UUID, notes string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.pools[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	r.Status = models.StatusPending
	r.AdminNotes = notes
	return nil
}

func (f *fakePoolRepo) ListInRange(_ *gorm.DB, from, to time.Time) ([]models.PoolReservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PoolReservation
	for _, r := range f.pools {
		if interval.DateRangesIntersect(r.BorrowDate, r.ReturnDate, from, to) {
			out = append(out, *r)
			continue
		}
		if r.ActualReturnDate != nil {
			d := interval.DayOf(*r.ActualReturnDate)
			if !d.Before(from) && !d.After(to) {
				out = append(out, *r)
			}
		}
	}
	return out, nil
}

func (f *fakePoolRepo) ListPending(_ *gorm.DB) ([]models.PoolReservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PoolReservation
	for _, r := range f.pools {
		if r.Status == models.StatusPending {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakePoolRepo) ListByRequester(_ *gorm.DB, userID uuid.UUID) ([]models.PoolReservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PoolReservation
	for _, r := range f.pools {
		if r.RequesterID == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakePoolRepo) ListApprovedDueBy(_ *gorm.DB, by time.Time) ([]models.PoolReservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PoolReservation
	for _, r := range f.pools {
		if r.Status == models.StatusApproved && r.ActualReturnDate == nil && !interval.DayOf(r.ReturnDate).After(by) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakePoolRepo) SumApprovedOutstanding(_ *gorm.DB, resourceID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, r := range f.pools {
		if r.ResourceID == resourceID && r.Status == models.StatusApproved && r.ActualReturnDate == nil {
			total += r.Quantity
		}
	}
	return total, nil
}

type memPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *memPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *memPublisher) byType(t events.Type) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, ev := range p.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// testEnv bundles the wired service stack over the in-memory fakes.
type testEnv struct {
	resources    *fakeResourceRepo
	slots        *fakeSlotRepo
	pools        *fakePoolRepo
	availability *AvailabilityService
	svc          ReservationService
	coordinator  *ApprovalCoordinator
	calendar     *CalendarService
	publisher    *memPublisher
	now          time.Time
}

func newTestEnv() *testEnv {
	env := &testEnv{
		resources: newFakeResourceRepo(),
		slots:     newFakeSlotRepo(),
		pools:     newFakePoolRepo(),
		publisher: &memPublisher{},
		now:       time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC),
	}
	env.availability = NewAvailabilityService(env.resources, env.slots, env.pools)
	env.svc = NewReservationService(fakeTxRunner{}, env.availability, env.resources, env.slots, env.pools, env.publisher)
	env.svc.(*reservationService).now = func() time.Time { return env.now }
	env.coordinator = NewApprovalCoordinator(env.svc)
	env.calendar = NewCalendarService(env.resources, env.slots, env.pools)
	env.calendar.now = func() time.Time { return env.now }
	return env
}

func (env *testEnv) addFacility(name string, capacity int) *models.Resource {
	return env.resources.add(&models.Resource{
		Name:     name,
		Kind:     models.ResourceFacility,
		Status:   models.ResourceStatusAvailable,
		Capacity: capacity,
	})
}

func (env *testEnv) addItem(name string, quantity int) *models.Resource {
	return env.resources.add(&models.Resource{
		Name:     name,
		Kind:     models.ResourceItem,
		Status:   models.ResourceStatusAvailable,
		Quantity: quantity,
	})
}

func resident() models.Actor {
	return models.Actor{UserID: uuid.New(), Role: models.RoleResident}
}

func admin() models.Actor {
	return models.Actor{UserID: uuid.New(), Role: models.RoleAdmin}
}
