package repositories

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"reserve/internal/models"
)

// Every method takes an explicit *gorm.DB so the same repository works
// inside and outside a transaction; a nil handle falls back to the
// repository's own connection.

type ResourceRepository interface {
	GetByID(db *gorm.DB, id uuid.UUID) (*models.Resource, error)
	GetByIDForUpdate(db *gorm.DB, id uuid.UUID) (*models.Resource, error)
	ListByIDs(db *gorm.DB, ids []uuid.UUID) ([]models.Resource, error)
	DecrementQuantity(db *gorm.DB, id uuid.UUID, qty int) error
	IncrementQuantity(db *gorm.DB, id uuid.UUID, qty int) error
}

type SlotReservationRepository interface {
	Create(db *gorm.DB, r *models.SlotReservation) error
	GetByIDForUpdate(db *gorm.DB, id uuid.UUID) (*models.SlotReservation, error)
	ListActiveByResourceDate(db *gorm.DB, resourceID uuid.UUID, date time.Time) ([]models.SlotReservation, error)
	UpdateDecision(db *gorm.DB, id uuid.UUID, status models.ReservationStatus, notes string) error
	ListInRange(db *gorm.DB, from, to time.Time) ([]models.SlotReservation, error)
	ListPending(db *gorm.DB) ([]models.SlotReservation, error)
	ListByRequester(db *gorm.DB, userID uuid.UUID) ([]models.SlotReservation, error)
}

type PoolReservationRepository interface {
	Create(db *gorm.DB, r *models.PoolReservation) error
	GetByIDForUpdate(db *gorm.DB, id uuid.UUID) (*models.PoolReservation, error)
	ListActiveIntersecting(db *gorm.DB, resourceID uuid.UUID, from, to time.Time) ([]models.PoolReservation, error)
	UpdateDecision(db *gorm.DB, id uuid.UUID, status models.ReservationStatus, notes string) error
	MarkReturned(db *gorm.DB, id uuid.UUID, returnedAt time.Time, condition, damageNotes string) error
	MarkExtensionRequested(db *gorm.DB, id uuid.UUID, notes string) error
	ListInRange(db *gorm.DB, from, to time.Time) ([]models.PoolReservation, error)
	ListPending(db *gorm.DB) ([]models.PoolReservation, error)
	ListByRequester(db *gorm.DB, userID uuid.UUID) ([]models.PoolReservation, error)
	ListApprovedDueBy(db *gorm.DB, by time.Time) ([]models.PoolReservation, error)
	SumApprovedOutstanding(db *gorm.DB, resourceID uuid.UUID) (int, error)
}

// activeStatuses are the statuses that hold or contend for a resource.
var activeStatuses = []models.ReservationStatus{models.StatusPending, models.StatusApproved}

// concrete implementations

type resourceRepository struct {
	db *gorm.DB
}

func NewResourceRepository(db *gorm.DB) ResourceRepository {
	return &resourceRepository{db: db}
}

func (r *resourceRepository) GetByID(db *gorm.DB, id uuid.UUID) (*models.Resource, error) {
	if db == nil {
		db = r.db
	}
	var res models.Resource
	if err := db.First(&res, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &res, nil
}

// GetByIDForUpdate locks the resource row. Mutating operations lock it
// first so concurrent submissions against the same resource serialize at
// the store rather than racing past each other's conflict checks.
func (r *resourceRepository) GetByIDForUpdate(db *gorm.DB, id uuid.UUID) (*models.Resource, error) {
	if db == nil {
		db = r.db
	}
	var res models.Resource
	err := db.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&res, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *resourceRepository) ListByIDs(db *gorm.DB, ids []uuid.UUID) ([]models.Resource, error) {
	if db == nil {
		db = r.db
	}
	if len(ids) == 0 {
		return nil, nil
	}
	var resources []models.Resource
	if err := db.Where("id IN ?", ids).Find(&resources).Error; err != nil {
		return nil, err
	}
	return resources, nil
}

func (r *resourceRepository) DecrementQuantity(db *gorm.DB, id uuid.UUID, qty int) error {
	if db == nil {
		db = r.db
	}
	return db.Model(&models.Resource{}).
		Where("id = ?", id).
		UpdateColumn("quantity", gorm.Expr("quantity - ?", qty)).
		Error
}

func (r *resourceRepository) IncrementQuantity(db *gorm.DB, id uuid.UUID, qty int) error {
	if db == nil {
		db = r.db
	}
	return db.Model(&models.Resource{}).
		Where("id = ?", id).
		UpdateColumn("quantity", gorm.Expr("quantity + ?", qty)).
		Error
}

type slotReservationRepository struct {
	db *gorm.DB
}

func NewSlotReservationRepository(db *gorm.DB) SlotReservationRepository {
	return &slotReservationRepository{db: db}
}

func (r *slotReservationRepository) Create(db *gorm.DB, res *models.SlotReservation) error {
	if db == nil {
		db = r.db
	}
	return db.Create(res).Error
}

func (r *slotReservationRepository) GetByIDForUpdate(db *gorm.DB, id uuid.UUID) (*models.SlotReservation, error) {
	if db == nil {
		db = r.db
	}
	var res models.SlotReservation
	err := db.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&res, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *slotReservationRepository) ListActiveByResourceDate(db *gorm.DB, resourceID uuid.UUID, date time.Time) ([]models.SlotReservation, error) {
	if db == nil {
		db = r.db
	}
	var res []models.SlotReservation
	err := db.Where("resource_id = ? AND date = ? AND status IN ?", resourceID, date, activeStatuses).
		Order("start_time ASC").
		Find(&res).Error
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *slotReservationRepository) UpdateDecision(db *gorm.DB, id uuid.UUID, status models.ReservationStatus, notes string) error {
	if db == nil {
		db = r.db
	}
	return db.Model(&models.SlotReservation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      status,
			"admin_notes": notes,
		}).Error
}

func (r *slotReservationRepository) ListInRange(db *gorm.DB, from, to time.Time) ([]models.SlotReservation, error) {
	if db == nil {
		db = r.db
	}
	var res []models.SlotReservation
	err := db.Where("date >= ? AND date <= ?", from, to).
		Order("date ASC, start_time ASC").
		Find(&res).Error
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *slotReservationRepository) ListPending(db *gorm.DB) ([]models.SlotReservation, error) {
	if db == nil {
		db = r.db
	}
	var res []models.SlotReservation
	err := db.Where("status = ?", models.StatusPending).
		Order("created_at ASC").
		Find(&res).Error
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *slotReservationRepository) ListByRequester(db *gorm.DB, userID uuid.UUID) ([]models.SlotReservation, error) {
	if db == nil {
		db = r.db
	}
	var res []models.SlotReservation
	err := db.Where("requester_id = ?", userID).
		Order("date DESC, start_time DESC").
		Find(&res).Error
	if err != nil {
		return nil, err
	}
	return res, nil
}

type poolReservationRepository struct {
	db *gorm.DB
}

func NewPoolReservationRepository(db *gorm.DB) PoolReservationRepository {
	return &poolReservationRepository{db: db}
}

func (r *poolReservationRepository) Create(db *gorm.DB, res *models.PoolReservation) error {
	if db == nil {
		db = r.db
	}
	return db.Create(res).Error
}

func (r *poolReservationRepository) GetByIDForUpdate(db *gorm.DB, id uuid.UUID) (*models.PoolReservation, error) {
	if db == nil {
		db = r.db
	}
	var res models.PoolReservation
	err := db.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&res, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ListActiveIntersecting returns active borrowings whose inclusive
// [borrow_date, return_date] range shares at least one day with [from, to].
func (r *poolReservationRepository) ListActiveIntersecting(db *gorm.DB, resourceID uuid.UUID, from, to time.Time) ([]models.PoolReservation, error) {
	if db == nil {
		db = r.db
	}
	var res []models.PoolReservation
	err := db.Where("resource_id = ? AND status IN ? AND borrow_date <= ? AND return_date >= ?",
		resourceID, activeStatuses, to, from).
		Order("borrow_date ASC").
		Find(&res).Error
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *poolReservationRepository) UpdateDecision(db *gorm.DB, id uuid.UUID, status models.ReservationStatus, notes string) error {
	if db == nil {
		db = r.db
	}
	return db.Model(&models.PoolReservation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      status,
			"admin_notes": notes,
		}).Error
}

func (r *poolReservationRepository) MarkReturned(db *gorm.DB, id uuid.UUID, returnedAt time.Time, condition, damageNotes string) error {
	if db == nil {
		db = r.db
	}
	return db.Model(&models.PoolReservation{}).
		Where("id = ? AND actual_return_date IS NULL", id).
		Updates(map[string]interface{}{
			"status":             models.StatusReturned,
			"actual_return_date": returnedAt,
			"condition_after":    condition,
			"admin_notes":        damageNotes,
		}).Error
}

// MarkExtensionRequested rewrites the borrowing back to pending with the
// structured extension payload stored in admin notes, so it re-enters the
// normal approval queue.
func (r *poolReservationRepository) MarkExtensionRequested(db *gorm.DB, id uuid.UUID, notes string) error {
	if db == nil {
		db = r.db
	}
	return db.Model(&models.PoolReservation{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      models.StatusPending,
			"admin_notes": notes,
		}).Error
}

func (r *poolReservationRepository) ListInRange(db *gorm.DB, from, to time.Time) ([]models.PoolReservation, error) {
	if db == nil {
		db = r.db
	}
	var res []models.PoolReservation
	err := db.Where("borrow_date <= ? AND return_date >= ?", to, from).
		Or("actual_return_date >= ? AND actual_return_date <= ?", from, to).
		Order("borrow_date ASC").
		Find(&res).Error
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *poolReservationRepository) ListPending(db *gorm.DB) ([]models.PoolReservation, error) {
	if db == nil {
		db = r.db
	}
	var res []models.PoolReservation
	err := db.Where("status = ?", models.StatusPending).
		Order("created_at ASC").
		Find(&res).Error
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *poolReservationRepository) ListByRequester(db *gorm.DB, userID uuid.UUID) ([]models.PoolReservation, error) {
	if db == nil {
		db = r.db
	}
	var res []models.PoolReservation
	err := db.Where("requester_id = ?", userID).
		Order("borrow_date DESC").
		Find(&res).Error
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ListApprovedDueBy returns unreturned approved borrowings whose return
// date is on or before the given day. Used by the reminder sweep.
func (r *poolReservationRepository) ListApprovedDueBy(db *gorm.DB, by time.Time) ([]models.PoolReservation, error) {
	if db == nil {
		db = r.db
	}
	var res []models.PoolReservation
	err := db.Where("status = ? AND actual_return_date IS NULL AND return_date <= ?",
		models.StatusApproved, by).
		Order("return_date ASC").
		Find(&res).Error
	if err != nil {
		return nil, err
	}
	return res, nil
}

// SumApprovedOutstanding returns the total quantity currently out on
// approved, unreturned borrowings of the item. Together with the item's
// on-hand counter it reconstructs the fixed total stock.
func (r *poolReservationRepository) SumApprovedOutstanding(db *gorm.DB, resourceID uuid.UUID) (int, error) {
	if db == nil {
		db = r.db
	}
	var total int
	err := db.Model(&models.PoolReservation{}).
		Where("resource_id = ? AND status = ? AND actual_return_date IS NULL", resourceID, models.StatusApproved).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}
