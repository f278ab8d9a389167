package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"reserve/internal/models"
	"reserve/internal/services"
)

// The HTTP layer is thin binding and translation only. Authorization is
// the caller's concern: the acting user and role arrive as headers and
// are passed into the engine as an explicit actor.

const (
	headerUserID = "X-User-ID"
	headerRole   = "X-User-Role"
)

type ReservationHandler struct {
	svc          services.ReservationService
	availability *services.AvailabilityService
	coordinator  *services.ApprovalCoordinator
	calendar     *services.CalendarService
}

func RegisterRoutes(
	r *gin.Engine,
	svc services.ReservationService,
	availability *services.AvailabilityService,
	coordinator *services.ApprovalCoordinator,
	calendar *services.CalendarService,
) {
	h := &ReservationHandler{
		svc:          svc,
		availability: availability,
		coordinator:  coordinator,
		calendar:     calendar,
	}

	// Resident endpoints
	r.POST("/bookings", h.createBooking)
	r.POST("/borrowings", h.createBorrowing)
	r.POST("/borrowings/:id/return", h.returnBorrowing)
	r.POST("/borrowings/:id/extend", h.extendBorrowing)
	r.GET("/users/:id/reservations", h.listUserReservations)

	// Admin endpoints
	r.POST("/decisions", h.decide)
	r.POST("/decisions/batch", h.decideBatch)
	r.GET("/reservations/pending", h.listPending)

	// General endpoints
	r.GET("/availability", h.checkAvailability)
	r.GET("/calendar", h.calendarFeed)
}

// actorFrom reads the acting user from the request headers.
func actorFrom(c *gin.Context) (models.Actor, bool) {
	userID, err := uuid.Parse(c.GetHeader(headerUserID))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid " + headerUserID + " header"})
		return models.Actor{}, false
	}
	role := models.Role(c.GetHeader(headerRole))
	if role != models.RoleResident && role != models.RoleAdmin {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid " + headerRole + " header"})
		return models.Actor{}, false
	}
	return models.Actor{UserID: userID, Role: role}, true
}

// writeError maps engine errors onto HTTP statuses. ConflictError gets a
// structured body so the caller can render the conflicting set and the
// advisory alternatives.
func writeError(c *gin.Context, err error) {
	var (
		validationErr *services.ValidationError
		conflictErr   *services.ConflictError
		stateErr      *services.InvalidStateError
		lookupErr     *services.ResourceLookupError
	)
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error()})
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":              conflictErr.Error(),
			"reasons":            conflictErr.Reasons,
			"conflicts":          conflictErr.Conflicts,
			"remaining_capacity": conflictErr.RemainingCapacity,
			"suggestions":        conflictErr.Suggestions,
		})
	case errors.As(err, &stateErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": stateErr.Error()})
	case errors.As(err, &lookupErr):
		c.JSON(http.StatusNotFound, gin.H{"error": lookupErr.Error()})
	case errors.Is(err, services.ErrReservationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrNotRequester):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

type createBookingRequest struct {
	ResourceID string `json:"resource_id" binding:"required,uuid"`
	Date       string `json:"date" binding:"required"`
	StartTime  string `json:"start_time" binding:"required"`
	EndTime    string `json:"end_time" binding:"required"`
	Attendees  int    `json:"attendees" binding:"min=0"`
	Purpose    string `json:"purpose" binding:"required"`
}

func (h *ReservationHandler) createBooking(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	slotReq, err := parseSlotRequest(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.svc.CreateSlot(c.Request.Context(), actor, slotReq)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

type createBorrowingRequest struct {
	ResourceID string `json:"resource_id" binding:"required,uuid"`
	BorrowDate string `json:"borrow_date" binding:"required"`
	ReturnDate string `json:"return_date" binding:"required"`
	Quantity   int    `json:"quantity" binding:"required,min=1"`
	Purpose    string `json:"purpose" binding:"required"`
}

func (h *ReservationHandler) createBorrowing(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req createBorrowingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	poolReq, err := parsePoolRequest(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	created, err := h.svc.CreatePool(c.Request.Context(), actor, poolReq)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *ReservationHandler) checkAvailability(c *gin.Context) {
	kind := c.Query("kind")
	switch kind {
	case "facility", "vehicle":
		req, err := parseSlotQuery(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		result, err := h.availability.CheckSlot(nil, req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	case "item":
		req, err := parsePoolQuery(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		result, err := h.availability.CheckPool(nil, req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be facility, vehicle, or item"})
	}
}

type decisionRequest struct {
	Kind    string `json:"kind" binding:"required"`
	ID      string `json:"id" binding:"required,uuid"`
	Outcome string `json:"outcome" binding:"required"`
	Notes   string `json:"notes"`
}

func (h *ReservationHandler) decide(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	decision, err := parseDecision(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.coordinator.DecideOne(c.Request.Context(), actor, decision); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": decision.ID, "outcome": decision.Outcome})
}

type batchDecisionRequest struct {
	Decisions []decisionRequest `json:"decisions" binding:"required,min=1"`
}

func (h *ReservationHandler) decideBatch(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req batchDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	decisions := make([]services.Decision, 0, len(req.Decisions))
	for _, d := range req.Decisions {
		decision, err := parseDecision(d)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		decisions = append(decisions, decision)
	}

	result := h.coordinator.DecideBatch(c.Request.Context(), actor, decisions)
	c.JSON(http.StatusOK, result)
}

type returnRequest struct {
	Condition   string `json:"condition" binding:"required"`
	DamageNotes string `json:"damage_notes"`
}

func (h *ReservationHandler) returnBorrowing(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid borrowing id"})
		return
	}
	var req returnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	returned, err := h.svc.Return(c.Request.Context(), actor, id, req.Condition, req.DamageNotes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, returned)
}

type extendRequest struct {
	NewReturnDate string `json:"new_return_date" binding:"required"`
	Reason        string `json:"reason" binding:"required"`
}

func (h *ReservationHandler) extendBorrowing(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid borrowing id"})
		return
	}
	var req extendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	newReturn, err := time.Parse("2006-01-02", req.NewReturnDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid new_return_date"})
		return
	}

	extended, err := h.svc.Extend(c.Request.Context(), actor, id, newReturn, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, extended)
}

func (h *ReservationHandler) listPending(c *gin.Context) {
	slots, pools, err := h.svc.ListPending(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slot_reservations": slots, "pool_reservations": pools})
}

func (h *ReservationHandler) listUserReservations(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	slots, pools, err := h.svc.ListByRequester(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slot_reservations": slots, "pool_reservations": pools})
}

func (h *ReservationHandler) calendarFeed(c *gin.Context) {
	from, err := time.Parse("2006-01-02", c.DefaultQuery("from", time.Now().UTC().AddDate(0, -1, 0).Format("2006-01-02")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from date"})
		return
	}
	to, err := time.Parse("2006-01-02", c.DefaultQuery("to", time.Now().UTC().AddDate(0, 3, 0).Format("2006-01-02")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to date"})
		return
	}

	events, err := h.calendar.ListEvents(c.Request.Context(), from, to)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"events":    events,
		"conflicts": services.DetectConflicts(events),
	})
}

// request parsing helpers

func parseSlotRequest(req createBookingRequest) (services.SlotRequest, error) {
	resourceID, err := uuid.Parse(req.ResourceID)
	if err != nil {
		return services.SlotRequest{}, errors.New("invalid resource_id")
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return services.SlotRequest{}, errors.New("invalid date")
	}
	start, err := timeOn(date, req.StartTime)
	if err != nil {
		return services.SlotRequest{}, errors.New("invalid start_time")
	}
	end, err := timeOn(date, req.EndTime)
	if err != nil {
		return services.SlotRequest{}, errors.New("invalid end_time")
	}
	return services.SlotRequest{
		ResourceID: resourceID,
		Date:       date,
		StartTime:  start,
		EndTime:    end,
		Attendees:  req.Attendees,
		Purpose:    req.Purpose,
	}, nil
}

func parsePoolRequest(req createBorrowingRequest) (services.PoolRequest, error) {
	resourceID, err := uuid.Parse(req.ResourceID)
	if err != nil {
		return services.PoolRequest{}, errors.New("invalid resource_id")
	}
	borrow, err := time.Parse("2006-01-02", req.BorrowDate)
	if err != nil {
		return services.PoolRequest{}, errors.New("invalid borrow_date")
	}
	ret, err := time.Parse("2006-01-02", req.ReturnDate)
	if err != nil {
		return services.PoolRequest{}, errors.New("invalid return_date")
	}
	return services.PoolRequest{
		ResourceID: resourceID,
		BorrowDate: borrow,
		ReturnDate: ret,
		Quantity:   req.Quantity,
		Purpose:    req.Purpose,
	}, nil
}

func parseSlotQuery(c *gin.Context) (services.SlotRequest, error) {
	return parseSlotRequest(createBookingRequest{
		ResourceID: c.Query("id"),
		Date:       c.Query("date"),
		StartTime:  c.Query("start_time"),
		EndTime:    c.Query("end_time"),
		Attendees:  queryInt(c, "attendees"),
		Purpose:    "availability check",
	})
}

func parsePoolQuery(c *gin.Context) (services.PoolRequest, error) {
	return parsePoolRequest(createBorrowingRequest{
		ResourceID: c.Query("id"),
		BorrowDate: c.Query("borrow_date"),
		ReturnDate: c.Query("return_date"),
		Quantity:   queryInt(c, "quantity"),
		Purpose:    "availability check",
	})
}

func queryInt(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return n
}

func parseDecision(req decisionRequest) (services.Decision, error) {
	id, err := uuid.Parse(req.ID)
	if err != nil {
		return services.Decision{}, errors.New("invalid reservation id")
	}
	var kind models.ReservationKind
	switch req.Kind {
	case "slot", "facility", "vehicle":
		kind = models.KindSlot
	case "pool", "item":
		kind = models.KindPool
	default:
		return services.Decision{}, errors.New("kind must be slot or pool")
	}
	var outcome models.DecisionOutcome
	switch req.Outcome {
	case "approve":
		outcome = models.OutcomeApprove
	case "deny":
		outcome = models.OutcomeDeny
	default:
		return services.Decision{}, errors.New("outcome must be approve or deny")
	}
	return services.Decision{Kind: kind, ID: id, Outcome: outcome, Notes: req.Notes}, nil
}

// timeOn combines a calendar date with an HH:MM clock reading.
func timeOn(date time.Time, clock string) (time.Time, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, time.UTC), nil
}
