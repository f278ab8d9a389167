// Package jobs holds the scheduled sweeps around the reservation engine.
// They are advisory: a missed run never affects correctness, only how
// promptly residents hear about due borrowings.
package jobs

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"reserve/internal/events"
	"reserve/internal/interval"
	"reserve/internal/models"
)

// DueLister is the slice of the pool repository the sweep needs.
type DueLister interface {
	ListApprovedDueBy(db *gorm.DB, by time.Time) ([]models.PoolReservation, error)
}

// ReminderJob emits due-soon and overdue events for unreturned approved
// borrowings. The notification layer decides what to do with them.
type ReminderJob struct {
	pools     DueLister
	publisher events.Publisher
	now       func() time.Time
}

func NewReminderJob(pools DueLister, publisher events.Publisher) *ReminderJob {
	return &ReminderJob{pools: pools, publisher: publisher, now: time.Now}
}

// Run sweeps once: everything due by tomorrow gets a reminder, split into
// overdue (return date already passed) and due-soon.
func (j *ReminderJob) Run() {
	now := j.now()
	tomorrow := interval.DayOf(now).AddDate(0, 0, 1)

	due, err := j.pools.ListApprovedDueBy(nil, tomorrow)
	if err != nil {
		log.Printf("[ERROR] ReminderJob: due-borrowing query failed: %v", err)
		return
	}

	ctx := context.Background()
	var dueSoon, overdue int
	for i := range due {
		r := &due[i]
		evType := events.TypeReservationDueSoon
		if r.IsOverdue(now) {
			evType = events.TypeReservationOverdue
			overdue++
		} else {
			dueSoon++
		}
		events.Emit(ctx, j.publisher, events.Event{
			Type:          evType,
			Kind:          models.KindPool,
			ReservationID: r.ID,
			ResourceID:    r.ResourceID,
			RequesterID:   r.RequesterID,
			Status:        r.DisplayStatus(now),
			OccurredAt:    now.UTC(),
		})
	}
	log.Printf("[INFO] ReminderJob: swept %d borrowing(s): %d due soon, %d overdue", len(due), dueSoon, overdue)
}

// Schedule registers the sweep on the given cron. Starting and stopping
// the cron stays with the caller.
func Schedule(c *cron.Cron, spec string, job *ReminderJob) error {
	if _, err := c.AddFunc(spec, job.Run); err != nil {
		return err
	}
	log.Printf("[INFO] ReminderJob: scheduled with spec %q", spec)
	return nil
}
