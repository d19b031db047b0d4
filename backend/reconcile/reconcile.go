// Package reconcile heals mood points from the source of truth: a nightly
// job re-enqueues a recompute of yesterday for every user who rated entries
// that day, so drift from deletes or racing writes converges.
package reconcile

import (
	"context"
	"log"
	"time"

	"github.com/inkwell-app/inkwell/lib/timeutil"
	"github.com/robfig/cron/v3"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// EntryScanner finds the users whose rated entries fall in a window.
type EntryScanner interface {
	FindRaterIDsInRange(ctx context.Context, start, end time.Time) ([]primitive.ObjectID, error)
}

// Scheduler enqueues the recompute jobs the reconciler emits.
type Scheduler interface {
	Schedule(userID primitive.ObjectID, dayISO string) error
}

// ZoneResolver names the calendar day the reconciled window maps to per user.
type ZoneResolver interface {
	TimezoneFor(ctx context.Context, userID primitive.ObjectID) string
}

// Reconciler owns the nightly recompute sweep.
type Reconciler struct {
	entries   EntryScanner
	scheduler Scheduler
	zones     ZoneResolver
	clock     timeutil.Clock
	cron      *cron.Cron
}

// NewReconciler creates a Reconciler over the given collaborators.
func NewReconciler(entries EntryScanner, scheduler Scheduler, zones ZoneResolver, clock timeutil.Clock) *Reconciler {
	return &Reconciler{
		entries:   entries,
		scheduler: scheduler,
		zones:     zones,
		clock:     clock,
	}
}

// Run performs one sweep: every user with a rated entry during yesterday's
// UTC day gets a recompute scheduled for that date in their own timezone.
// The sweep is best-effort; per-user failures are logged and skipped.
func (r *Reconciler) Run(ctx context.Context) {
	yesterday := r.clock.Now().UTC().AddDate(0, 0, -1)
	start := timeutil.StartOfDay(yesterday, time.UTC)
	end := timeutil.EndOfDay(yesterday, time.UTC)

	userIDs, err := r.entries.FindRaterIDsInRange(ctx, start, end)
	if err != nil {
		log.Printf("reconcile sweep failed to scan entries: %v", err)
		return
	}

	for _, userID := range userIDs {
		loc, err := timeutil.LoadZone(r.zones.TimezoneFor(ctx, userID))
		if err != nil {
			loc = time.UTC
		}
		dayISO := timeutil.ISODateOnly(yesterday, loc)

		if err := r.scheduler.Schedule(userID, dayISO); err != nil {
			log.Printf("reconcile failed to schedule recompute for user %s: %v", userID.Hex(), err)
		}
	}

	log.Printf("reconcile sweep scheduled %d recompute jobs for %s", len(userIDs), timeutil.ISODateOnly(yesterday, time.UTC))
}

// Start registers the nightly sweep (00:15 UTC) and starts the scheduler.
func (r *Reconciler) Start(ctx context.Context) error {
	r.cron = cron.New(cron.WithLocation(time.UTC))
	_, err := r.cron.AddFunc("15 0 * * *", func() {
		r.Run(ctx)
	})
	if err != nil {
		return err
	}
	r.cron.Start()
	return nil
}

// Stop halts the cron scheduler; running sweeps finish on their own.
func (r *Reconciler) Stop() {
	if r.cron != nil {
		r.cron.Stop()
	}
}
