// Package streak maintains the per-user writing streak counters: current and
// longest run of consecutive days with at least one entry, lifetime entry
// count, and the running count for the current month.
package streak

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/inkwell-app/inkwell/backend/models"
	"github.com/inkwell-app/inkwell/lib/timeutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store is the slice of the persistent storage the tracker needs.
type Store interface {
	// GetStreak returns the user's record, or nil when none exists yet.
	GetStreak(ctx context.Context, userID primitive.ObjectID) (*models.StreakRecord, error)
	// ReplaceStreak writes the full record in one atomic upsert keyed on the
	// user, and returns the stored document.
	ReplaceStreak(ctx context.Context, record *models.StreakRecord) (*models.StreakRecord, error)
}

// Tracker updates streak records on entry creation. The read-modify-write of
// a record is serialized per user so two concurrent creations cannot
// double-count a day; different users never contend with each other.
//
// Day boundaries here are UTC midnights. Mood aggregation resolves per-user
// timezones, streaks deliberately do not; switching streaks to user zones
// would move the day boundary for every non-UTC user.
type Tracker struct {
	store Store

	mu    sync.Mutex
	locks map[primitive.ObjectID]*sync.Mutex
}

// NewTracker creates a Tracker over the given store.
func NewTracker(store Store) *Tracker {
	return &Tracker{
		store: store,
		locks: make(map[primitive.ObjectID]*sync.Mutex),
	}
}

// lockFor returns the mutex serializing updates for one user, creating it on
// first use.
func (t *Tracker) lockFor(userID primitive.ObjectID) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()

	lock, ok := t.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		t.locks[userID] = lock
	}
	return lock
}

// RecordEntryCreated applies one entry-creation event to the user's streak
// record and returns the updated record. Only the calendar date of
// entryCreatedAt matters.
//
// Repeated creations on the same day leave CurrentStreak and MonthlyCount
// untouched but still increment TotalEntries. A creation on the day after
// LastEntryDate extends the streak; any other gap resets it to 1. Deleting
// an entry never rolls any of this back.
func (t *Tracker) RecordEntryCreated(ctx context.Context, userID primitive.ObjectID, entryCreatedAt time.Time) (*models.StreakRecord, error) {
	lock := t.lockFor(userID)
	lock.Lock()
	defer lock.Unlock()

	record, err := t.store.GetStreak(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load streak record: %w", err)
	}
	if record == nil {
		// First ever entry for this user: start from a zero record.
		record = &models.StreakRecord{UserID: userID}
	}

	today := timeutil.MidnightUTC(entryCreatedAt)

	var last *time.Time
	if record.LastEntryDate != nil {
		d := timeutil.MidnightUTC(*record.LastEntryDate)
		last = &d
	}

	alreadyCountedToday := last != nil && last.Equal(today)

	newCurrent := record.CurrentStreak
	if !alreadyCountedToday {
		if last == nil {
			newCurrent = 1
		} else {
			// A negative diff (clock skew) counts as a gap and resets too.
			daysDiff := int(today.Sub(*last).Hours() / 24)
			if daysDiff == 1 {
				newCurrent = record.CurrentStreak + 1
			} else {
				newCurrent = 1
			}
		}
	}

	longest := record.LongestStreak
	if newCurrent > longest {
		longest = newCurrent
	}

	currentMonth := today.Format("2006-01")
	isNewMonth := record.CurrentMonth != currentMonth

	monthlyCount := record.MonthlyCount + 1
	if isNewMonth {
		monthlyCount = 1
	} else if alreadyCountedToday {
		monthlyCount = record.MonthlyCount
	}

	record.CurrentStreak = newCurrent
	record.LongestStreak = longest
	record.TotalEntries = record.TotalEntries + 1
	record.LastEntryDate = &today
	record.MonthlyCount = monthlyCount
	record.CurrentMonth = currentMonth

	stored, err := t.store.ReplaceStreak(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("failed to persist streak record: %w", err)
	}
	return stored, nil
}

// Current returns the user's streak record, or a zero record when the user
// has not written yet.
func (t *Tracker) Current(ctx context.Context, userID primitive.ObjectID) (*models.StreakRecord, error) {
	record, err := t.store.GetStreak(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load streak record: %w", err)
	}
	if record == nil {
		return &models.StreakRecord{UserID: userID}, nil
	}
	return record, nil
}
