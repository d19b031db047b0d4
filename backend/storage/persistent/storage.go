package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/inkwell-app/inkwell/backend/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DeleteResult reports the number of documents removed (or soft-deleted) by
// a deletion operation.
type DeleteResult struct {
	DeletedCount int64
}

// UpdateResult reports the number of documents matched and modified by an
// update operation.
type UpdateResult struct {
	MatchedCount  int64
	ModifiedCount int64
}

// EntryListOptions narrows an entry listing. A nil IsDraft means both drafts
// and published entries are returned.
type EntryListOptions struct {
	Kind    string
	IsDraft *bool
	Limit   int64
	Offset  int64
}

// StorageInterface defines the set of methods that any persistent storage
// backend needs to implement.
type StorageInterface interface {
	// Establishes a connection to the storage backend.
	Connect(dbName, uri string) error
	// Disconnects from the storage backend.
	Disconnect() error

	// GetStreak returns the streak record for a user, or nil when the user
	// has no record yet.
	GetStreak(ctx context.Context, userID primitive.ObjectID) (*models.StreakRecord, error)
	// ReplaceStreak writes the full streak record for its user in a single
	// atomic upsert keyed on user_id, and returns the stored document.
	ReplaceStreak(ctx context.Context, record *models.StreakRecord) (*models.StreakRecord, error)

	// UpsertMoodPoint creates or overwrites the mood point keyed on
	// (user_id, day), reviving it if it was soft-deleted.
	UpsertMoodPoint(ctx context.Context, point *models.MoodPoint) (*models.MoodPoint, error)
	// FindMoodPointsInRange returns the non-deleted mood points of a user
	// with day in [from, to], ascending by day.
	FindMoodPointsInRange(ctx context.Context, userID primitive.ObjectID, from, to time.Time) ([]models.MoodPoint, error)
	// SoftDeleteMoodPoint marks the mood point for (user_id, day) deleted.
	SoftDeleteMoodPoint(ctx context.Context, userID primitive.ObjectID, day time.Time) (*DeleteResult, error)

	// Adds a new journal to the storage backend.
	AddJournal(ctx context.Context, journal *models.Journal) (*models.Journal, error)
	// Finds a journal by its id, or returns nil when absent.
	FindJournalByID(ctx context.Context, id primitive.ObjectID) (*models.Journal, error)
	// Lists a user's journals, newest first.
	FindJournalsByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.Journal, error)
	// Updates a journal's title and returns the stored document.
	UpdateJournal(ctx context.Context, id primitive.ObjectID, title string, updatedAt time.Time) (*models.Journal, error)
	// Deletes a journal.
	DeleteJournal(ctx context.Context, id primitive.ObjectID) (*DeleteResult, error)

	// Adds a new entry to the storage backend.
	AddEntry(ctx context.Context, entry *models.Entry) (*models.Entry, error)
	// Finds an entry by its id, or returns nil when absent.
	FindEntryByID(ctx context.Context, id primitive.ObjectID) (*models.Entry, error)
	// Lists the non-deleted entries of a journal, newest first.
	FindEntries(ctx context.Context, journalID primitive.ObjectID, opts EntryListOptions) ([]models.Entry, error)
	// FindRatedEntriesInRange returns a user's non-deleted, rated entries
	// whose entry_date falls within [start, end].
	FindRatedEntriesInRange(ctx context.Context, ownerID primitive.ObjectID, start, end time.Time) ([]models.Entry, error)
	// FindRaterIDsInRange returns the ids of users owning at least one
	// non-deleted rated entry within [start, end].
	FindRaterIDsInRange(ctx context.Context, start, end time.Time) ([]primitive.ObjectID, error)
	// ReplaceEntry writes the full entry document keyed on its id.
	ReplaceEntry(ctx context.Context, entry *models.Entry) (*models.Entry, error)

	// ConnectOrCreateTags upserts tags by name and returns them.
	ConnectOrCreateTags(ctx context.Context, names []string) ([]models.Tag, error)

	// GetTimezone returns the user's configured IANA timezone, or the empty
	// string when unset.
	GetTimezone(ctx context.Context, userID primitive.ObjectID) (string, error)
}

// NewStorage creates a new StorageInterface with a MongoDB backend,
// using the provided URI to connect to the MongoDB server.
func NewStorage(dbName, uri string) (StorageInterface, error) {
	store := NewMongoStorage()
	if err := store.Connect(dbName, uri); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return store, nil
}
