package journal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/inkwell-app/inkwell/backend/models"
	storage "github.com/inkwell-app/inkwell/backend/storage/persistent"
	"github.com/inkwell-app/inkwell/backend/streak"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time {
	return c.now
}

type staticZones struct {
	tz string
}

func (z staticZones) TimezoneFor(context.Context, primitive.ObjectID) string {
	return z.tz
}

// recordingScheduler captures scheduled recomputes, optionally failing.
type recordingScheduler struct {
	calls []string
	err   error
}

func (s *recordingScheduler) Schedule(userID primitive.ObjectID, dayISO string) error {
	s.calls = append(s.calls, userID.Hex()+" "+dayISO)
	return s.err
}

// fakeStore is an in-memory Store plus streak.Store.
type fakeStore struct {
	journals map[primitive.ObjectID]models.Journal
	entries  map[primitive.ObjectID]models.Entry
	tags     map[string]models.Tag
	streaks  map[primitive.ObjectID]models.StreakRecord
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		journals: make(map[primitive.ObjectID]models.Journal),
		entries:  make(map[primitive.ObjectID]models.Entry),
		tags:     make(map[string]models.Tag),
		streaks:  make(map[primitive.ObjectID]models.StreakRecord),
	}
}

func (f *fakeStore) AddJournal(_ context.Context, journal *models.Journal) (*models.Journal, error) {
	journal.ID = primitive.NewObjectID()
	f.journals[journal.ID] = *journal
	copied := *journal
	return &copied, nil
}

func (f *fakeStore) FindJournalByID(_ context.Context, id primitive.ObjectID) (*models.Journal, error) {
	journal, ok := f.journals[id]
	if !ok {
		return nil, nil
	}
	copied := journal
	return &copied, nil
}

func (f *fakeStore) FindJournalsByOwner(_ context.Context, ownerID primitive.ObjectID) ([]models.Journal, error) {
	var journals []models.Journal
	for _, journal := range f.journals {
		if journal.OwnerID == ownerID {
			journals = append(journals, journal)
		}
	}
	return journals, nil
}

func (f *fakeStore) UpdateJournal(_ context.Context, id primitive.ObjectID, title string, updatedAt time.Time) (*models.Journal, error) {
	journal := f.journals[id]
	journal.Title = title
	journal.UpdatedAt = updatedAt
	f.journals[id] = journal
	copied := journal
	return &copied, nil
}

func (f *fakeStore) DeleteJournal(_ context.Context, id primitive.ObjectID) (*storage.DeleteResult, error) {
	if _, ok := f.journals[id]; !ok {
		return &storage.DeleteResult{DeletedCount: 0}, nil
	}
	delete(f.journals, id)
	return &storage.DeleteResult{DeletedCount: 1}, nil
}

func (f *fakeStore) AddEntry(_ context.Context, entry *models.Entry) (*models.Entry, error) {
	entry.ID = primitive.NewObjectID()
	f.entries[entry.ID] = *entry
	copied := *entry
	return &copied, nil
}

func (f *fakeStore) FindEntryByID(_ context.Context, id primitive.ObjectID) (*models.Entry, error) {
	entry, ok := f.entries[id]
	if !ok {
		return nil, nil
	}
	copied := entry
	return &copied, nil
}

func (f *fakeStore) FindEntries(_ context.Context, journalID primitive.ObjectID, _ storage.EntryListOptions) ([]models.Entry, error) {
	var entries []models.Entry
	for _, entry := range f.entries {
		if entry.JournalID == journalID && entry.DeletedAt == nil {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (f *fakeStore) ReplaceEntry(_ context.Context, entry *models.Entry) (*models.Entry, error) {
	f.entries[entry.ID] = *entry
	copied := *entry
	return &copied, nil
}

func (f *fakeStore) ConnectOrCreateTags(_ context.Context, names []string) ([]models.Tag, error) {
	var tags []models.Tag
	for _, name := range names {
		tag, ok := f.tags[name]
		if !ok {
			tag = models.Tag{ID: primitive.NewObjectID(), Name: name}
			f.tags[name] = tag
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func (f *fakeStore) GetStreak(_ context.Context, userID primitive.ObjectID) (*models.StreakRecord, error) {
	record, ok := f.streaks[userID]
	if !ok {
		return nil, nil
	}
	copied := record
	return &copied, nil
}

func (f *fakeStore) ReplaceStreak(_ context.Context, record *models.StreakRecord) (*models.StreakRecord, error) {
	f.streaks[record.UserID] = *record
	copied := *record
	return &copied, nil
}

func ratingPtr(r int) *int {
	return &r
}

func strPtr(s string) *string {
	return &s
}

func newTestService(now time.Time) (*Service, *fakeStore, *recordingScheduler) {
	store := newFakeStore()
	scheduler := &recordingScheduler{}
	svc := NewService(store, streak.NewTracker(store), scheduler, staticZones{tz: "UTC"}, fixedClock{now: now})
	return svc, store, scheduler
}

func seedJournal(t *testing.T, svc *Service, userID primitive.ObjectID) *models.Journal {
	t.Helper()
	journal, err := svc.CreateJournal(context.Background(), userID, "Daily")
	require.NoError(t, err)
	return journal
}

func TestCreateJournalDefaultsTitle(t *testing.T) {
	svc, _, _ := newTestService(time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC))
	userID := primitive.NewObjectID()

	journal, err := svc.CreateJournal(context.Background(), userID, "")
	require.NoError(t, err)
	assert.Equal(t, "Untitled Journal", journal.Title)
	assert.Equal(t, userID, journal.OwnerID)
}

func TestCreateEntryUpdatesStreak(t *testing.T) {
	svc, store, _ := newTestService(time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC))
	userID := primitive.NewObjectID()
	journal := seedJournal(t, svc, userID)
	ctx := context.Background()

	entry, err := svc.CreateEntry(ctx, userID, journal.ID, CreateEntryInput{
		Kind: "free_form",
		Body: "Two quick words here",
	})
	require.NoError(t, err)

	assert.Equal(t, 4, entry.WordCount)
	assert.Equal(t, "Two quick words here", entry.Snippet)

	record, ok := store.streaks[userID]
	require.True(t, ok)
	assert.Equal(t, 1, record.CurrentStreak)
	assert.Equal(t, 1, record.TotalEntries)
}

func TestCreateEntrySchedulesRecomputeOnlyWhenRated(t *testing.T) {
	svc, _, scheduler := newTestService(time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC))
	userID := primitive.NewObjectID()
	journal := seedJournal(t, svc, userID)
	ctx := context.Background()

	_, err := svc.CreateEntry(ctx, userID, journal.ID, CreateEntryInput{Kind: "free_form", Body: "no rating"})
	require.NoError(t, err)
	assert.Empty(t, scheduler.calls)

	_, err = svc.CreateEntry(ctx, userID, journal.ID, CreateEntryInput{Kind: "guided", Body: "rated", Rating: ratingPtr(7)})
	require.NoError(t, err)
	require.Len(t, scheduler.calls, 1)
	assert.Equal(t, userID.Hex()+" 2025-03-10", scheduler.calls[0])
}

func TestCreateEntrySchedulerFailureIsSwallowed(t *testing.T) {
	svc, _, scheduler := newTestService(time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC))
	scheduler.err = errors.New("broker down")
	userID := primitive.NewObjectID()
	journal := seedJournal(t, svc, userID)

	entry, err := svc.CreateEntry(context.Background(), userID, journal.ID, CreateEntryInput{
		Kind:   "guided",
		Rating: ratingPtr(5),
	})
	require.NoError(t, err)
	assert.NotNil(t, entry)
	assert.Len(t, scheduler.calls, 1)
}

func TestCreateEntryRejectsOutOfRangeRating(t *testing.T) {
	svc, store, scheduler := newTestService(time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC))
	userID := primitive.NewObjectID()
	journal := seedJournal(t, svc, userID)
	ctx := context.Background()

	for _, rating := range []int{-1, 0, 6, 100} {
		_, err := svc.CreateEntry(ctx, userID, journal.ID, CreateEntryInput{Kind: "guided", Rating: ratingPtr(rating)})
		assert.ErrorIs(t, err, ErrInvalidRating, "rating %d", rating)
	}

	// Nothing was written and no side work was queued.
	assert.Empty(t, store.entries)
	assert.Empty(t, scheduler.calls)
	_, tracked := store.streaks[userID]
	assert.False(t, tracked)

	// The scale bounds themselves are fine.
	for _, rating := range []int{1, 5} {
		_, err := svc.CreateEntry(ctx, userID, journal.ID, CreateEntryInput{Kind: "guided", Rating: ratingPtr(rating)})
		require.NoError(t, err)
	}
}

func TestUpdateEntryRejectsOutOfRangeRating(t *testing.T) {
	svc, _, scheduler := newTestService(time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC))
	userID := primitive.NewObjectID()
	journal := seedJournal(t, svc, userID)
	ctx := context.Background()

	entry, err := svc.CreateEntry(ctx, userID, journal.ID, CreateEntryInput{Kind: "guided", Rating: ratingPtr(3)})
	require.NoError(t, err)
	scheduler.calls = nil

	_, err = svc.UpdateEntry(ctx, userID, entry.ID, UpdateEntryInput{Rating: ratingPtr(6)})
	assert.ErrorIs(t, err, ErrInvalidRating)
	assert.Empty(t, scheduler.calls)

	// The stored rating is untouched.
	stored, err := svc.GetEntry(ctx, userID, entry.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Rating)
	assert.Equal(t, 3, *stored.Rating)
}

func TestCreateEntryDeniedForForeignJournal(t *testing.T) {
	svc, _, _ := newTestService(time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC))
	owner := primitive.NewObjectID()
	intruder := primitive.NewObjectID()
	journal := seedJournal(t, svc, owner)

	_, err := svc.CreateEntry(context.Background(), intruder, journal.ID, CreateEntryInput{Kind: "free_form"})
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestCreateEntryConnectsTags(t *testing.T) {
	svc, store, _ := newTestService(time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC))
	userID := primitive.NewObjectID()
	journal := seedJournal(t, svc, userID)
	ctx := context.Background()

	first, err := svc.CreateEntry(ctx, userID, journal.ID, CreateEntryInput{Kind: "free_form", Tags: []string{"work", "health"}})
	require.NoError(t, err)
	require.Len(t, first.TagIDs, 2)

	second, err := svc.CreateEntry(ctx, userID, journal.ID, CreateEntryInput{Kind: "free_form", Tags: []string{"work"}})
	require.NoError(t, err)
	require.Len(t, second.TagIDs, 1)

	// "work" resolves to the same tag both times.
	assert.Equal(t, first.TagIDs[0], second.TagIDs[0])
	assert.Len(t, store.tags, 2)
}

func TestUpdateEntrySchedulesOnlyOnRatingChange(t *testing.T) {
	svc, _, scheduler := newTestService(time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC))
	userID := primitive.NewObjectID()
	journal := seedJournal(t, svc, userID)
	ctx := context.Background()

	entry, err := svc.CreateEntry(ctx, userID, journal.ID, CreateEntryInput{Kind: "guided", Rating: ratingPtr(5)})
	require.NoError(t, err)
	scheduler.calls = nil

	// Title-only update does not touch the queue.
	_, err = svc.UpdateEntry(ctx, userID, entry.ID, UpdateEntryInput{Title: strPtr("Evening pages")})
	require.NoError(t, err)
	assert.Empty(t, scheduler.calls)

	// Same rating again is not a change.
	_, err = svc.UpdateEntry(ctx, userID, entry.ID, UpdateEntryInput{Rating: ratingPtr(5)})
	require.NoError(t, err)
	assert.Empty(t, scheduler.calls)

	_, err = svc.UpdateEntry(ctx, userID, entry.ID, UpdateEntryInput{Rating: ratingPtr(8)})
	require.NoError(t, err)
	assert.Len(t, scheduler.calls, 1)
}

func TestUpdateEntryRecountsWords(t *testing.T) {
	svc, _, _ := newTestService(time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC))
	userID := primitive.NewObjectID()
	journal := seedJournal(t, svc, userID)
	ctx := context.Background()

	entry, err := svc.CreateEntry(ctx, userID, journal.ID, CreateEntryInput{Kind: "free_form", Body: "one two"})
	require.NoError(t, err)
	assert.Equal(t, 2, entry.WordCount)

	entry, err = svc.UpdateEntry(ctx, userID, entry.ID, UpdateEntryInput{Body: strPtr("one two three four five")})
	require.NoError(t, err)
	assert.Equal(t, 5, entry.WordCount)
	assert.Equal(t, "one two three four five", entry.Snippet)
}

func TestDeleteEntryKeepsStreakAndSchedulesNothing(t *testing.T) {
	svc, store, scheduler := newTestService(time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC))
	userID := primitive.NewObjectID()
	journal := seedJournal(t, svc, userID)
	ctx := context.Background()

	entry, err := svc.CreateEntry(ctx, userID, journal.ID, CreateEntryInput{Kind: "guided", Rating: ratingPtr(6)})
	require.NoError(t, err)
	scheduler.calls = nil

	require.NoError(t, svc.DeleteEntry(ctx, userID, entry.ID))

	assert.Empty(t, scheduler.calls)
	record := store.streaks[userID]
	assert.Equal(t, 1, record.CurrentStreak)
	assert.Equal(t, 1, record.TotalEntries)

	_, err = svc.GetEntry(ctx, userID, entry.ID)
	assert.ErrorIs(t, err, ErrEntryNotFound)

	// Second delete reports the entry gone.
	assert.ErrorIs(t, svc.DeleteEntry(ctx, userID, entry.ID), ErrEntryNotFound)
}

func TestGetJournalNotFoundForForeignOwner(t *testing.T) {
	svc, _, _ := newTestService(time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC))
	owner := primitive.NewObjectID()
	journal := seedJournal(t, svc, owner)

	_, err := svc.GetJournal(context.Background(), primitive.NewObjectID(), journal.ID)
	assert.ErrorIs(t, err, ErrJournalNotFound)
}
