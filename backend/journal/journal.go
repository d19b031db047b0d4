// Package journal implements journal and entry CRUD and drives the two
// derived subsystems: every entry creation updates the writing streak
// synchronously, and rated creations/updates schedule an asynchronous mood
// recompute for the affected day.
package journal

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/inkwell-app/inkwell/backend/models"
	storage "github.com/inkwell-app/inkwell/backend/storage/persistent"
	"github.com/inkwell-app/inkwell/backend/streak"
	"github.com/inkwell-app/inkwell/lib/timeutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrAccessDenied signals an ownership check failure.
	ErrAccessDenied = errors.New("access denied")
	// ErrJournalNotFound signals a lookup for a missing journal.
	ErrJournalNotFound = errors.New("journal not found")
	// ErrEntryNotFound signals a lookup for a missing or deleted entry.
	ErrEntryNotFound = errors.New("entry not found")
	// ErrInvalidRating rejects entry ratings outside the 1-5 scale. An
	// out-of-range rating would poison every recompute of its day, so it is
	// rejected before anything is written.
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
)

// Store is the slice of the persistent storage the service needs.
type Store interface {
	AddJournal(ctx context.Context, journal *models.Journal) (*models.Journal, error)
	FindJournalByID(ctx context.Context, id primitive.ObjectID) (*models.Journal, error)
	FindJournalsByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.Journal, error)
	UpdateJournal(ctx context.Context, id primitive.ObjectID, title string, updatedAt time.Time) (*models.Journal, error)
	DeleteJournal(ctx context.Context, id primitive.ObjectID) (*storage.DeleteResult, error)

	AddEntry(ctx context.Context, entry *models.Entry) (*models.Entry, error)
	FindEntryByID(ctx context.Context, id primitive.ObjectID) (*models.Entry, error)
	FindEntries(ctx context.Context, journalID primitive.ObjectID, opts storage.EntryListOptions) ([]models.Entry, error)
	ReplaceEntry(ctx context.Context, entry *models.Entry) (*models.Entry, error)

	ConnectOrCreateTags(ctx context.Context, names []string) ([]models.Tag, error)
}

// RecomputeScheduler hands a (user, day) mood recompute to the asynchronous
// task queue. Scheduling failures are logged, never surfaced to the caller:
// an entry write must not fail because its side work could not be queued.
type RecomputeScheduler interface {
	Schedule(userID primitive.ObjectID, dayISO string) error
}

// ZoneResolver supplies the timezone used to name the day a rated entry
// belongs to when scheduling its recompute.
type ZoneResolver interface {
	TimezoneFor(ctx context.Context, userID primitive.ObjectID) string
}

// CreateEntryInput carries a new entry. Rating, when set, must be on the
// 1-5 scale.
type CreateEntryInput struct {
	Kind      string   `json:"kind"`
	Title     string   `json:"title,omitempty"`
	Body      string   `json:"body,omitempty"`
	Rating    *int     `json:"rating,omitempty"`
	MoodLabel string   `json:"mood_label,omitempty"`
	IsDraft   bool     `json:"is_draft,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

// UpdateEntryInput carries a partial entry update; nil fields are untouched.
type UpdateEntryInput struct {
	Title     *string  `json:"title,omitempty"`
	Body      *string  `json:"body,omitempty"`
	Rating    *int     `json:"rating,omitempty"`
	MoodLabel *string  `json:"mood_label,omitempty"`
	IsDraft   *bool    `json:"is_draft,omitempty"`
	Tags      []string `json:"tags,omitempty"`
}

// Service wires entry mutations to the streak tracker and the recompute
// queue.
type Service struct {
	store     Store
	streaks   *streak.Tracker
	scheduler RecomputeScheduler
	zones     ZoneResolver
	clock     timeutil.Clock
}

// NewService creates a Service over the given collaborators.
func NewService(store Store, streaks *streak.Tracker, scheduler RecomputeScheduler, zones ZoneResolver, clock timeutil.Clock) *Service {
	return &Service{
		store:     store,
		streaks:   streaks,
		scheduler: scheduler,
		zones:     zones,
		clock:     clock,
	}
}

// ensureJournalOwnership loads a journal and verifies the caller owns it.
func (s *Service) ensureJournalOwnership(ctx context.Context, userID, journalID primitive.ObjectID) (*models.Journal, error) {
	journal, err := s.store.FindJournalByID(ctx, journalID)
	if err != nil {
		return nil, err
	}
	if journal == nil || journal.OwnerID != userID {
		return nil, ErrAccessDenied
	}
	return journal, nil
}

// ensureEntryOwnership loads an entry and verifies the caller owns its journal.
func (s *Service) ensureEntryOwnership(ctx context.Context, userID, entryID primitive.ObjectID) (*models.Entry, error) {
	entry, err := s.store.FindEntryByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrAccessDenied
	}
	if _, err := s.ensureJournalOwnership(ctx, userID, entry.JournalID); err != nil {
		return nil, err
	}
	return entry, nil
}

// CreateJournal creates a journal for the user.
func (s *Service) CreateJournal(ctx context.Context, userID primitive.ObjectID, title string) (*models.Journal, error) {
	if title == "" {
		title = "Untitled Journal"
	}
	now := s.clock.Now().UTC()
	return s.store.AddJournal(ctx, &models.Journal{
		OwnerID:   userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// GetJournals lists the user's journals, newest first.
func (s *Service) GetJournals(ctx context.Context, userID primitive.ObjectID) ([]models.Journal, error) {
	return s.store.FindJournalsByOwner(ctx, userID)
}

// GetJournal returns one of the user's journals.
func (s *Service) GetJournal(ctx context.Context, userID, journalID primitive.ObjectID) (*models.Journal, error) {
	journal, err := s.store.FindJournalByID(ctx, journalID)
	if err != nil {
		return nil, err
	}
	if journal == nil || journal.OwnerID != userID {
		return nil, ErrJournalNotFound
	}
	return journal, nil
}

// UpdateJournal renames one of the user's journals.
func (s *Service) UpdateJournal(ctx context.Context, userID, journalID primitive.ObjectID, title string) (*models.Journal, error) {
	if _, err := s.ensureJournalOwnership(ctx, userID, journalID); err != nil {
		return nil, err
	}
	return s.store.UpdateJournal(ctx, journalID, title, s.clock.Now().UTC())
}

// DeleteJournal deletes one of the user's journals.
func (s *Service) DeleteJournal(ctx context.Context, userID, journalID primitive.ObjectID) error {
	if _, err := s.ensureJournalOwnership(ctx, userID, journalID); err != nil {
		return err
	}
	_, err := s.store.DeleteJournal(ctx, journalID)
	return err
}

// wordCount counts whitespace-separated words.
func wordCount(body string) int {
	if strings.TrimSpace(body) == "" {
		return 0
	}
	return len(strings.Fields(body))
}

// snippet keeps the first 150 characters of the body for listings.
func snippet(body string) string {
	if body == "" {
		return ""
	}
	if len(body) > 150 {
		return body[:150] + "..."
	}
	return body
}

// validRating reports whether a rating pointer is nil or within 1-5.
func validRating(rating *int) bool {
	return rating == nil || (*rating >= 1 && *rating <= 5)
}

// CreateEntry persists a new entry, then in order: updates the user's streak
// (synchronously, storage failures propagate), and, if the entry carries a
// rating, schedules a mood recompute for its day (fire-and-forget).
func (s *Service) CreateEntry(ctx context.Context, userID, journalID primitive.ObjectID, in CreateEntryInput) (*models.Entry, error) {
	if !validRating(in.Rating) {
		return nil, ErrInvalidRating
	}
	if _, err := s.ensureJournalOwnership(ctx, userID, journalID); err != nil {
		return nil, err
	}

	var tagIDs []primitive.ObjectID
	if len(in.Tags) > 0 {
		tags, err := s.store.ConnectOrCreateTags(ctx, in.Tags)
		if err != nil {
			return nil, fmt.Errorf("failed to connect tags: %w", err)
		}
		for _, tag := range tags {
			tagIDs = append(tagIDs, tag.ID)
		}
	}

	entry := &models.Entry{
		JournalID: journalID,
		Kind:      in.Kind,
		Title:     in.Title,
		Body:      in.Body,
		Rating:    in.Rating,
		MoodLabel: in.MoodLabel,
		WordCount: wordCount(in.Body),
		Snippet:   snippet(in.Body),
		IsDraft:   in.IsDraft,
		TagIDs:    tagIDs,
		EntryDate: s.clock.Now().UTC(),
	}

	entry, err := s.store.AddEntry(ctx, entry)
	if err != nil {
		return nil, err
	}

	if _, err := s.streaks.RecordEntryCreated(ctx, userID, entry.EntryDate); err != nil {
		return nil, err
	}

	if entry.Rating != nil {
		s.scheduleRecompute(ctx, userID, entry.EntryDate)
	}
	return entry, nil
}

// scheduleRecompute enqueues the mood recompute for the day the timestamp
// falls on in the user's timezone. Failures are logged only.
func (s *Service) scheduleRecompute(ctx context.Context, userID primitive.ObjectID, at time.Time) {
	loc, err := timeutil.LoadZone(s.zones.TimezoneFor(ctx, userID))
	if err != nil {
		loc = time.UTC
	}
	dayISO := timeutil.ISODateOnly(at, loc)

	if err := s.scheduler.Schedule(userID, dayISO); err != nil {
		log.Printf("failed to schedule mood recompute for user %s day %s: %v", userID.Hex(), dayISO, err)
	}
}

// GetEntries lists entries of one of the user's journals.
func (s *Service) GetEntries(ctx context.Context, userID, journalID primitive.ObjectID, opts storage.EntryListOptions) ([]models.Entry, error) {
	if _, err := s.ensureJournalOwnership(ctx, userID, journalID); err != nil {
		return nil, err
	}
	return s.store.FindEntries(ctx, journalID, opts)
}

// GetEntry returns one of the user's entries.
func (s *Service) GetEntry(ctx context.Context, userID, entryID primitive.ObjectID) (*models.Entry, error) {
	entry, err := s.ensureEntryOwnership(ctx, userID, entryID)
	if err != nil {
		return nil, err
	}
	if entry.DeletedAt != nil {
		return nil, ErrEntryNotFound
	}
	return entry, nil
}

// UpdateEntry applies a partial update to one of the user's entries. If the
// rating changed, a mood recompute is scheduled for the entry's day.
func (s *Service) UpdateEntry(ctx context.Context, userID, entryID primitive.ObjectID, in UpdateEntryInput) (*models.Entry, error) {
	if !validRating(in.Rating) {
		return nil, ErrInvalidRating
	}
	entry, err := s.ensureEntryOwnership(ctx, userID, entryID)
	if err != nil {
		return nil, err
	}
	if entry.DeletedAt != nil {
		return nil, ErrEntryNotFound
	}

	ratingChanged := false
	if in.Rating != nil && (entry.Rating == nil || *entry.Rating != *in.Rating) {
		ratingChanged = true
	}

	if in.Title != nil {
		entry.Title = *in.Title
	}
	if in.Body != nil {
		entry.Body = *in.Body
		entry.WordCount = wordCount(*in.Body)
		entry.Snippet = snippet(*in.Body)
	}
	if in.Rating != nil {
		entry.Rating = in.Rating
	}
	if in.MoodLabel != nil {
		entry.MoodLabel = *in.MoodLabel
	}
	if in.IsDraft != nil {
		entry.IsDraft = *in.IsDraft
	}
	if in.Tags != nil {
		tags, err := s.store.ConnectOrCreateTags(ctx, in.Tags)
		if err != nil {
			return nil, fmt.Errorf("failed to connect tags: %w", err)
		}
		entry.TagIDs = nil
		for _, tag := range tags {
			entry.TagIDs = append(entry.TagIDs, tag.ID)
		}
	}

	entry, err = s.store.ReplaceEntry(ctx, entry)
	if err != nil {
		return nil, err
	}

	if ratingChanged {
		s.scheduleRecompute(ctx, userID, entry.EntryDate)
	}
	return entry, nil
}

// DeleteEntry soft-deletes one of the user's entries. Streak counters are
// never rolled back and no recompute is scheduled; the nightly reconcile or
// an explicit recompute picks up the difference.
func (s *Service) DeleteEntry(ctx context.Context, userID, entryID primitive.ObjectID) error {
	entry, err := s.ensureEntryOwnership(ctx, userID, entryID)
	if err != nil {
		return err
	}
	if entry.DeletedAt != nil {
		return ErrEntryNotFound
	}

	now := s.clock.Now().UTC()
	entry.DeletedAt = &now
	_, err = s.store.ReplaceEntry(ctx, entry)
	return err
}
