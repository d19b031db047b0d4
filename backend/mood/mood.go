// Package mood derives and serves the single representative mood score a
// user gets per calendar day, either set directly or recomputed from the
// ratings of that day's journal entries.
package mood

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/inkwell-app/inkwell/backend/models"
	storage "github.com/inkwell-app/inkwell/backend/storage/persistent"
	"github.com/inkwell-app/inkwell/lib/timeutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrInvalidScore rejects scores outside the 0-10 scale.
	ErrInvalidScore = errors.New("score must be between 0 and 10")
	// ErrInvalidDay rejects malformed day strings.
	ErrInvalidDay = errors.New("day must be formatted as YYYY-MM-DD")
	// ErrNothingToDelete signals a delete for a day with no mood point.
	ErrNothingToDelete = errors.New("no mood point recorded for that day")
)

// Store is the slice of the persistent storage the aggregator writes.
type Store interface {
	UpsertMoodPoint(ctx context.Context, point *models.MoodPoint) (*models.MoodPoint, error)
	FindMoodPointsInRange(ctx context.Context, userID primitive.ObjectID, from, to time.Time) ([]models.MoodPoint, error)
	SoftDeleteMoodPoint(ctx context.Context, userID primitive.ObjectID, day time.Time) (*storage.DeleteResult, error)
}

// EntryReader reads the rated entries a recompute aggregates over.
type EntryReader interface {
	FindRatedEntriesInRange(ctx context.Context, ownerID primitive.ObjectID, start, end time.Time) ([]models.Entry, error)
}

// ZoneResolver supplies the timezone a user's day boundaries live in.
type ZoneResolver interface {
	TimezoneFor(ctx context.Context, userID primitive.ObjectID) string
}

// UpsertInput carries a direct mood-point write. Day is optional and
// defaults to today in the user's timezone; Color is optional and defaults
// from the score thresholds.
type UpsertInput struct {
	Score   int    `json:"score"`
	Emotion string `json:"emotion,omitempty"`
	Color   string `json:"color,omitempty"`
	Day     string `json:"day,omitempty"`
}

// RangeResult is a window of mood points plus the resolved bounds.
type RangeResult struct {
	From   string             `json:"from"`
	To     string             `json:"to"`
	Points []models.MoodPoint `json:"points"`
}

// WeeklyProfileResult holds the Sunday-first day-of-week averages for the
// mood chart.
type WeeklyProfileResult struct {
	Labels []string `json:"labels"`
	Data   []int    `json:"data"`
}

// DeleteResult acknowledges a mood-point deletion.
type DeleteResult struct {
	Deleted bool   `json:"deleted"`
	Day     string `json:"day"`
}

// Aggregator maintains mood points. It is safe to run redundant or
// concurrent recomputes for the same day: each one rereads the entries and
// upserts the same (user, day) slot.
type Aggregator struct {
	store   Store
	entries EntryReader
	zones   ZoneResolver
	clock   timeutil.Clock
}

// NewAggregator creates an Aggregator over the given collaborators.
func NewAggregator(store Store, entries EntryReader, zones ZoneResolver, clock timeutil.Clock) *Aggregator {
	return &Aggregator{store: store, entries: entries, zones: zones, clock: clock}
}

// colorFor maps a score onto its display color. The lowest band reuses the
// middle band's color; this table is a behavior contract, keep it as is.
func colorFor(score int) string {
	if score >= 8 {
		return "#31A288"
	}
	if score >= 5 {
		return "#F7BF46"
	}
	if score >= 3 {
		return "#EDC843"
	}
	return "#F7BF46"
}

func (a *Aggregator) zoneFor(ctx context.Context, userID primitive.ObjectID) *time.Location {
	tz := a.zones.TimezoneFor(ctx, userID)
	loc, err := timeutil.LoadZone(tz)
	if err != nil {
		// A broken preference must not take the user's mood data down.
		return time.UTC
	}
	return loc
}

// Upsert creates or overwrites the mood point for a day. Validation happens
// before any mutation.
func (a *Aggregator) Upsert(ctx context.Context, userID primitive.ObjectID, in UpsertInput) (*models.MoodPoint, error) {
	if in.Score < 0 || in.Score > 10 {
		return nil, ErrInvalidScore
	}

	loc := a.zoneFor(ctx, userID)

	dayISO := in.Day
	if dayISO == "" {
		dayISO = timeutil.ISODateOnly(a.clock.Now(), loc)
	}
	day, err := timeutil.DateKey(dayISO)
	if err != nil {
		return nil, ErrInvalidDay
	}

	color := in.Color
	if color == "" {
		color = colorFor(in.Score)
	}

	return a.store.UpsertMoodPoint(ctx, &models.MoodPoint{
		UserID:  userID,
		Day:     day,
		Score:   in.Score,
		Emotion: in.Emotion,
		Color:   color,
	})
}

// RecomputeFromEntries re-derives the mood point for a day from the ratings
// of that day's non-deleted entries, in the user's timezone. With no
// qualifying entries it soft-deletes any existing point and returns nil.
//
// The average is rounded in two stages: first to one decimal, then to the
// nearest integer, half away from zero. Ratings [3, 4] average 3.5 and store
// a score of 4.
func (a *Aggregator) RecomputeFromEntries(ctx context.Context, userID primitive.ObjectID, dayISO string) (*models.MoodPoint, error) {
	loc := a.zoneFor(ctx, userID)

	localDay, err := timeutil.ParseISODate(dayISO, loc)
	if err != nil {
		return nil, ErrInvalidDay
	}
	start := timeutil.StartOfDay(localDay, loc)
	end := timeutil.EndOfDay(localDay, loc)

	entries, err := a.entries.FindRatedEntriesInRange(ctx, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load rated entries: %w", err)
	}

	if len(entries) == 0 {
		day, _ := timeutil.DateKey(dayISO)
		if _, err := a.store.SoftDeleteMoodPoint(ctx, userID, day); err != nil {
			return nil, fmt.Errorf("failed to clear mood point: %w", err)
		}
		return nil, nil
	}

	sum := 0
	for _, entry := range entries {
		if entry.Rating != nil {
			sum += *entry.Rating
		}
	}

	avg := math.Round(float64(sum)/float64(len(entries))*10) / 10
	score := int(math.Round(avg))

	return a.Upsert(ctx, userID, UpsertInput{Score: score, Day: dayISO})
}

// GetRange returns the non-deleted mood points with day in [from, to],
// ascending. Both bounds are optional; the default is the trailing 7-day
// window ending today in the user's timezone.
func (a *Aggregator) GetRange(ctx context.Context, userID primitive.ObjectID, fromISO, toISO string) (*RangeResult, error) {
	loc := a.zoneFor(ctx, userID)
	now := a.clock.Now().In(loc)

	if toISO == "" {
		toISO = timeutil.ISODateOnly(now, loc)
	}
	if fromISO == "" {
		fromISO = timeutil.ISODateOnly(now.AddDate(0, 0, -6), loc)
	}

	from, err := timeutil.DateKey(fromISO)
	if err != nil {
		return nil, ErrInvalidDay
	}
	to, err := timeutil.DateKey(toISO)
	if err != nil {
		return nil, ErrInvalidDay
	}

	points, err := a.store.FindMoodPointsInRange(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load mood points: %w", err)
	}
	if points == nil {
		points = []models.MoodPoint{}
	}

	return &RangeResult{From: fromISO, To: toISO, Points: points}, nil
}

// WeeklyProfile buckets the mood points of the trailing weeks by day of
// week and averages each bucket. Index 0 is Sunday; empty buckets read 0.
func (a *Aggregator) WeeklyProfile(ctx context.Context, userID primitive.ObjectID, weeks int) (*WeeklyProfileResult, error) {
	if weeks <= 0 {
		weeks = 4
	}

	loc := a.zoneFor(ctx, userID)
	now := a.clock.Now().In(loc)

	end := timeutil.EndOfDay(now, loc)
	start := timeutil.StartOfDay(end.AddDate(0, 0, -7*weeks), loc)
	// Align the window start onto its week's Sunday.
	start = start.AddDate(0, 0, -int(start.Weekday()))

	from, err := timeutil.DateKey(timeutil.ISODateOnly(start, loc))
	if err != nil {
		return nil, err
	}
	to, err := timeutil.DateKey(timeutil.ISODateOnly(end, loc))
	if err != nil {
		return nil, err
	}

	rows, err := a.store.FindMoodPointsInRange(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load mood points: %w", err)
	}

	sums := make([]int, 7)
	counts := make([]int, 7)
	for _, row := range rows {
		// Day is a date-only UTC midnight, so its UTC weekday is the
		// calendar weekday itself.
		i := int(row.Day.UTC().Weekday())
		sums[i] += row.Score
		counts[i]++
	}

	data := make([]int, 7)
	for i := range sums {
		if counts[i] > 0 {
			data[i] = int(math.Round(float64(sums[i]) / float64(counts[i])))
		}
	}

	return &WeeklyProfileResult{
		Labels: []string{"S", "M", "T", "W", "T", "F", "S"},
		Data:   data,
	}, nil
}

// DeleteForDay removes the mood point for a day. It returns
// ErrNothingToDelete when no non-deleted point existed.
func (a *Aggregator) DeleteForDay(ctx context.Context, userID primitive.ObjectID, dayISO string) (*DeleteResult, error) {
	day, err := timeutil.DateKey(dayISO)
	if err != nil {
		return nil, ErrInvalidDay
	}

	res, err := a.store.SoftDeleteMoodPoint(ctx, userID, day)
	if err != nil {
		return nil, fmt.Errorf("failed to delete mood point: %w", err)
	}
	if res.DeletedCount == 0 {
		return nil, ErrNothingToDelete
	}
	return &DeleteResult{Deleted: true, Day: dayISO}, nil
}
