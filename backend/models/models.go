package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// StreakRecord tracks a user's consecutive writing days. One record per user.
// LastEntryDate holds only the calendar date (truncated to UTC midnight) and
// is nil before the user's first entry.
type StreakRecord struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID        primitive.ObjectID `bson:"user_id" json:"user_id"`
	CurrentStreak int                `bson:"current_streak" json:"current_streak"`
	LongestStreak int                `bson:"longest_streak" json:"longest_streak"`
	TotalEntries  int                `bson:"total_entries" json:"total_entries"`
	LastEntryDate *time.Time         `bson:"last_entry_date,omitempty" json:"last_entry_date,omitempty"`
	MonthlyCount  int                `bson:"monthly_count" json:"monthly_count"`
	CurrentMonth  string             `bson:"current_month" json:"current_month"`
}

// MoodPoint is the single aggregate mood score stored for a user for one
// calendar day. Day holds the UTC midnight of the ISO date; at most one
// non-deleted point exists per (user, day).
type MoodPoint struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"user_id" json:"user_id"`
	Day       time.Time          `bson:"day" json:"day"`
	Score     int                `bson:"score" json:"score"`
	Emotion   string             `bson:"emotion,omitempty" json:"emotion,omitempty"`
	Color     string             `bson:"color,omitempty" json:"color,omitempty"`
	DeletedAt *time.Time         `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`
}

type Journal struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OwnerID   primitive.ObjectID `bson:"owner_id" json:"owner_id"`
	Title     string             `bson:"title" json:"title"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// Entry is a single journal entry. Rating is nil when the user did not rate
// the entry; rated entries feed the mood aggregation for their day.
type Entry struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	JournalID primitive.ObjectID   `bson:"journal_id" json:"journal_id"`
	Kind      string               `bson:"kind" json:"kind"`
	Title     string               `bson:"title,omitempty" json:"title,omitempty"`
	Body      string               `bson:"body,omitempty" json:"body,omitempty"`
	Rating    *int                 `bson:"rating,omitempty" json:"rating,omitempty"`
	MoodLabel string               `bson:"mood_label,omitempty" json:"mood_label,omitempty"`
	WordCount int                  `bson:"word_count" json:"word_count"`
	Snippet   string               `bson:"snippet,omitempty" json:"snippet,omitempty"`
	IsDraft   bool                 `bson:"is_draft" json:"is_draft"`
	TagIDs    []primitive.ObjectID `bson:"tag_ids,omitempty" json:"tag_ids,omitempty"`
	EntryDate time.Time            `bson:"entry_date" json:"entry_date"`
	DeletedAt *time.Time           `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`
}

type Tag struct {
	ID   primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name string             `bson:"name" json:"name"`
}

// UserPreferences carries the per-user settings the core reads. Timezone is
// an IANA zone name; an empty value means UTC.
type UserPreferences struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID   primitive.ObjectID `bson:"user_id" json:"user_id"`
	Timezone string             `bson:"timezone,omitempty" json:"timezone,omitempty"`
}
