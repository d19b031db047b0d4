package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/inkwell-app/inkwell/backend/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStorage is a struct representing a MongoDB storage.
// It provides an interface to perform CRUD operations on the collections
// backing the journaling core.
type MongoStorage struct {
	client *mongo.Client
	dbName string
}

// NewMongoStorage creates a new instance of MongoStorage.
// This function doesn't establish a connection to the MongoDB server.
// To connect to the server, use the Connect method of the returned instance.
func NewMongoStorage() *MongoStorage {
	return &MongoStorage{}
}

// Connect establishes a connection to the MongoDB server at the given URI
// and database name. Sets up indexes and unique constraints as necessary.
// Returns an error if any issues are encountered.
func (m *MongoStorage) Connect(dbName, uri string) error {

	// Set a timeout for the connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return fmt.Errorf("error connecting to MongoDB: %v", err)
	}

	m.client = client
	m.dbName = dbName

	// One streak record per user.
	streaks := m.collection("streak_records")
	_, err = streaks.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.M{"user_id": 1},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("error creating streak user_id index: %v", err)
	}

	// At most one mood point per (user, day). Soft-deleted points keep their
	// slot and are revived by upserts, so the unique constraint always holds.
	moodPoints := m.collection("mood_points")
	_, err = moodPoints.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "day", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("error creating mood user_id and day index: %v", err)
	}

	// Speed up journal listings per owner.
	journals := m.collection("journals")
	_, err = journals.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.M{"owner_id": 1},
	})
	if err != nil {
		return fmt.Errorf("error creating journal owner_id index: %v", err)
	}

	// Entries are queried per journal and per day window.
	entries := m.collection("entries")
	_, err = entries.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "journal_id", Value: 1},
			{Key: "entry_date", Value: -1},
		},
	})
	if err != nil {
		return fmt.Errorf("error creating entry journal_id index: %v", err)
	}

	// Tags are unique by name.
	tags := m.collection("tags")
	_, err = tags.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.M{"name": 1},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("error creating tag name index: %v", err)
	}

	// One preferences document per user.
	prefs := m.collection("user_preferences")
	_, err = prefs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.M{"user_id": 1},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("error creating preferences user_id index: %v", err)
	}

	return nil
}

// Disconnect closes the connection to the MongoDB server.
func (m *MongoStorage) Disconnect() error {
	if m.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func (m *MongoStorage) collection(name string) *mongo.Collection {
	return m.client.Database(m.dbName).Collection(name)
}

// GetStreak returns the streak record for a user, or nil when the user has
// never written an entry.
func (m *MongoStorage) GetStreak(ctx context.Context, userID primitive.ObjectID) (*models.StreakRecord, error) {
	var record models.StreakRecord
	err := m.collection("streak_records").FindOne(ctx, bson.M{"user_id": userID}).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error finding streak record: %v", err)
	}
	return &record, nil
}

// ReplaceStreak persists the full streak record in a single upsert scoped to
// its user, and returns the stored document.
func (m *MongoStorage) ReplaceStreak(ctx context.Context, record *models.StreakRecord) (*models.StreakRecord, error) {
	opts := options.FindOneAndReplace().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var stored models.StreakRecord
	err := m.collection("streak_records").
		FindOneAndReplace(ctx, bson.M{"user_id": record.UserID}, record, opts).
		Decode(&stored)
	if err != nil {
		return nil, fmt.Errorf("error replacing streak record: %v", err)
	}
	return &stored, nil
}

// UpsertMoodPoint creates or overwrites the mood point for (user_id, day).
// A previously soft-deleted point is revived in place so the unique index on
// the pair is never violated.
func (m *MongoStorage) UpsertMoodPoint(ctx context.Context, point *models.MoodPoint) (*models.MoodPoint, error) {
	filter := bson.M{"user_id": point.UserID, "day": point.Day}
	update := bson.M{
		"$set": bson.M{
			"score":      point.Score,
			"emotion":    point.Emotion,
			"color":      point.Color,
			"deleted_at": nil,
		},
		"$setOnInsert": bson.M{
			"user_id": point.UserID,
			"day":     point.Day,
		},
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var stored models.MoodPoint
	err := m.collection("mood_points").FindOneAndUpdate(ctx, filter, update, opts).Decode(&stored)
	if err != nil {
		return nil, fmt.Errorf("error upserting mood point: %v", err)
	}
	return &stored, nil
}

// FindMoodPointsInRange returns the non-deleted mood points of a user with
// day in [from, to], ascending by day.
func (m *MongoStorage) FindMoodPointsInRange(ctx context.Context, userID primitive.ObjectID, from, to time.Time) ([]models.MoodPoint, error) {
	filter := bson.M{
		"user_id":    userID,
		"day":        bson.M{"$gte": from, "$lte": to},
		"deleted_at": nil,
	}

	cursor, err := m.collection("mood_points").Find(ctx, filter, options.Find().SetSort(bson.M{"day": 1}))
	if err != nil {
		return nil, fmt.Errorf("error finding mood points: %v", err)
	}

	var points []models.MoodPoint
	if err := cursor.All(ctx, &points); err != nil {
		return nil, fmt.Errorf("error decoding mood points: %v", err)
	}
	return points, nil
}

// SoftDeleteMoodPoint marks the mood point for (user_id, day) deleted and
// reports how many documents were affected.
func (m *MongoStorage) SoftDeleteMoodPoint(ctx context.Context, userID primitive.ObjectID, day time.Time) (*DeleteResult, error) {
	filter := bson.M{"user_id": userID, "day": day, "deleted_at": nil}
	update := bson.M{"$set": bson.M{"deleted_at": time.Now().UTC()}}

	res, err := m.collection("mood_points").UpdateMany(ctx, filter, update)
	if err != nil {
		return nil, fmt.Errorf("error deleting mood point: %v", err)
	}
	return &DeleteResult{DeletedCount: res.ModifiedCount}, nil
}

// AddJournal adds a new journal to the database.
func (m *MongoStorage) AddJournal(ctx context.Context, journal *models.Journal) (*models.Journal, error) {
	res, err := m.collection("journals").InsertOne(ctx, journal)
	if err != nil {
		return nil, fmt.Errorf("error adding journal: %v", err)
	}
	journal.ID = res.InsertedID.(primitive.ObjectID)
	return journal, nil
}

// FindJournalByID finds a journal by its id, or returns nil when absent.
func (m *MongoStorage) FindJournalByID(ctx context.Context, id primitive.ObjectID) (*models.Journal, error) {
	var journal models.Journal
	err := m.collection("journals").FindOne(ctx, bson.M{"_id": id}).Decode(&journal)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error finding journal: %v", err)
	}
	return &journal, nil
}

// FindJournalsByOwner lists a user's journals, newest first.
func (m *MongoStorage) FindJournalsByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.Journal, error) {
	cursor, err := m.collection("journals").Find(ctx, bson.M{"owner_id": ownerID},
		options.Find().SetSort(bson.M{"created_at": -1}))
	if err != nil {
		return nil, fmt.Errorf("error finding journals: %v", err)
	}

	var journals []models.Journal
	if err := cursor.All(ctx, &journals); err != nil {
		return nil, fmt.Errorf("error decoding journals: %v", err)
	}
	return journals, nil
}

// UpdateJournal updates a journal's title and returns the stored document.
func (m *MongoStorage) UpdateJournal(ctx context.Context, id primitive.ObjectID, title string, updatedAt time.Time) (*models.Journal, error) {
	update := bson.M{"$set": bson.M{"title": title, "updated_at": updatedAt}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var journal models.Journal
	err := m.collection("journals").FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&journal)
	if err != nil {
		return nil, fmt.Errorf("error updating journal: %v", err)
	}
	return &journal, nil
}

// DeleteJournal deletes a journal.
func (m *MongoStorage) DeleteJournal(ctx context.Context, id primitive.ObjectID) (*DeleteResult, error) {
	res, err := m.collection("journals").DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, fmt.Errorf("error deleting journal: %v", err)
	}
	return &DeleteResult{DeletedCount: res.DeletedCount}, nil
}

// AddEntry adds a new entry to the database.
func (m *MongoStorage) AddEntry(ctx context.Context, entry *models.Entry) (*models.Entry, error) {
	res, err := m.collection("entries").InsertOne(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("error adding entry: %v", err)
	}
	entry.ID = res.InsertedID.(primitive.ObjectID)
	return entry, nil
}

// FindEntryByID finds an entry by its id, or returns nil when absent.
func (m *MongoStorage) FindEntryByID(ctx context.Context, id primitive.ObjectID) (*models.Entry, error) {
	var entry models.Entry
	err := m.collection("entries").FindOne(ctx, bson.M{"_id": id}).Decode(&entry)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error finding entry: %v", err)
	}
	return &entry, nil
}

// FindEntries lists the non-deleted entries of a journal, newest first.
func (m *MongoStorage) FindEntries(ctx context.Context, journalID primitive.ObjectID, listOpts EntryListOptions) ([]models.Entry, error) {
	filter := bson.M{"journal_id": journalID, "deleted_at": nil}
	if listOpts.Kind != "" {
		filter["kind"] = listOpts.Kind
	}
	if listOpts.IsDraft != nil {
		filter["is_draft"] = *listOpts.IsDraft
	}

	limit := listOpts.Limit
	if limit <= 0 {
		limit = 20
	}

	opts := options.Find().
		SetSort(bson.M{"entry_date": -1}).
		SetLimit(limit).
		SetSkip(listOpts.Offset)

	cursor, err := m.collection("entries").Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("error finding entries: %v", err)
	}

	var entries []models.Entry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("error decoding entries: %v", err)
	}
	return entries, nil
}

// journalIDsOf returns the ids of every journal the user owns.
func (m *MongoStorage) journalIDsOf(ctx context.Context, ownerID primitive.ObjectID) ([]primitive.ObjectID, error) {
	rawIDs, err := m.collection("journals").Distinct(ctx, "_id", bson.M{"owner_id": ownerID})
	if err != nil {
		return nil, fmt.Errorf("error finding user journals: %v", err)
	}

	ids := make([]primitive.ObjectID, 0, len(rawIDs))
	for _, raw := range rawIDs {
		if id, ok := raw.(primitive.ObjectID); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// FindRatedEntriesInRange returns a user's non-deleted, rated entries whose
// entry_date falls within [start, end]. Ownership goes through the user's
// journals, since entries carry only a journal id.
func (m *MongoStorage) FindRatedEntriesInRange(ctx context.Context, ownerID primitive.ObjectID, start, end time.Time) ([]models.Entry, error) {
	journalIDs, err := m.journalIDsOf(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(journalIDs) == 0 {
		return nil, nil
	}

	filter := bson.M{
		"journal_id": bson.M{"$in": journalIDs},
		"deleted_at": nil,
		"rating":     bson.M{"$ne": nil},
		"entry_date": bson.M{"$gte": start, "$lte": end},
	}

	cursor, err := m.collection("entries").Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error finding rated entries: %v", err)
	}

	var entries []models.Entry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("error decoding rated entries: %v", err)
	}
	return entries, nil
}

// FindRaterIDsInRange returns the ids of users owning at least one
// non-deleted rated entry within [start, end].
func (m *MongoStorage) FindRaterIDsInRange(ctx context.Context, start, end time.Time) ([]primitive.ObjectID, error) {
	filter := bson.M{
		"deleted_at": nil,
		"rating":     bson.M{"$ne": nil},
		"entry_date": bson.M{"$gte": start, "$lte": end},
	}

	rawJournalIDs, err := m.collection("entries").Distinct(ctx, "journal_id", filter)
	if err != nil {
		return nil, fmt.Errorf("error finding rated journals: %v", err)
	}
	if len(rawJournalIDs) == 0 {
		return nil, nil
	}

	journalIDs := make([]primitive.ObjectID, 0, len(rawJournalIDs))
	for _, raw := range rawJournalIDs {
		if id, ok := raw.(primitive.ObjectID); ok {
			journalIDs = append(journalIDs, id)
		}
	}

	rawOwnerIDs, err := m.collection("journals").Distinct(ctx, "owner_id", bson.M{"_id": bson.M{"$in": journalIDs}})
	if err != nil {
		return nil, fmt.Errorf("error finding journal owners: %v", err)
	}

	ownerIDs := make([]primitive.ObjectID, 0, len(rawOwnerIDs))
	for _, raw := range rawOwnerIDs {
		if id, ok := raw.(primitive.ObjectID); ok {
			ownerIDs = append(ownerIDs, id)
		}
	}
	return ownerIDs, nil
}

// ReplaceEntry writes the full entry document keyed on its id and returns the
// stored document.
func (m *MongoStorage) ReplaceEntry(ctx context.Context, entry *models.Entry) (*models.Entry, error) {
	opts := options.FindOneAndReplace().SetReturnDocument(options.After)

	var stored models.Entry
	err := m.collection("entries").
		FindOneAndReplace(ctx, bson.M{"_id": entry.ID}, entry, opts).
		Decode(&stored)
	if err != nil {
		return nil, fmt.Errorf("error replacing entry: %v", err)
	}
	return &stored, nil
}

// ConnectOrCreateTags upserts tags by name and returns them.
func (m *MongoStorage) ConnectOrCreateTags(ctx context.Context, names []string) ([]models.Tag, error) {
	tags := make([]models.Tag, 0, len(names))
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	for _, name := range names {
		var tag models.Tag
		err := m.collection("tags").
			FindOneAndUpdate(ctx, bson.M{"name": name}, bson.M{"$setOnInsert": bson.M{"name": name}}, opts).
			Decode(&tag)
		if err != nil {
			return nil, fmt.Errorf("error upserting tag %q: %v", name, err)
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// GetTimezone returns the user's configured IANA timezone, or the empty
// string when the user has no preferences document.
func (m *MongoStorage) GetTimezone(ctx context.Context, userID primitive.ObjectID) (string, error) {
	var prefs models.UserPreferences
	err := m.collection("user_preferences").FindOne(ctx, bson.M{"user_id": userID}).Decode(&prefs)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("error finding user preferences: %v", err)
	}
	return prefs.Timezone, nil
}
