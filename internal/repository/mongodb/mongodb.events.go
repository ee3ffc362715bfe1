// FilePath: server/worker/internal/repository/mongodb/mongodb.events.go
package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vigilhome/vigil_v3/server/worker/internal/database"
	"github.com/vigilhome/vigil_v3/server/worker/internal/errors"
	"github.com/vigilhome/vigil_v3/server/worker/internal/models"
)

const eventsCollection = "events"

type EventRepo struct {
	events *mongo.Collection
}

func NewEventRepository(db *database.MongoDB) (*EventRepo, error) {
	repo := &EventRepo{events: db.Collection(eventsCollection)}
	if err := repo.initializeIndexes(); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *EventRepo) initializeIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "s3_key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "home_id", Value: 1}, {Key: "timestamp", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "timestamp", Value: 1}},
		},
	}

	_, err := r.events.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return errors.NewDatabaseError("failed to create event indexes", err)
	}
	return nil
}

// FindByStorageKey looks up the event tracking one uploaded clip.
func (r *EventRepo) FindByStorageKey(ctx context.Context, key string) (*models.Event, error) {
	var doc eventDoc
	err := r.events.FindOne(ctx, bson.M{"s3_key": key}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, errors.NewNotFoundError("event not found", err)
		}
		return nil, errors.NewDatabaseError("failed to find event", err)
	}
	return doc.toModel(), nil
}

// Insert creates a new event document. Status is derived from the known
// upload duration: pending until the client confirms completion.
func (r *EventRepo) Insert(ctx context.Context, event *models.Event) (string, error) {
	status := event.Status
	if status == "" {
		status = models.EventStatusPending
		if event.DurationMS != nil {
			status = models.EventStatusUploaded
		}
	}

	doc := bson.M{
		"timestamp":   event.Timestamp,
		"home_id":     event.HomeID,
		"device_id":   event.DeviceID,
		"s3_key":      event.StorageKey,
		"duration_ms": event.DurationMS,
		"scores":      event.Scores,
		"decision":    event.Decision,
		"status":      status,
	}

	result, err := r.events.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", errors.NewValidationError("event already exists for storage key", err)
		}
		return "", errors.NewDatabaseError("failed to insert event", err)
	}

	oid, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", errors.NewInternalError("unexpected inserted id type", nil)
	}
	return oid.Hex(), nil
}

// Update merges only the provided fields into the document. Applying the
// same update twice leaves the stored state unchanged.
func (r *EventRepo) Update(ctx context.Context, id string, update models.EventUpdate) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return errors.NewValidationError("invalid event id", err)
	}

	set := bson.M{}
	if update.DurationMS != nil {
		set["duration_ms"] = *update.DurationMS
		set["status"] = models.EventStatusUploaded
	}
	if update.Scores != nil {
		set["scores"] = update.Scores
	}
	if update.Decision != nil {
		set["decision"] = *update.Decision
	}
	if update.Status != nil {
		set["status"] = *update.Status
	}
	if len(set) == 0 {
		return nil
	}

	result, err := r.events.UpdateByID(ctx, oid, bson.M{"$set": set})
	if err != nil {
		return errors.NewDatabaseError("failed to update event", err)
	}
	if result.MatchedCount == 0 {
		return errors.NewNotFoundError("event not found", nil)
	}
	return nil
}

// CountRecent counts a home's events within the trailing window.
func (r *EventRepo) CountRecent(ctx context.Context, homeID string, window time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-window)
	count, err := r.events.CountDocuments(ctx, bson.M{
		"home_id":   homeID,
		"timestamp": bson.M{"$gte": cutoff},
	})
	if err != nil {
		return 0, errors.NewDatabaseError("failed to count events", err)
	}
	return count, nil
}

// CountByHomeRecent returns per-home event counts within the window.
func (r *EventRepo) CountByHomeRecent(ctx context.Context, window time.Duration) ([]models.HomeEventCount, error) {
	cutoff := time.Now().UTC().Add(-window)
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"timestamp": bson.M{"$gte": cutoff}}}},
		{{Key: "$group", Value: bson.M{"_id": "$home_id", "count": bson.M{"$sum": 1}}}},
		{{Key: "$project", Value: bson.M{"home_id": "$_id", "count": 1, "_id": 0}}},
	}

	cursor, err := r.events.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to aggregate events by home", err)
	}
	defer cursor.Close(ctx)

	counts := []models.HomeEventCount{}
	if err := cursor.All(ctx, &counts); err != nil {
		return nil, errors.NewDatabaseError("failed to decode home event counts", err)
	}
	return counts, nil
}

// AggregateByHour buckets event counts by hour within the window. An empty
// homeID aggregates across all homes.
func (r *EventRepo) AggregateByHour(ctx context.Context, homeID string, window time.Duration) ([]models.HourlyEventCount, error) {
	cutoff := time.Now().UTC().Add(-window)
	match := bson.M{"timestamp": bson.M{"$gte": cutoff}}
	if homeID != "" {
		match["home_id"] = homeID
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{
				"year":  bson.M{"$year": "$timestamp"},
				"month": bson.M{"$month": "$timestamp"},
				"day":   bson.M{"$dayOfMonth": "$timestamp"},
				"hour":  bson.M{"$hour": "$timestamp"},
			},
			"count": bson.M{"$sum": 1},
		}}},
		{{Key: "$project", Value: bson.M{
			"year":  "$_id.year",
			"month": "$_id.month",
			"day":   "$_id.day",
			"hour":  "$_id.hour",
			"count": 1,
			"_id":   0,
		}}},
		{{Key: "$sort", Value: bson.D{
			{Key: "year", Value: 1},
			{Key: "month", Value: 1},
			{Key: "day", Value: 1},
			{Key: "hour", Value: 1},
		}}},
	}

	cursor, err := r.events.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to aggregate events by hour", err)
	}
	defer cursor.Close(ctx)

	buckets := []models.HourlyEventCount{}
	if err := cursor.All(ctx, &buckets); err != nil {
		return nil, errors.NewDatabaseError("failed to decode hourly event counts", err)
	}
	return buckets, nil
}

// DeviceUptimeSummary approximates per-device uptime from event frequency
// over the trailing week.
func (r *EventRepo) DeviceUptimeSummary(ctx context.Context, homeID string) ([]models.DeviceUptime, error) {
	cutoff := time.Now().UTC().Add(-7 * 24 * time.Hour)
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"home_id":   homeID,
			"timestamp": bson.M{"$gte": cutoff},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":         "$device_id",
			"event_count": bson.M{"$sum": 1},
			"last_event":  bson.M{"$max": "$timestamp"},
		}}},
		{{Key: "$project", Value: bson.M{
			"device_id":   "$_id",
			"event_count": 1,
			"last_event":  1,
			"_id":         0,
		}}},
	}

	cursor, err := r.events.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to aggregate device uptime", err)
	}
	defer cursor.Close(ctx)

	summaries := []models.DeviceUptime{}
	if err := cursor.All(ctx, &summaries); err != nil {
		return nil, errors.NewDatabaseError("failed to decode device uptime", err)
	}

	for i := range summaries {
		summaries[i].UptimePercent = uptimeForCount(summaries[i].EventCount)
	}
	return summaries, nil
}

// uptimeForCount maps activity to an uptime estimate. High-traffic devices
// are assumed healthy; a quiet device may just be in a quiet room.
func uptimeForCount(count int64) float64 {
	switch {
	case count >= 100:
		return 95.0
	case count >= 50:
		return 85.0
	case count >= 10:
		return 70.0
	default:
		return 50.0
	}
}

// DeleteStalePending removes pending events whose upload never completed.
func (r *EventRepo) DeleteStalePending(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.events.DeleteMany(ctx, bson.M{
		"status":    models.EventStatusPending,
		"timestamp": bson.M{"$lt": before},
	})
	if err != nil {
		return 0, errors.NewDatabaseError("failed to delete stale pending events", err)
	}
	return result.DeletedCount, nil
}

// eventDoc is the stored shape; _id decodes as an ObjectID and is exposed
// to callers as its hex form.
type eventDoc struct {
	ID         primitive.ObjectID `bson:"_id"`
	Timestamp  time.Time          `bson:"timestamp"`
	HomeID     string             `bson:"home_id"`
	DeviceID   string             `bson:"device_id"`
	StorageKey string             `bson:"s3_key"`
	DurationMS *int64             `bson:"duration_ms"`
	Scores     map[string]float64 `bson:"scores"`
	Decision   *string            `bson:"decision"`
	Status     string             `bson:"status"`
}

func (d *eventDoc) toModel() *models.Event {
	return &models.Event{
		ID:         d.ID.Hex(),
		Timestamp:  d.Timestamp,
		HomeID:     d.HomeID,
		DeviceID:   d.DeviceID,
		StorageKey: d.StorageKey,
		DurationMS: d.DurationMS,
		Scores:     d.Scores,
		Decision:   d.Decision,
		Status:     d.Status,
	}
}
