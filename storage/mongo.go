package storage

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"vigil/core"
)

// MongoStore implements EventRepository and AlertRepository on MongoDB.
// Events live in the "events" collection, alerts in "alerts". The alert
// update uses a filtered UpdateOne keyed on (_id, version) so the dedup
// merge path is an atomic compare-and-swap at the database.
type MongoStore struct {
	events *mongo.Collection
	alerts *mongo.Collection
	logger *zap.SugaredLogger
}

// NewMongoStore creates a MongoStore over the given database
func NewMongoStore(db *mongo.Database, logger *zap.SugaredLogger) *MongoStore {
	return &MongoStore{
		events: db.Collection("events"),
		alerts: db.Collection("alerts"),
		logger: logger,
	}
}

// EnsureIndexes creates the indexes the query paths depend on. Called once
// at startup; index creation is idempotent.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	eventIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "processed", Value: 1}, {Key: "timestamp", Value: 1}}},
		{Keys: bson.D{{Key: "timestamp", Value: 1}}},
	}
	if _, err := s.events.Indexes().CreateMany(ctx, eventIndexes); err != nil {
		return fmt.Errorf("failed to create event indexes: %w", err)
	}

	alertIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "type", Value: 1}, {Key: "source_ip", Value: 1}}},
		{Keys: bson.D{{Key: "correlation_id", Value: 1}}},
	}
	if _, err := s.alerts.Indexes().CreateMany(ctx, alertIndexes); err != nil {
		return fmt.Errorf("failed to create alert indexes: %w", err)
	}
	return nil
}

// QueryUnprocessed returns unprocessed events at or after since
func (s *MongoStore) QueryUnprocessed(ctx context.Context, since time.Time) ([]*core.LogEvent, error) {
	filter := bson.M{
		"processed": false,
		"timestamp": bson.M{"$gte": since},
	}
	return s.findEvents(ctx, filter)
}

// QueryEvents returns all events at or after since
func (s *MongoStore) QueryEvents(ctx context.Context, since time.Time) ([]*core.LogEvent, error) {
	filter := bson.M{"timestamp": bson.M{"$gte": since}}
	return s.findEvents(ctx, filter)
}

func (s *MongoStore) findEvents(ctx context.Context, filter bson.M) ([]*core.LogEvent, error) {
	findOptions := options.Find().SetSort(bson.M{"timestamp": 1})

	cursor, err := s.events.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to find events: %w", err)
	}
	defer cursor.Close(ctx)

	events := make([]*core.LogEvent, 0)
	for cursor.Next(ctx) {
		var event core.LogEvent
		if err := cursor.Decode(&event); err != nil {
			return nil, fmt.Errorf("failed to decode event: %w", err)
		}
		events = append(events, &event)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("event cursor error: %w", err)
	}
	return events, nil
}

// MarkProcessed flips the processed flag on the given event IDs
func (s *MongoStore) MarkProcessed(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	filter := bson.M{"_id": bson.M{"$in": ids}}
	update := bson.M{"$set": bson.M{"processed": true}}

	result, err := s.events.UpdateMany(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to mark events processed: %w", err)
	}
	if result.MatchedCount < int64(len(ids)) {
		s.logger.Warnw("Some events were not found while marking processed",
			"requested", len(ids),
			"matched", result.MatchedCount)
	}
	return nil
}

// QueryAlerts returns alerts matching the filter, newest first
func (s *MongoStore) QueryAlerts(ctx context.Context, filter AlertFilter) ([]*core.Alert, error) {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Severity != "" {
		query["severity"] = filter.Severity
	}
	created := bson.M{}
	if !filter.CreatedBefore.IsZero() {
		created["$lt"] = filter.CreatedBefore
	}
	if !filter.CreatedAfter.IsZero() {
		created["$gte"] = filter.CreatedAfter
	}
	if len(created) > 0 {
		query["created_at"] = created
	}

	findOptions := options.Find().SetSort(bson.M{"created_at": -1})

	cursor, err := s.alerts.Find(ctx, query, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to find alerts: %w", err)
	}
	defer cursor.Close(ctx)

	alerts := make([]*core.Alert, 0)
	for cursor.Next(ctx) {
		var alert core.Alert
		if err := cursor.Decode(&alert); err != nil {
			return nil, fmt.Errorf("failed to decode alert: %w", err)
		}
		alerts = append(alerts, &alert)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("alert cursor error: %w", err)
	}
	return alerts, nil
}

// FindOpenByDedupKey returns the open alert with the given dedup key created
// at or after windowStart
func (s *MongoStore) FindOpenByDedupKey(ctx context.Context, key string, windowStart time.Time) (*core.Alert, error) {
	open := bson.M{"$in": []core.AlertStatus{core.StatusActive, core.StatusInvestigating}}

	// Correlation alerts key on correlation_id, detections on type|source_ip.
	// The key format is owned by core.Alert.DedupKey.
	var query bson.M
	if alertType, sourceIP, ok := core.SplitDedupKey(key); ok {
		query = bson.M{
			"type":       alertType,
			"source_ip":  sourceIP,
			"status":     open,
			"created_at": bson.M{"$gte": windowStart},
		}
	} else {
		query = bson.M{
			"correlation_id": key,
			"status":         open,
			"created_at":     bson.M{"$gte": windowStart},
		}
	}

	var alert core.Alert
	err := s.alerts.FindOne(ctx, query).Decode(&alert)
	if err == mongo.ErrNoDocuments {
		return nil, ErrAlertNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find alert by dedup key: %w", err)
	}
	return &alert, nil
}

// InsertAlert persists a new alert
func (s *MongoStore) InsertAlert(ctx context.Context, alert *core.Alert) error {
	if _, err := s.alerts.InsertOne(ctx, alert); err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// UpdateAlert persists a mutated alert. The filter includes the version the
// caller read, so a concurrent writer makes this a no-match and the caller
// sees ErrConflict.
func (s *MongoStore) UpdateAlert(ctx context.Context, alert *core.Alert) error {
	filter := bson.M{"_id": alert.ID, "version": alert.Version}

	next := *alert
	next.Version = alert.Version + 1

	result, err := s.alerts.ReplaceOne(ctx, filter, &next)
	if err != nil {
		return fmt.Errorf("failed to update alert: %w", err)
	}
	if result.MatchedCount == 0 {
		// Distinguish a lost race from a missing document
		count, countErr := s.alerts.CountDocuments(ctx, bson.M{"_id": alert.ID})
		if countErr == nil && count == 0 {
			return ErrAlertNotFound
		}
		return ErrConflict
	}

	alert.Version = next.Version
	return nil
}
