package outcome

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"postapi/internal/constants"
	"postapi/internal/processor"
)

// MongoSink appends outcomes to the post_api_outcomes collection so providers'
// submission history can be looked up after the queue row is gone.
type MongoSink struct {
	collection *mongo.Collection
}

func NewMongoSink(db *mongo.Database) *MongoSink {
	return &MongoSink{
		collection: db.Collection(constants.OutcomesCollection),
	}
}

func (s *MongoSink) Name() string {
	return "mongodb"
}

func (s *MongoSink) Record(ctx context.Context, o processor.Outcome) error {
	if _, err := s.collection.InsertOne(ctx, o); err != nil {
		return fmt.Errorf("failed to insert outcome %s: %w", o.UUID, err)
	}
	return nil
}

// Filter narrows History; empty fields match everything.
type Filter struct {
	UUID       string
	ProviderID string
	Status     processor.Status
	Limit      int64
}

// History returns the most recent outcomes first.
func (s *MongoSink) History(ctx context.Context, f Filter) ([]processor.Outcome, error) {
	filter := bson.M{}
	if f.UUID != "" {
		filter["uuid"] = f.UUID
	}
	if f.ProviderID != "" {
		filter["provider_id"] = f.ProviderID
	}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = constants.DefaultListLimit
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "processed_at", Value: -1}}).
		SetLimit(limit)

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find outcomes: %w", err)
	}
	defer cursor.Close(ctx)

	var outcomes []processor.Outcome
	if err := cursor.All(ctx, &outcomes); err != nil {
		return nil, fmt.Errorf("failed to decode outcomes: %w", err)
	}

	return outcomes, nil
}
