package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureOutcomeIndexes prepares the collection the MongoDB outcome sink writes to.
func EnsureOutcomeIndexes(ctx context.Context, db *mongo.Database, collectionName string) error {
	collection := db.Collection(collectionName)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "uuid", Value: 1}, {Key: "processed_at", Value: -1}},
			Options: options.Index().SetName("idx_outcomes_uuid_processed_at"),
		},
		{
			Keys:    bson.D{{Key: "provider_id", Value: 1}, {Key: "processed_at", Value: -1}},
			Options: options.Index().SetName("idx_outcomes_provider_processed_at"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}},
			Options: options.Index().SetName("idx_outcomes_status"),
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		if !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("failed to create indexes: %w", err)
		}
	}

	return nil
}
