package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureAudienceCollection creates the indexes the dispatch queries
// lean on. The collection itself appears on first insert.
func EnsureAudienceCollection(ctx context.Context, db *mongo.Database, collectionName string) error {
	collection := db.Collection(collectionName)

	if _, err := db.ListCollectionNames(ctx, map[string]interface{}{"name": collectionName}); err != nil {
		return fmt.Errorf("failed to list collections: %w", err)
	}

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "member_id", Value: 1}},
			Options: options.Index().SetName("idx_audience_member_id").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("idx_audience_email"),
		},
		{
			Keys:    bson.D{{Key: "last_login", Value: -1}},
			Options: options.Index().SetName("idx_audience_last_login"),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		if !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("failed to create indexes: %w", err)
		}
	}

	return nil
}
