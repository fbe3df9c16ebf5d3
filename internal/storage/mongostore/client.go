// Package mongostore stores chat rooms and reads users from MongoDB.
package mongostore

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	RoomsCollection = "chatrooms"
	UsersCollection = "users"
)

// Connect dials the deployment and verifies it with a ping.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	opts := options.Client().ApplyURI(uri).SetServerSelectionTimeout(5 * time.Second)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	log.Info().Str("module", "storage.mongo").Msg("connected")
	return client, nil
}

// EnsureIndexes creates the unique room name index and the members
// multikey index used by the membership listing.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(RoomsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "members", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create room indexes: %w", err)
	}
	return nil
}
