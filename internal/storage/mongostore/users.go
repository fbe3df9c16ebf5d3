package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
)

type UserDirectory struct {
	coll *mongo.Collection
}

var _ core.UserDirectory = (*UserDirectory)(nil)

func NewUserDirectory(db *mongo.Database) *UserDirectory {
	return &UserDirectory{coll: db.Collection(UsersCollection)}
}

func (d *UserDirectory) FindByID(ctx context.Context, id domain.UserID) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(string(id))
	if err != nil {
		return nil, fmt.Errorf("%w: user id %q", domain.ErrNotFound, id)
	}
	return d.findOne(ctx, bson.M{"_id": oid})
}

func (d *UserDirectory) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return d.findOne(ctx, bson.M{"email": email})
}

func (d *UserDirectory) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var doc userDoc
	err := d.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return doc.toDomain()
}

func (d *UserDirectory) SetStateCode(ctx context.Context, id domain.UserID, code string) error {
	oid, err := primitive.ObjectIDFromHex(string(id))
	if err != nil {
		return fmt.Errorf("%w: user id %q", domain.ErrNotFound, id)
	}
	res, err := d.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"state_code": code}})
	if err != nil {
		return fmt.Errorf("set state code: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}
