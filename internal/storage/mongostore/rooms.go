package mongostore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
)

type RoomStore struct {
	coll *mongo.Collection
}

var _ core.RoomStore = (*RoomStore)(nil)

func NewRoomStore(db *mongo.Database) *RoomStore {
	return &RoomStore{coll: db.Collection(RoomsCollection)}
}

func roomObjectID(id domain.RoomID) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(string(id))
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: room id %q", domain.ErrNotFound, id)
	}
	return oid, nil
}

func (s *RoomStore) Create(ctx context.Context, name domain.RoomName, members []string) (domain.RoomID, error) {
	if err := domain.ValidateRoomName(string(name)); err != nil {
		return "", err
	}
	err := s.coll.FindOne(ctx, bson.M{"name": string(name)}).Err()
	switch {
	case err == nil:
		return "", domain.ErrConflict
	case !errors.Is(err, mongo.ErrNoDocuments):
		return "", fmt.Errorf("find room by name: %w", err)
	}

	doc := roomDoc{
		Name:      string(name),
		Members:   domain.UniqueMembers(members),
		Messages:  []messageDoc{},
		CreatedAt: time.Now().UTC(),
	}
	res, err := s.coll.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return "", domain.ErrConflict
	}
	if err != nil {
		return "", fmt.Errorf("insert room: %w", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("insert room: unexpected id type %T", res.InsertedID)
	}
	return domain.RoomID(oid.Hex()), nil
}

func (s *RoomStore) Get(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	oid, err := roomObjectID(id)
	if err != nil {
		return nil, err
	}
	return s.findOne(ctx, bson.M{"_id": oid})
}

func (s *RoomStore) FindByNameFold(ctx context.Context, name string) (*domain.Room, error) {
	pattern := primitive.Regex{Pattern: "^" + regexp.QuoteMeta(name) + "$", Options: "i"}
	return s.findOne(ctx, bson.M{"name": pattern})
}

func (s *RoomStore) findOne(ctx context.Context, filter bson.M) (*domain.Room, error) {
	var doc roomDoc
	err := s.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find room: %w", err)
	}
	return doc.toDomain()
}

// AddMember relies on $addToSet so concurrent adds of the same user stay idempotent.
func (s *RoomStore) AddMember(ctx context.Context, id domain.RoomID, username string) error {
	if err := domain.ValidateUsername(username); err != nil {
		return err
	}
	oid, err := roomObjectID(id)
	if err != nil {
		return err
	}
	return s.update(ctx, oid, bson.M{"$addToSet": bson.M{"members": username}})
}

func (s *RoomStore) AppendMessage(ctx context.Context, id domain.RoomID, msg domain.Message) error {
	oid, err := roomObjectID(id)
	if err != nil {
		return err
	}
	return s.update(ctx, oid, bson.M{"$push": bson.M{"messages": newMessageDoc(msg)}})
}

func (s *RoomStore) update(ctx context.Context, oid primitive.ObjectID, change bson.M) error {
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": oid}, change)
	if err != nil {
		return fmt.Errorf("update room %s: %w", oid.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *RoomStore) ListMembers(ctx context.Context, id domain.RoomID) ([]string, error) {
	oid, err := roomObjectID(id)
	if err != nil {
		return nil, err
	}
	var doc roomDoc
	opts := options.FindOne().SetProjection(bson.M{"name": 1, "members": 1})
	err = s.coll.FindOne(ctx, bson.M{"_id": oid}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find room members: %w", err)
	}
	if doc.Members == nil {
		return []string{}, nil
	}
	return doc.Members, nil
}

func (s *RoomStore) List(ctx context.Context, limit int) ([]domain.Room, error) {
	return s.find(ctx, bson.M{}, limit)
}

func (s *RoomStore) ListByMember(ctx context.Context, username string, limit int) ([]domain.Room, error) {
	return s.find(ctx, bson.M{"members": username}, limit)
}

// find omits message history; listings never need it.
func (s *RoomStore) find(ctx context.Context, filter bson.M, limit int) ([]domain.Room, error) {
	opts := options.Find().
		SetProjection(bson.M{"messages": 0}).
		SetSort(bson.D{{Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find rooms: %w", err)
	}
	var docs []roomDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode rooms: %w", err)
	}
	out := make([]domain.Room, 0, len(docs))
	for i := range docs {
		r, err := docs[i].toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, nil
}
