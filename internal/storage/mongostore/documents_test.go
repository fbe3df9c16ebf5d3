package mongostore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dkeye/Chat/internal/domain"
)

func TestRoomDocToDomain(t *testing.T) {
	oid := primitive.NewObjectID()
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	doc := roomDoc{
		ID:       oid,
		Name:     "general",
		Messages: []messageDoc{{Sender: "alice", Content: "hi", Timestamp: ts}},
	}
	r, err := doc.toDomain()
	require.NoError(t, err)
	assert.Equal(t, domain.RoomID(oid.Hex()), r.ID)
	assert.Equal(t, []string{}, r.Members)
	assert.Equal(t, []domain.Message{{Sender: "alice", Content: "hi", Timestamp: ts}}, r.Messages)
}

func TestRoomDocRejectsMalformed(t *testing.T) {
	_, err := (&roomDoc{ID: primitive.NewObjectID()}).toDomain()
	assert.ErrorIs(t, err, ErrMalformedDocument)

	_, err = (&roomDoc{
		ID:       primitive.NewObjectID(),
		Name:     "general",
		Messages: []messageDoc{{Content: "orphan"}},
	}).toDomain()
	assert.ErrorIs(t, err, ErrMalformedDocument)

	_, err = (&userDoc{ID: primitive.NewObjectID()}).toDomain()
	assert.ErrorIs(t, err, ErrMalformedDocument)
}
