package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Chat/internal/domain"
)

func TestRoomStoreCreateConflict(t *testing.T) {
	ctx := context.Background()
	s := NewRoomStore()

	id, err := s.Create(ctx, "general", []string{"alice", "alice"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = s.Create(ctx, "general", nil)
	assert.ErrorIs(t, err, domain.ErrConflict)

	// uniqueness on create is exact-match
	_, err = s.Create(ctx, "General", nil)
	assert.NoError(t, err)

	members, err := s.ListMembers(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, members)
}

func TestRoomStoreAddMemberIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewRoomStore()
	id, err := s.Create(ctx, "general", []string{"alice"})
	require.NoError(t, err)

	require.NoError(t, s.AddMember(ctx, id, "bob"))
	require.NoError(t, s.AddMember(ctx, id, "bob"))

	members, err := s.ListMembers(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, members)

	assert.ErrorIs(t, s.AddMember(ctx, "missing", "bob"), domain.ErrNotFound)
}

func TestRoomStoreAppendKeepsOrder(t *testing.T) {
	ctx := context.Background()
	s := NewRoomStore()
	id, err := s.Create(ctx, "general", []string{"alice"})
	require.NoError(t, err)

	now := time.Now()
	for _, text := range []string{"m1", "m2", "m3"} {
		msg, err := domain.NewMessage("alice", text, now)
		require.NoError(t, err)
		require.NoError(t, s.AppendMessage(ctx, id, msg))
	}

	room, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Len(t, room.Messages, 3)
	assert.Equal(t, "m1", room.Messages[0].Content)
	assert.Equal(t, "m3", room.Messages[2].Content)

	// returned rooms are copies
	room.Messages[0].Content = "changed"
	again, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "m1", again.Messages[0].Content)

	assert.ErrorIs(t, s.AppendMessage(ctx, "missing", room.Messages[0]), domain.ErrNotFound)
}

func TestRoomStoreLookups(t *testing.T) {
	ctx := context.Background()
	s := NewRoomStore()
	_, err := s.Create(ctx, "Platoon 3", []string{"alice"})
	require.NoError(t, err)
	_, err = s.Create(ctx, "general", []string{"bob"})
	require.NoError(t, err)

	r, err := s.FindByNameFold(ctx, "platoon 3")
	require.NoError(t, err)
	assert.Equal(t, domain.RoomName("Platoon 3"), r.Name)

	_, err = s.FindByNameFold(ctx, "platoon")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	all, err := s.List(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	limited, err := s.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	mine, err := s.ListByMember(ctx, "bob", 100)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, domain.RoomName("general"), mine[0].Name)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
