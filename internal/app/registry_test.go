package app

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
)

type nopConn struct{}

func (nopConn) TrySend(core.Frame) error { return nil }
func (nopConn) Close()                   {}

func session(username string, room domain.RoomID) core.MemberSession {
	user := &domain.User{ID: domain.UserID(username), Username: username}
	return core.NewMemberSession(domain.NewMember(user, room), nopConn{})
}

func TestRegistryRoomScoped(t *testing.T) {
	r := NewRegistry()
	r.Register("s1", "general", session("alice", "general"), nil)
	r.Register("s2", "general", session("bob", "general"), nil)
	r.Register("s3", "random", session("carol", "random"), nil)

	assert.Len(t, r.MembersOfRoom("general"), 2)
	assert.Len(t, r.MembersOfRoom("random"), 1)
	assert.Empty(t, r.MembersOfRoom("nowhere"))
	assert.Equal(t, 3, r.Count())

	room, ok := r.RoomOf("s3")
	require.True(t, ok)
	assert.Equal(t, domain.RoomID("random"), room)

	online := r.Online("random")
	require.Len(t, online, 1)
	assert.Equal(t, "carol", online[0].Username)
}

func TestRegistryUnregisterIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Register("s1", "general", session("alice", "general"), nil)
	r.Register("s2", "general", session("bob", "general"), nil)

	assert.False(t, r.Unregister("never-registered"))
	assert.True(t, r.Unregister("s1"))
	assert.False(t, r.Unregister("s1"))

	snaps := r.MembersOfRoom("general")
	require.Len(t, snaps, 1)
	assert.Equal(t, core.SessionID("s2"), snaps[0].SID)
	_, ok := r.GetSession("s1")
	assert.False(t, ok)
}

func TestRegistryReRegisterMovesRoom(t *testing.T) {
	r := NewRegistry()
	r.Register("s1", "general", session("alice", "general"), nil)
	r.Register("s1", "random", session("alice", "random"), nil)

	assert.Empty(t, r.MembersOfRoom("general"))
	assert.Len(t, r.MembersOfRoom("random"), 1)
	assert.Equal(t, 1, r.Count())
}

func TestRegistryCancel(t *testing.T) {
	r := NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	r.Register("s1", "general", session("alice", "general"), cancel)

	assert.False(t, r.Cancel("unknown"))
	assert.True(t, r.Cancel("s1"))
	assert.ErrorIs(t, ctx.Err(), context.Canceled)

	ctx2, cancel2 := context.WithCancel(context.Background())
	r.Register("s2", "random", session("bob", "random"), cancel2)
	assert.Equal(t, 2, r.CancelAll())
	assert.Error(t, ctx2.Err())
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sid := core.SessionID(fmt.Sprintf("s%d", i))
			room := domain.RoomID(fmt.Sprintf("room-%d", i%3))
			r.Register(sid, room, session("u", room), nil)
			_ = r.MembersOfRoom(room)
			r.Unregister(sid)
			r.Unregister(sid)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, r.Count())
}

func TestSimplePolicyKicks(t *testing.T) {
	assert.Equal(t, KickMember, SimplePolicy{}.OnBackPressure("general", session("alice", "general")))
}
