package orch

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
)

// Join authorizes the session's user against the room's member list and
// registers the connection. The returned history holds every message
// published before registration; everything after arrives live.
func (o *Orchestrator) Join(
	ctx context.Context,
	sid core.SessionID,
	roomID domain.RoomID,
	sess core.MemberSession,
	cancel context.CancelFunc,
) ([]domain.Message, error) {
	unlock := o.lockRoom(roomID)
	defer unlock()

	room, err := o.Rooms.Get(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("load room %s: %w", roomID, err)
	}
	username := sess.Meta().User.Username
	if !room.HasMember(username) {
		return nil, fmt.Errorf("%w: %s is not a member of %s", domain.ErrForbidden, username, roomID)
	}
	o.Registry.Register(sid, roomID, sess, cancel)
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(roomID)).Str("user", username).Int("history", len(room.Messages)).Msg("joined")
	return room.Messages, nil
}

// Leave is idempotent.
func (o *Orchestrator) Leave(sid core.SessionID) {
	o.Registry.Unregister(sid)
}

// KickBySID drops the connection from the registry and cancels its session.
func (o *Orchestrator) KickBySID(sid core.SessionID) {
	o.Registry.Cancel(sid)
	if o.Registry.Unregister(sid) {
		log.Info().Str("module", "orch").Str("sid", string(sid)).Msg("kicked")
	}
}
