package orch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Chat/internal/app"
	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
)

// Orchestrator fans messages out to a room's live connections and appends
// them to the room history. Publishes and joins of one room are serialized
// so live delivery order matches stored order.
type Orchestrator struct {
	Registry *app.Registry
	Rooms    core.RoomStore
	Policy   app.Policy
	Now      func() time.Time

	locksMu sync.Mutex
	locks   map[domain.RoomID]*roomMutex
}

// roomMutex is shared by every caller working on one room. refs counts
// holders and waiters; the entry is dropped when the last one leaves.
type roomMutex struct {
	sync.Mutex
	refs int
}

// lockRoom blocks until the room's dispatch lock is held and returns the
// matching unlock.
func (o *Orchestrator) lockRoom(id domain.RoomID) (unlock func()) {
	o.locksMu.Lock()
	if o.locks == nil {
		o.locks = make(map[domain.RoomID]*roomMutex)
	}
	m, ok := o.locks[id]
	if !ok {
		m = &roomMutex{}
		o.locks[id] = m
	}
	m.refs++
	o.locksMu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		o.locksMu.Lock()
		defer o.locksMu.Unlock()
		if m.refs--; m.refs == 0 {
			delete(o.locks, id)
		}
	}
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Publish builds a message from sender, delivers it to everyone in the room
// and persists it. Delivery is best effort; the returned error only reports
// persistence failures.
func (o *Orchestrator) Publish(ctx context.Context, room domain.RoomID, sender, content string) (core.PublishResult, error) {
	msg, err := domain.NewMessage(sender, content, o.now())
	if err != nil {
		return core.PublishResult{}, err
	}

	unlock := o.lockRoom(room)
	defer unlock()

	res := o.Broadcast(room, core.Frame(msg.Line()))
	if err := o.Rooms.AppendMessage(ctx, room, msg); err != nil {
		return res, fmt.Errorf("append message to %s: %w", room, err)
	}
	return res, nil
}

// Broadcast sends one frame to every connection registered for room.
// A failed send never stops the loop.
func (o *Orchestrator) Broadcast(room domain.RoomID, data core.Frame) core.PublishResult {
	res := core.PublishResult{}
	dropped := make([]app.RegSnap, 0)
	for _, snap := range o.Registry.MembersOfRoom(room) {
		if err := o.trySend(snap.Session, data); err != nil {
			log.Warn().Err(err).Str("module", "orch").Str("sid", string(snap.SID)).Str("room", string(room)).Msg("send failed")
			res.Dropped = append(res.Dropped, snap.Session)
			dropped = append(dropped, snap)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "orch").Str("room", string(room)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")

	if o.Policy == nil {
		return res
	}
	for _, slow := range dropped {
		switch o.Policy.OnBackPressure(room, slow.Session) {
		case app.KickMember:
			o.KickBySID(slow.SID)
		case app.DropFrame, app.NoAction:
		}
	}
	return res
}

var errSendPanic = errors.New("send panicked")

func (o *Orchestrator) trySend(sess core.MemberSession, data core.Frame) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errSendPanic, r)
		}
	}()
	return sess.Signal().TrySend(data)
}
