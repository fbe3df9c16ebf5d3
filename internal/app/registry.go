package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
)

type sessionEntry struct {
	Room    domain.RoomID
	Session core.MemberSession
	Cancel  context.CancelFunc
}

// Registry tracks live connections. Entries are indexed by room so fan-out
// only walks the connections of the room being published to.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
	rooms    map[domain.RoomID]map[core.SessionID]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[core.SessionID]*sessionEntry),
		rooms:    make(map[domain.RoomID]map[core.SessionID]struct{}),
	}
}

// Register binds sid to a room. Registering a known sid moves it.
func (r *Registry) Register(
	sid core.SessionID,
	room domain.RoomID,
	sess core.MemberSession,
	cancel context.CancelFunc,
) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(sid)
	r.sessions[sid] = &sessionEntry{Room: room, Session: sess, Cancel: cancel}
	set, ok := r.rooms[room]
	if !ok {
		set = make(map[core.SessionID]struct{})
		r.rooms[room] = set
	}
	set[sid] = struct{}{}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(room)).Int("room_online", len(set)).Msg("registered")
}

// Unregister is safe for unknown or already removed sids and reports
// whether anything was removed.
func (r *Registry) Unregister(sid core.SessionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := r.removeLocked(sid)
	if removed {
		log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unregistered")
	}
	return removed
}

func (r *Registry) removeLocked(sid core.SessionID) bool {
	entry, ok := r.sessions[sid]
	if !ok {
		return false
	}
	delete(r.sessions, sid)
	if set, ok := r.rooms[entry.Room]; ok {
		delete(set, sid)
		if len(set) == 0 {
			delete(r.rooms, entry.Room)
		}
	}
	return true
}

func (r *Registry) GetSession(sid core.SessionID) (core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return e.Session, true
	}
	return nil, false
}

func (r *Registry) RoomOf(sid core.SessionID) (domain.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok {
		return "", false
	}
	return e.Room, true
}

type RegSnap struct {
	SID     core.SessionID
	Session core.MemberSession
}

// MembersOfRoom returns a snapshot; callers may send without holding the lock.
func (r *Registry) MembersOfRoom(room domain.RoomID) []RegSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.rooms[room]
	out := make([]RegSnap, 0, len(set))
	for sid := range set {
		out = append(out, RegSnap{SID: sid, Session: r.sessions[sid].Session})
	}
	return out
}

// Online lists the users connected to a room, one entry per connection.
func (r *Registry) Online(room domain.RoomID) []core.MemberDTO {
	snaps := r.MembersOfRoom(room)
	out := make([]core.MemberDTO, 0, len(snaps))
	for _, s := range snaps {
		u := s.Session.Meta().User
		out = append(out, core.MemberDTO{ID: u.ID, Username: u.Username})
	}
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}

// CancelAll is used on shutdown.
func (r *Registry) CancelAll() int {
	r.mu.RLock()
	cancels := make([]context.CancelFunc, 0, len(r.sessions))
	for _, e := range r.sessions {
		if e.Cancel != nil {
			cancels = append(cancels, e.Cancel)
		}
	}
	r.mu.RUnlock()
	for _, c := range cancels {
		c()
	}
	return len(cancels)
}
