// Package memory is a process-local RoomStore and UserDirectory used in
// development mode and tests. Records are copied in and out so callers never
// share slices with the store.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
)

type RoomStore struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*domain.Room
	order []domain.RoomID
	now   func() time.Time
}

var _ core.RoomStore = (*RoomStore)(nil)

func NewRoomStore() *RoomStore {
	return &RoomStore{
		rooms: make(map[domain.RoomID]*domain.Room),
		now:   time.Now,
	}
}

func (s *RoomStore) Create(_ context.Context, name domain.RoomName, members []string) (domain.RoomID, error) {
	if err := domain.ValidateRoomName(string(name)); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rooms {
		if r.Name == name {
			return "", domain.ErrConflict
		}
	}
	id := domain.RoomID(uuid.NewString())
	s.rooms[id] = &domain.Room{
		ID:        id,
		Name:      name,
		Members:   domain.UniqueMembers(members),
		CreatedAt: s.now().UTC(),
	}
	s.order = append(s.order, id)
	return id, nil
}

func (s *RoomStore) Get(_ context.Context, id domain.RoomID) (*domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneRoom(r), nil
}

func (s *RoomStore) FindByNameFold(_ context.Context, name string) (*domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		if r := s.rooms[id]; strings.EqualFold(string(r.Name), name) {
			return cloneRoom(r), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *RoomStore) AddMember(_ context.Context, id domain.RoomID, username string) error {
	if err := domain.ValidateUsername(username); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	if !ok {
		return domain.ErrNotFound
	}
	if !r.HasMember(username) {
		r.Members = append(r.Members, username)
	}
	return nil
}

func (s *RoomStore) AppendMessage(_ context.Context, id domain.RoomID, msg domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.Messages = append(r.Messages, msg)
	return nil
}

func (s *RoomStore) ListMembers(_ context.Context, id domain.RoomID) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return slices.Clone(r.Members), nil
}

func (s *RoomStore) List(_ context.Context, limit int) ([]domain.Room, error) {
	return s.collect(limit, func(*domain.Room) bool { return true }), nil
}

func (s *RoomStore) ListByMember(_ context.Context, username string, limit int) ([]domain.Room, error) {
	return s.collect(limit, func(r *domain.Room) bool { return r.HasMember(username) }), nil
}

func (s *RoomStore) collect(limit int, keep func(*domain.Room) bool) []domain.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Room, 0)
	for _, id := range s.order {
		if limit > 0 && len(out) >= limit {
			break
		}
		if r := s.rooms[id]; keep(r) {
			out = append(out, *cloneRoom(r))
		}
	}
	return out
}

func cloneRoom(r *domain.Room) *domain.Room {
	c := *r
	c.Members = slices.Clone(r.Members)
	c.Messages = slices.Clone(r.Messages)
	return &c
}
