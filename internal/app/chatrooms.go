package app

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
)

const ListLimit = 100

var (
	ErrInvalidStateCode  = errors.New("invalid state code format")
	ErrStateCodeConflict = errors.New("state code conflict: this user already has a different state code")
	ErrPlatoonRange      = errors.New("platoon number must be between 1 and 10")
	ErrAlreadyMember     = errors.New("you are already a member of this chat")
)

var stateCodePattern = regexp.MustCompile(`^[A-Z]{2}/\d{2}[A-Z]/\d{4}$`)

// Chatrooms implements the room management actions exposed over REST.
type Chatrooms struct {
	Rooms    core.RoomStore
	Users    core.UserDirectory
	Registry *Registry
}

func (s *Chatrooms) List(ctx context.Context) ([]core.RoomInfo, error) {
	rooms, err := s.Rooms.List(ctx, ListLimit)
	if err != nil {
		return nil, err
	}
	return toInfos(rooms), nil
}

func (s *Chatrooms) ListMine(ctx context.Context, user *domain.User) ([]core.RoomInfo, error) {
	rooms, err := s.Rooms.ListByMember(ctx, user.Username, ListLimit)
	if err != nil {
		return nil, err
	}
	if len(rooms) == 0 {
		return nil, domain.ErrNotFound
	}
	return toInfos(rooms), nil
}

func (s *Chatrooms) Create(ctx context.Context, user *domain.User, name string, members []string) (domain.RoomID, error) {
	id, err := s.Rooms.Create(ctx, domain.RoomName(name), members)
	if err != nil {
		return "", err
	}
	log.Info().Str("module", "app.chatrooms").Str("room", string(id)).Str("name", name).Str("by", user.Username).Msg("room created")
	return id, nil
}

// Join adds the caller to the room; joining twice is not an error.
func (s *Chatrooms) Join(ctx context.Context, user *domain.User, id domain.RoomID) ([]string, error) {
	if err := s.Rooms.AddMember(ctx, id, user.Username); err != nil {
		return nil, err
	}
	return s.Rooms.ListMembers(ctx, id)
}

// Online lists the live connections of a room the caller belongs to.
func (s *Chatrooms) Online(ctx context.Context, user *domain.User, id domain.RoomID) ([]core.MemberDTO, error) {
	members, err := s.Rooms.ListMembers(ctx, id)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(members, user.Username) {
		return nil, fmt.Errorf("%w: %s is not a member of %s", domain.ErrForbidden, user.Username, id)
	}
	if s.Registry == nil {
		return []core.MemberDTO{}, nil
	}
	return s.Registry.Online(id), nil
}

// JoinPlatoon adds the caller to the "platoon N" room selected by the last
// digit of their state code and stores the code on the user.
func (s *Chatrooms) JoinPlatoon(ctx context.Context, user *domain.User, stateCode string) (*domain.Room, error) {
	if !stateCodePattern.MatchString(stateCode) {
		return nil, ErrInvalidStateCode
	}
	current, err := s.Users.FindByID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if current.StateCode != "" && current.StateCode != stateCode {
		return nil, ErrStateCodeConflict
	}

	platoon, _ := strconv.Atoi(stateCode[len(stateCode)-1:])
	if platoon < 1 || platoon > 10 {
		return nil, ErrPlatoonRange
	}
	name := fmt.Sprintf("platoon %d", platoon)
	room, err := s.Rooms.FindByNameFold(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%s chat: %w", name, err)
	}
	if room.HasMember(current.Username) {
		return nil, ErrAlreadyMember
	}
	if err := s.Rooms.AddMember(ctx, room.ID, current.Username); err != nil {
		return nil, err
	}
	if err := s.Users.SetStateCode(ctx, current.ID, stateCode); err != nil {
		return nil, fmt.Errorf("store state code: %w", err)
	}
	return s.Rooms.Get(ctx, room.ID)
}

func toInfos(rooms []domain.Room) []core.RoomInfo {
	out := make([]core.RoomInfo, 0, len(rooms))
	for i := range rooms {
		out = append(out, core.NewRoomInfo(&rooms[i]))
	}
	return out
}
