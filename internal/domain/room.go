package domain

import (
	"errors"
	"slices"
	"strings"
	"time"
)

const MaxRoomNameLen = 64

var (
	ErrRoomNameEmpty   = errors.New("room name empty")
	ErrRoomNameTooLong = errors.New("room name too long")
)

type (
	RoomName string
	RoomID   string
)

// Room is a persisted chat room. Members keeps insertion order and holds
// no duplicates; Messages is append-only.
type Room struct {
	ID        RoomID    `json:"id"`
	Name      RoomName  `json:"name"`
	Members   []string  `json:"members"`
	Messages  []Message `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

func (r *Room) HasMember(username string) bool {
	return slices.Contains(r.Members, username)
}

func ValidateRoomName(name string) error {
	if len(strings.TrimSpace(name)) == 0 {
		return ErrRoomNameEmpty
	}
	if len(name) > MaxRoomNameLen {
		return ErrRoomNameTooLong
	}
	return nil
}

// UniqueMembers drops empty and repeated usernames, keeping first occurrence order.
func UniqueMembers(members []string) []string {
	out := make([]string, 0, len(members))
	for _, m := range members {
		if m == "" || slices.Contains(out, m) {
			continue
		}
		out = append(out, m)
	}
	return out
}
