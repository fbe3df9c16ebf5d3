package core

import "github.com/dkeye/Chat/internal/domain"

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []MemberSession
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	ID       domain.UserID `json:"id"`
	Username string        `json:"username"`
}

// RoomInfo summarizes a room for listings.
type RoomInfo struct {
	ID      domain.RoomID   `json:"id"`
	Name    domain.RoomName `json:"name"`
	Members []string        `json:"members"`
}

func NewRoomInfo(r *domain.Room) RoomInfo {
	members := r.Members
	if members == nil {
		members = []string{}
	}
	return RoomInfo{ID: r.ID, Name: r.Name, Members: members}
}
