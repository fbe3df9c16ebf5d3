package core

import (
	"context"

	"github.com/dkeye/Chat/internal/domain"
)

// RoomStore persists rooms, their membership and message history.
// Implementations return domain.ErrNotFound and domain.ErrConflict.
type RoomStore interface {
	Create(ctx context.Context, name domain.RoomName, members []string) (domain.RoomID, error)
	Get(ctx context.Context, id domain.RoomID) (*domain.Room, error)
	// FindByNameFold matches the whole name ignoring case.
	FindByNameFold(ctx context.Context, name string) (*domain.Room, error)
	AddMember(ctx context.Context, id domain.RoomID, username string) error
	AppendMessage(ctx context.Context, id domain.RoomID, msg domain.Message) error
	ListMembers(ctx context.Context, id domain.RoomID) ([]string, error)
	List(ctx context.Context, limit int) ([]domain.Room, error)
	ListByMember(ctx context.Context, username string, limit int) ([]domain.Room, error)
}

// UserDirectory is the read side of the user collection.
type UserDirectory interface {
	FindByID(ctx context.Context, id domain.UserID) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	SetStateCode(ctx context.Context, id domain.UserID, code string) error
}

// TokenVerifier resolves a bearer credential to the current user record.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*domain.User, error)
}
