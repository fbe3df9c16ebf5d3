package mongostore

import (
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dkeye/Chat/internal/domain"
)

var ErrMalformedDocument = errors.New("malformed document")

type messageDoc struct {
	Sender    string    `bson:"sender"`
	Content   string    `bson:"content"`
	Timestamp time.Time `bson:"timestamp"`
}

type roomDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Name      string             `bson:"name"`
	Members   []string           `bson:"members"`
	Messages  []messageDoc       `bson:"messages"`
	CreatedAt time.Time          `bson:"created_at,omitempty"`
}

type userDoc struct {
	ID        primitive.ObjectID `bson:"_id"`
	Username  string             `bson:"username"`
	Email     string             `bson:"email"`
	Password  string             `bson:"password"`
	StateCode string             `bson:"state_code,omitempty"`
}

func newMessageDoc(m domain.Message) messageDoc {
	return messageDoc{Sender: m.Sender, Content: m.Content, Timestamp: m.Timestamp}
}

func (d *roomDoc) toDomain() (*domain.Room, error) {
	if d.ID.IsZero() || d.Name == "" {
		return nil, fmt.Errorf("%w: room %s without id or name", ErrMalformedDocument, d.ID.Hex())
	}
	r := &domain.Room{
		ID:        domain.RoomID(d.ID.Hex()),
		Name:      domain.RoomName(d.Name),
		Members:   d.Members,
		Messages:  make([]domain.Message, 0, len(d.Messages)),
		CreatedAt: d.CreatedAt,
	}
	if r.Members == nil {
		r.Members = []string{}
	}
	for i, m := range d.Messages {
		if m.Sender == "" {
			return nil, fmt.Errorf("%w: room %s message %d without sender", ErrMalformedDocument, r.ID, i)
		}
		r.Messages = append(r.Messages, domain.Message{Sender: m.Sender, Content: m.Content, Timestamp: m.Timestamp})
	}
	return r, nil
}

func (d *userDoc) toDomain() (*domain.User, error) {
	if d.Username == "" {
		return nil, fmt.Errorf("%w: user %s without username", ErrMalformedDocument, d.ID.Hex())
	}
	return &domain.User{
		ID:           domain.UserID(d.ID.Hex()),
		Username:     d.Username,
		Email:        d.Email,
		PasswordHash: d.Password,
		StateCode:    d.StateCode,
	}, nil
}
