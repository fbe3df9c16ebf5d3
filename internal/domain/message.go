package domain

import (
	"errors"
	"time"
)

var ErrSenderEmpty = errors.New("sender empty")

// Message is immutable once built.
type Message struct {
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

func NewMessage(sender, content string, now time.Time) (Message, error) {
	if sender == "" {
		return Message{}, ErrSenderEmpty
	}
	return Message{Sender: sender, Content: content, Timestamp: now.UTC()}, nil
}

// Line is the wire form used for replay and live delivery.
func (m Message) Line() string {
	return m.Sender + ": " + m.Content
}
