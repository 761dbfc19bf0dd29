package chat

import (
	"time"

	"github.com/google/uuid"
)

// Origin says who wrote a message.
type Origin string

const (
	OriginUser Origin = "user"
	OriginBot  Origin = "bot"
)

// Message is one line of the chat transcript.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Origin    Origin    `json:"origin"`
	Timestamp time.Time `json:"timestamp"`
	IsLink    bool      `json:"is_link,omitempty"`
	LinkURL   string    `json:"link_url,omitempty"`
}

// Transcript is the append-only message log of a session.
type Transcript struct {
	Messages []Message `json:"messages"`
}

// Append adds msg, assigning an ID and timestamp when missing, and returns the
// stored copy.
func (t *Transcript) Append(msg Message, now time.Time) Message {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now
	}
	t.Messages = append(t.Messages, msg)
	return msg
}

// Len returns the number of messages.
func (t *Transcript) Len() int { return len(t.Messages) }

// Since returns a copy of the messages from index i on.
func (t *Transcript) Since(i int) []Message {
	if i < 0 {
		i = 0
	}
	if i >= len(t.Messages) {
		return []Message{}
	}
	return append([]Message(nil), t.Messages[i:]...)
}

// All returns a copy of every message.
func (t *Transcript) All() []Message {
	return t.Since(0)
}
