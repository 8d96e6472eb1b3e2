// Package domain defines the core domain models for the chatroom simulation.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Agent represents one autonomous chatroom participant. Agents are fixed for
// the lifetime of a session.
type Agent struct {
	Name string `json:"name"`
}

// Message represents a single message posted to the chatroom. Content is
// immutable after creation; likes and the reported flag are the only fields
// mutated in place.
type Message struct {
	MessageID  string    `json:"message_id"`
	Sender     string    `json:"sender"` // agent name, the human participant, or a scripted scenario sender
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	Seq        uint64    `json:"seq"` // creation order within the session, strictly increasing
	ReplyTo    string    `json:"reply_to,omitempty"`
	QuotedText string    `json:"quoted_text,omitempty"` // snapshot of the reply target's content at commit time
	Mentions   []string  `json:"mentions,omitempty"`
	LikedBy    []string  `json:"liked_by,omitempty"`
	Reported   bool      `json:"reported,omitempty"`
}

// NewMessage creates a message with a fresh id and timestamp. The sequence
// number is stamped by the session state on append.
func NewMessage(sender, content string) *Message {
	return &Message{
		MessageID: "msg_" + uuid.New().String()[:8],
		Sender:    sender,
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// LikesCount returns the number of distinct users who like this message.
func (m *Message) LikesCount() int {
	return len(m.LikedBy)
}

// LikedByUser reports whether the given user currently likes this message.
func (m *Message) LikedByUser(user string) bool {
	for _, u := range m.LikedBy {
		if u == user {
			return true
		}
	}
	return false
}

// ToggleLike adds or removes the user from the liked-by set. The toggle is
// idempotent per user: liking twice returns the message to its prior state.
func (m *Message) ToggleLike(user string) {
	for i, u := range m.LikedBy {
		if u == user {
			m.LikedBy = append(m.LikedBy[:i], m.LikedBy[i+1:]...)
			return
		}
	}
	m.LikedBy = append(m.LikedBy, user)
}

// Clone returns a deep copy so callers can hold a message outside the session
// lock without observing later like/report mutations.
func (m *Message) Clone() *Message {
	cp := *m
	if m.Mentions != nil {
		cp.Mentions = append([]string(nil), m.Mentions...)
	}
	if m.LikedBy != nil {
		cp.LikedBy = append([]string(nil), m.LikedBy...)
	}
	return &cp
}
