// Package state holds the mutable record of one simulation session.
//
// A State is owned by exactly one session. Turn commits happen on the
// session's own goroutine while like/report mutations arrive from the
// transport layer, so every access goes through the state mutex. Read paths
// hand out clones, never live pointers into the log.
package state

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/stagelab/chatroom/internal/domain"
)

var (
	// ErrMessageNotFound is returned when a message id does not exist in the log.
	ErrMessageNotFound = errors.New("message not found")
)

// State is the complete in-memory state of a chatroom session.
type State struct {
	mu sync.Mutex

	sessionID string
	agents    []domain.Agent
	humanName string

	messages []*domain.Message
	nextSeq  uint64

	startTime time.Time
	duration  time.Duration
	ticks     uint64

	treatment string

	// blocked maps sender name to the time the block took effect. Messages
	// from that sender created at or after the timestamp are hidden from the
	// human participant's view; nothing is ever deleted.
	blocked map[string]time.Time
}

// New creates session state for the given roster. The human participant's
// name must not collide with an agent name.
func New(sessionID string, agents []domain.Agent, humanName string, duration time.Duration, treatment string) *State {
	return &State{
		sessionID: sessionID,
		agents:    append([]domain.Agent(nil), agents...),
		humanName: humanName,
		startTime: time.Now(),
		duration:  duration,
		treatment: treatment,
		blocked:   make(map[string]time.Time),
	}
}

// SessionID returns the owning session's id.
func (s *State) SessionID() string { return s.sessionID }

// HumanName returns the human participant's sender name.
func (s *State) HumanName() string { return s.humanName }

// Treatment returns the treatment string injected into Director prompts.
func (s *State) Treatment() string { return s.treatment }

// Agents returns a copy of the agent roster.
func (s *State) Agents() []domain.Agent {
	return append([]domain.Agent(nil), s.agents...)
}

// HasAgent reports whether name is a member of the agent roster.
func (s *State) HasAgent(name string) bool {
	for _, a := range s.agents {
		if a.Name == name {
			return true
		}
	}
	return false
}

// Append adds a message to the log, stamping its sequence number. Messages
// are append-only; ids are unique and sequence numbers strictly increase.
func (s *State) Append(m *domain.Message) *domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSeq++
	m.Seq = s.nextSeq
	s.messages = append(s.messages, m)
	return m.Clone()
}

// Recent returns clones of the last n messages in creation order.
func (s *State) Recent(n int) []*domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := len(s.messages) - n
	if start < 0 {
		start = 0
	}
	out := make([]*domain.Message, 0, len(s.messages)-start)
	for _, m := range s.messages[start:] {
		out = append(out, m.Clone())
	}
	return out
}

// MessageByID returns a clone of the message with the given id.
func (s *State) MessageByID(id string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.findLocked(id)
	if m == nil {
		return nil, fmt.Errorf("%w: %s", ErrMessageNotFound, id)
	}
	return m.Clone(), nil
}

// ToggleLike flips the user's like on a message and returns the updated copy.
func (s *State) ToggleLike(messageID, user string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.findLocked(messageID)
	if m == nil {
		return nil, fmt.Errorf("%w: %s", ErrMessageNotFound, messageID)
	}
	m.ToggleLike(user)
	return m.Clone(), nil
}

// Report marks a message reported. When blockSender is set the message's
// sender is also added to the block map, timestamped now; an existing block
// is left untouched so the original block time stands.
func (s *State) Report(messageID string, blockSender bool) (*domain.Message, map[string]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.findLocked(messageID)
	if m == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrMessageNotFound, messageID)
	}
	m.Reported = true
	if blockSender {
		if _, ok := s.blocked[m.Sender]; !ok {
			s.blocked[m.Sender] = time.Now()
		}
	}
	return m.Clone(), s.blockedCopyLocked(), nil
}

// BlockedSenders returns a copy of the block map.
func (s *State) BlockedSenders() map[string]time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blockedCopyLocked()
}

// VisibleToHuman reports whether the message should be delivered to the human
// participant: messages from a blocked sender created at or after the block
// time are hidden.
func (s *State) VisibleToHuman(m *domain.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	blockedAt, ok := s.blocked[m.Sender]
	if !ok {
		return true
	}
	return m.CreatedAt.Before(blockedAt)
}

// VisibleHistory returns clones of all messages visible to the human
// participant, in creation order. Used for replay on (re)connect.
func (s *State) VisibleHistory() []*domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Message, 0, len(s.messages))
	for _, m := range s.messages {
		if blockedAt, ok := s.blocked[m.Sender]; ok && !m.CreatedAt.Before(blockedAt) {
			continue
		}
		out = append(out, m.Clone())
	}
	return out
}

// AdvanceTick increments the logical clock and returns the new tick count.
func (s *State) AdvanceTick() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks++
	return s.ticks
}

// Ticks returns the number of elapsed ticks.
func (s *State) Ticks() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticks
}

// Expired reports whether the session has exceeded its configured duration.
func (s *State) Expired() bool {
	return time.Since(s.startTime) >= s.duration
}

// MessageCount returns the number of messages in the log.
func (s *State) MessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func (s *State) findLocked(id string) *domain.Message {
	for _, m := range s.messages {
		if m.MessageID == id {
			return m
		}
	}
	return nil
}

func (s *State) blockedCopyLocked() map[string]time.Time {
	out := make(map[string]time.Time, len(s.blocked))
	for k, v := range s.blocked {
		out[k] = v
	}
	return out
}
