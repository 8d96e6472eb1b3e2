// Package scenario lets an experiment seed a session with scripted content
// before agents become active.
package scenario

import (
	"github.com/stagelab/chatroom/internal/domain"
	"github.com/stagelab/chatroom/internal/state"
)

// Scenario hooks into session startup and tick gating. Seed runs once when
// the session starts, before the first tick; AgentsActive is checked each
// tick and may hold agents back (e.g. until the participant had time to read
// seeded content).
type Scenario interface {
	Seed(st *state.State) []*domain.Message
	AgentsActive(st *state.State) bool
}

// Base is the default no-op scenario: nothing seeded, agents active from the
// first tick.
type Base struct{}

var _ Scenario = Base{}

func (Base) Seed(*state.State) []*domain.Message { return nil }

func (Base) AgentsActive(*state.State) bool { return true }

// NewsArticle seeds a single scripted post (a shared news article) and holds
// agents back for a configurable number of ticks so the participant can read
// it first.
type NewsArticle struct {
	Sender    string
	Content   string
	HoldTicks uint64
}

var _ Scenario = (*NewsArticle)(nil)

// Seed appends the article post and returns it for broadcast.
func (n *NewsArticle) Seed(st *state.State) []*domain.Message {
	sender := n.Sender
	if sender == "" {
		sender = "Newsroom"
	}
	m := st.Append(domain.NewMessage(sender, n.Content))
	return []*domain.Message{m}
}

// AgentsActive gates agent turns until HoldTicks have elapsed.
func (n *NewsArticle) AgentsActive(st *state.State) bool {
	return st.Ticks() >= n.HoldTicks
}
