package domain

import (
	"strings"
	"testing"
)

func TestNewMessage(t *testing.T) {
	m := NewMessage("Alice", "hello")
	if !strings.HasPrefix(m.MessageID, "msg_") {
		t.Fatalf("unexpected message id: %s", m.MessageID)
	}
	if m.Sender != "Alice" || m.Content != "hello" {
		t.Fatalf("unexpected message: %+v", m)
	}
	if m.CreatedAt.IsZero() {
		t.Fatalf("expected CreatedAt to be set")
	}
}

func TestToggleLikeIdempotent(t *testing.T) {
	m := NewMessage("Alice", "hello")

	m.ToggleLike("user")
	if m.LikesCount() != 1 || !m.LikedByUser("user") {
		t.Fatalf("expected one like from user, got %+v", m.LikedBy)
	}

	m.ToggleLike("Bob")
	if m.LikesCount() != 2 {
		t.Fatalf("expected two likes, got %d", m.LikesCount())
	}

	// Second toggle from the same user undoes the first.
	m.ToggleLike("user")
	if m.LikesCount() != 1 || m.LikedByUser("user") {
		t.Fatalf("expected user's like removed, got %+v", m.LikedBy)
	}
	if !m.LikedByUser("Bob") {
		t.Fatalf("expected Bob's like to survive")
	}
}

func TestCloneIsolation(t *testing.T) {
	m := NewMessage("Alice", "hello")
	m.ToggleLike("Bob")
	m.Mentions = []string{"Carol"}

	cp := m.Clone()
	m.ToggleLike("Dave")
	m.Mentions[0] = "Erin"

	if cp.LikesCount() != 1 {
		t.Fatalf("clone observed later like: %+v", cp.LikedBy)
	}
	if cp.Mentions[0] != "Carol" {
		t.Fatalf("clone shares mentions slice: %+v", cp.Mentions)
	}
}

func TestActionTypeValid(t *testing.T) {
	for _, valid := range []ActionType{ActionMessage, ActionReply, ActionMention, ActionLike} {
		if !valid.Valid() {
			t.Fatalf("expected %q to be valid", valid)
		}
	}
	if ActionType("@mention").Valid() {
		t.Fatalf("expected @mention to be invalid")
	}
	if ActionType("").Valid() {
		t.Fatalf("expected empty action type to be invalid")
	}
}
