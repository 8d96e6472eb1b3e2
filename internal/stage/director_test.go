package stage

import (
	"strings"
	"testing"

	"github.com/stagelab/chatroom/internal/domain"
)

func validDecisionJSON() string {
	return `{
		"reasoning": "keep it moving",
		"next_agent": "Alice",
		"action_type": "message",
		"performer_instruction": {
			"objective": "share an opinion",
			"motivation": "the thread stalled",
			"action": "post a short take"
		}
	}`
}

func TestParseDirectorResponse(t *testing.T) {
	d, err := ParseDirectorResponse(validDecisionJSON())
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if d.NextAgent != "Alice" || d.ActionType != domain.ActionMessage {
		t.Fatalf("unexpected decision: %+v", d)
	}
	if d.Instruction.Objective != "share an opinion" {
		t.Fatalf("unexpected instruction: %+v", d.Instruction)
	}
}

func TestParseDirectorResponseFenced(t *testing.T) {
	raw := "Here is my decision:\n```json\n" + validDecisionJSON() + "\n```\nDone."
	d, err := ParseDirectorResponse(raw)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if d.NextAgent != "Alice" {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestParseDirectorResponseErrors(t *testing.T) {
	instruction := `"performer_instruction": {"objective": "o", "motivation": "m", "action": "a"}`

	cases := []struct {
		name string
		raw  string
	}{
		{"not json", "I think Alice should speak next."},
		{"missing next_agent", `{"action_type": "message", ` + instruction + `}`},
		{"missing action_type", `{"next_agent": "Alice", ` + instruction + `}`},
		{"invalid action_type", `{"next_agent": "Alice", "action_type": "@mention", "target_user": "Bob", ` + instruction + `}`},
		{"reply without target", `{"next_agent": "Alice", "action_type": "reply", ` + instruction + `}`},
		{"like without target", `{"next_agent": "Alice", "action_type": "like"}`},
		{"mention without target_user", `{"next_agent": "Alice", "action_type": "mention", ` + instruction + `}`},
		{"like with instruction", `{"next_agent": "Alice", "action_type": "like", "target_message_id": "msg_1", ` + instruction + `}`},
		{"message without instruction", `{"next_agent": "Alice", "action_type": "message"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseDirectorResponse(tc.raw); err == nil {
				t.Fatalf("expected error for %s", tc.name)
			}
		})
	}
}

func TestParseDirectorResponseLike(t *testing.T) {
	d, err := ParseDirectorResponse(`{"next_agent": "Bob", "action_type": "like", "target_message_id": "msg_42"}`)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if d.ActionType != domain.ActionLike || d.TargetMessageID != "msg_42" {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestFormatChatLog(t *testing.T) {
	if got := FormatChatLog(nil); got != "(No messages yet)" {
		t.Fatalf("unexpected empty log: %q", got)
	}

	m1 := domain.NewMessage("Alice", "hello there")
	m1.MessageID = "msg_1"
	m2 := domain.NewMessage("Bob", "hi Alice")
	m2.MessageID = "msg_2"
	m2.ReplyTo = "msg_1"
	m2.LikedBy = []string{"user", "Alice"}

	log := FormatChatLog([]*domain.Message{m1, m2})
	if !strings.Contains(log, "[msg_1] Alice: hello there") {
		t.Fatalf("missing plain line: %q", log)
	}
	if !strings.Contains(log, "replying to msg_1") {
		t.Fatalf("missing reply annotation: %q", log)
	}
	// Likers render sorted so prompts are stable.
	if !strings.Contains(log, "liked by Alice, user") {
		t.Fatalf("missing sorted likers: %q", log)
	}
}

func TestBuildDirectorPrompts(t *testing.T) {
	system := BuildDirectorSystemPrompt("be argumentative", "user", "a city chatroom")
	for _, want := range []string{"be argumentative", "user", "a city chatroom"} {
		if !strings.Contains(system, want) {
			t.Fatalf("system prompt missing %q", want)
		}
	}

	user := BuildDirectorUserPrompt(nil, []domain.Agent{{Name: "Alice"}, {Name: "Bob"}})
	if !strings.Contains(user, "Alice, Bob") {
		t.Fatalf("user prompt missing roster: %q", user)
	}
	if !strings.Contains(user, "(No messages yet)") {
		t.Fatalf("user prompt missing empty chat log: %q", user)
	}
}
