package stage

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/stagelab/chatroom/internal/domain"
)

var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?\\s*```")

// FormatChatLog renders messages into the annotated log the Director reasons
// over. Each line carries the message id so the Director can reference it as
// a reply or like target.
func FormatChatLog(messages []*domain.Message) string {
	if len(messages) == 0 {
		return "(No messages yet)"
	}
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		var meta []string
		if m.ReplyTo != "" {
			meta = append(meta, "replying to "+m.ReplyTo)
		}
		if len(m.Mentions) > 0 {
			meta = append(meta, "@mentions "+strings.Join(m.Mentions, ", "))
		}
		if len(m.LikedBy) > 0 {
			liked := append([]string(nil), m.LikedBy...)
			sort.Strings(liked)
			meta = append(meta, "liked by "+strings.Join(liked, ", "))
		}
		line := fmt.Sprintf("[%s] %s", m.MessageID, m.Sender)
		if len(meta) > 0 {
			line += " (" + strings.Join(meta, "; ") + ")"
		}
		line += ": " + m.Content
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// BuildDirectorSystemPrompt fills the session-static parts of the Director
// prompt: chatroom context, treatment, and the human participant's name.
func BuildDirectorSystemPrompt(treatment, humanUser, chatroomContext string) string {
	p := directorSystemTemplate
	p = strings.ReplaceAll(p, "{CHATROOM_CONTEXT}", chatroomContext)
	p = strings.ReplaceAll(p, "{TREATMENT}", treatment)
	p = strings.ReplaceAll(p, "{HUMAN_USER}", humanUser)
	return p
}

// BuildDirectorUserPrompt fills the per-turn parts: the recent chat log and
// the agent roster.
func BuildDirectorUserPrompt(messages []*domain.Message, agents []domain.Agent) string {
	names := make([]string, 0, len(agents))
	for _, a := range agents {
		names = append(names, a.Name)
	}
	p := directorUserTemplate
	p = strings.ReplaceAll(p, "{CHAT_LOG}", FormatChatLog(messages))
	p = strings.ReplaceAll(p, "{AGENT_NAMES}", strings.Join(names, ", "))
	return p
}

// ParseDirectorResponse extracts the JSON decision from the Director's raw
// output and validates schema conformance and field presence. Any violation
// is an error, never a partial or guessed decision.
func ParseDirectorResponse(raw string) (*domain.Decision, error) {
	jsonStr := strings.TrimSpace(raw)
	if m := fenceRe.FindStringSubmatch(raw); m != nil {
		jsonStr = strings.TrimSpace(m[1])
	}

	var d domain.Decision
	if err := json.Unmarshal([]byte(jsonStr), &d); err != nil {
		return nil, fmt.Errorf("director response is not valid JSON: %w", err)
	}

	if d.NextAgent == "" {
		return nil, fmt.Errorf("director response missing next_agent")
	}
	if d.ActionType == "" {
		return nil, fmt.Errorf("director response missing action_type")
	}
	if !d.ActionType.Valid() {
		return nil, fmt.Errorf("director returned invalid action_type: %q", d.ActionType)
	}

	switch d.ActionType {
	case domain.ActionReply, domain.ActionLike:
		if d.TargetMessageID == "" {
			return nil, fmt.Errorf("director chose %q but did not provide target_message_id", d.ActionType)
		}
	case domain.ActionMention:
		if d.TargetUser == "" {
			return nil, fmt.Errorf("director chose mention but did not provide target_user")
		}
	}

	if d.ActionType == domain.ActionLike {
		if !d.Instruction.Empty() {
			return nil, fmt.Errorf("director chose like but provided a performer_instruction")
		}
	} else if d.Instruction.Empty() {
		return nil, fmt.Errorf("director chose %q but did not provide performer_instruction", d.ActionType)
	}

	return &d, nil
}
