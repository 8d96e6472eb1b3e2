package stage

import (
	"fmt"
	"strings"

	"github.com/stagelab/chatroom/internal/domain"
)

// BuildPerformerSystemPrompt fills the session-static Performer prompt.
func BuildPerformerSystemPrompt(chatroomContext string) string {
	return strings.ReplaceAll(performerSystemTemplate, "{CHATROOM_CONTEXT}", chatroomContext)
}

// formatInstruction renders the Director's instruction triple as readable text.
func formatInstruction(in domain.Instruction) string {
	var parts []string
	if in.Objective != "" {
		parts = append(parts, "Objective: "+in.Objective)
	}
	if in.Motivation != "" {
		parts = append(parts, "Motivation: "+in.Motivation)
	}
	if in.Action != "" {
		parts = append(parts, "Action: "+in.Action)
	}
	return strings.Join(parts, "\n")
}

// formatPlainChatLog renders messages without ids; the Performer only needs
// the conversation, not reference handles.
func formatPlainChatLog(messages []*domain.Message) string {
	if len(messages) == 0 {
		return "(No messages yet)"
	}
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, m.Sender+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

// BuildPerformerUserPrompt assembles the per-turn Performer prompt, selecting
// the action-type block for the decision. Like actions never reach the
// Performer, so only message/reply/mention blocks exist.
func BuildPerformerUserPrompt(decision *domain.Decision, messages []*domain.Message, target *domain.Message) string {
	var block string
	switch decision.ActionType {
	case domain.ActionReply:
		targetContent := "(message not found)"
		if target != nil {
			targetContent = target.Sender + ": " + target.Content
		}
		block = strings.ReplaceAll(performerReplyBlock, "{TARGET_MESSAGE}", targetContent)
	case domain.ActionMention:
		block = strings.ReplaceAll(performerMentionBlock, "{TARGET_USER}", decision.TargetUser)
	default:
		block = performerMessageBlock
	}

	p := performerUserTemplate
	p = strings.ReplaceAll(p, "{AGENT_NAME}", decision.NextAgent)
	p = strings.ReplaceAll(p, "{INSTRUCTION}", formatInstruction(decision.Instruction))
	p = strings.ReplaceAll(p, "{ACTION_BLOCK}", block)
	p = strings.ReplaceAll(p, "{CHAT_LOG}", formatPlainChatLog(messages))
	return p
}

// MentionContent mechanically prepends the mention token to sanitized text.
// The Performer is never asked to produce the token itself.
func MentionContent(targetUser, body string) string {
	return fmt.Sprintf("@%s %s", targetUser, body)
}
