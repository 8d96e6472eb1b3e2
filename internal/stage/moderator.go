package stage

import (
	"errors"
	"strings"

	"github.com/stagelab/chatroom/internal/domain"
)

// NoContentSentinel is the exact string the Moderator returns when the
// Performer output holds no extractable message.
const NoContentSentinel = "NO_CONTENT"

// ErrNoContent signals that the Moderator found nothing usable; the turn
// pipeline's retry loop treats it like a generation failure.
var ErrNoContent = errors.New("moderator extracted no content")

// BuildModeratorSystemPrompt fills the session-static Moderator prompt.
func BuildModeratorSystemPrompt(chatroomContext string) string {
	return strings.ReplaceAll(moderatorSystemTemplate, "{CHATROOM_CONTEXT}", chatroomContext)
}

// BuildModeratorUserPrompt wraps the Performer's raw output for extraction.
func BuildModeratorUserPrompt(performerOutput string, actionType domain.ActionType) string {
	p := moderatorUserTemplate
	p = strings.ReplaceAll(p, "{ACTION_TYPE}", string(actionType))
	p = strings.ReplaceAll(p, "{PERFORMER_OUTPUT}", performerOutput)
	return p
}

// ParseModeratorResponse returns the extracted message content, or
// ErrNoContent when the Moderator signalled the sentinel or returned nothing.
func ParseModeratorResponse(raw string) (string, error) {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" || cleaned == NoContentSentinel {
		return "", ErrNoContent
	}
	return cleaned, nil
}
