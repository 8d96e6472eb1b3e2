package domain

import "time"

// Event types relayed to the transport layer.
const (
	EventTypeMessage     = "message"
	EventTypeMessageLike = "message_like"
	EventTypeReport      = "message_report"
	EventTypeBlockUpdate = "block_update"
	EventTypeSessionEnd  = "session_end"
)

// MessageEvent announces a committed message.
type MessageEvent struct {
	Type    string   `json:"type"`
	Message *Message `json:"message"`
}

// LikeEvent announces a like toggle on a message.
type LikeEvent struct {
	Type       string   `json:"type"`
	MessageID  string   `json:"message_id"`
	LikesCount int      `json:"likes_count"`
	LikedBy    []string `json:"liked_by"`
	User       string   `json:"user"`
}

// ReportEvent announces that a message was reported.
type ReportEvent struct {
	Type      string `json:"type"`
	MessageID string `json:"message_id"`
	Reported  bool   `json:"reported"`
}

// BlockUpdateEvent announces a change to the blocked-sender map.
type BlockUpdateEvent struct {
	Type    string               `json:"type"`
	Blocked map[string]time.Time `json:"blocked"`
}

// SessionEndEvent announces session termination to connected clients.
type SessionEndEvent struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}
