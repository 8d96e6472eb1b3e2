// Package protocol defines the WebSocket message protocol between the
// participant client and the server.
package protocol

// Message types from client to server
const (
	TypeUserMessage   = "user_message"
	TypeLikeMessage   = "like_message"
	TypeReportMessage = "report_message"
)

// Message types from server to client. Chat events (message, message_like,
// message_report, block_update, session_end) are defined alongside the
// domain types; these cover the connection-level frames.
const (
	TypeHistory = "history"
	TypeError   = "error"
)

// Error codes
const (
	ErrorCodeInvalidMessage  = "INVALID_MESSAGE"
	ErrorCodeSessionNotFound = "SESSION_NOT_FOUND"
	ErrorCodeSessionEnded    = "SESSION_ENDED"
	ErrorCodeTargetNotFound  = "TARGET_NOT_FOUND"
)

// BaseMessage contains common fields for all client frames.
type BaseMessage struct {
	Type      string `json:"type"`
	Ts        int64  `json:"ts,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// UserMessage is a chat message posted by the participant.
type UserMessage struct {
	BaseMessage
	Content  string   `json:"content"`
	ReplyTo  string   `json:"reply_to,omitempty"`
	Mentions []string `json:"mentions,omitempty"`
}

// LikeMessage toggles the participant's like on a message.
type LikeMessage struct {
	BaseMessage
	MessageID string `json:"message_id"`
}

// ReportMessage reports a message and optionally blocks its sender.
type ReportMessage struct {
	BaseMessage
	MessageID   string `json:"message_id"`
	BlockSender bool   `json:"block_sender"`
}

// HistoryMessage replays the visible transcript to a (re)connecting client.
type HistoryMessage struct {
	BaseMessage
	Messages any `json:"messages"`
}

// ErrorMessage reports a rejected client frame.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"code"`
	Message string `json:"message"`
}
