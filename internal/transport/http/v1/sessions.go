package v1

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/stagelab/chatroom/internal/session"
	"github.com/stagelab/chatroom/internal/state"
	"github.com/stagelab/chatroom/internal/tokens"
)

type startSessionRequest struct {
	Token string `json:"token"`
}

type startSessionResponse struct {
	SessionID      string `json:"session_id"`
	TreatmentGroup string `json:"treatment_group"`
	HumanName      string `json:"human_name"`
}

// StartSession exchanges a participant token for a running session.
// POST /v1/sessions/start
func (h *Handler) StartSession(c echo.Context) error {
	var req startSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Token == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "token is required"})
	}

	ctx := c.Request().Context()

	group, err := h.tokens.Lookup(ctx, req.Token)
	if err != nil {
		return tokenError(c, err)
	}

	sess, err := h.registry.Create(group)
	if err != nil {
		log.Printf("ERROR: failed to create session: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create session"})
	}

	// Lookup passed without reserving; a concurrent start with the same
	// token loses here, and its session is torn down.
	if _, err := h.tokens.Consume(ctx, req.Token, sess.ID); err != nil {
		h.registry.Terminate(sess.ID, "token_rejected")
		return tokenError(c, err)
	}

	return c.JSON(http.StatusOK, startSessionResponse{
		SessionID:      sess.ID,
		TreatmentGroup: sess.TreatmentGroup,
		HumanName:      sess.State().HumanName(),
	})
}

func tokenError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, tokens.ErrUnknownToken):
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unknown token"})
	case errors.Is(err, tokens.ErrTokenUsed):
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "token already used"})
	default:
		log.Printf("ERROR: token check failed: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "token check failed"})
	}
}

// GetSessionMessages returns the participant-visible transcript.
// GET /v1/sessions/:session_id/messages
func (h *Handler) GetSessionMessages(c echo.Context) error {
	sess, ok := h.session(c)
	if !ok {
		return nil
	}
	return c.JSON(http.StatusOK, map[string]any{
		"messages": sess.VisibleHistory(),
	})
}

type postMessageRequest struct {
	Content  string   `json:"content"`
	ReplyTo  string   `json:"reply_to,omitempty"`
	Mentions []string `json:"mentions,omitempty"`
}

// PostMessage appends a participant message to the session.
// POST /v1/sessions/:session_id/messages
func (h *Handler) PostMessage(c echo.Context) error {
	sess, ok := h.session(c)
	if !ok {
		return nil
	}

	var req postMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Content == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "content is required"})
	}

	m, err := sess.SubmitHumanMessage(req.Content, req.ReplyTo, req.Mentions)
	if err != nil {
		return targetError(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

type likeRequest struct {
	MessageID string `json:"message_id"`
}

// ToggleLike flips the participant's like on a message.
// POST /v1/sessions/:session_id/likes
func (h *Handler) ToggleLike(c echo.Context) error {
	sess, ok := h.session(c)
	if !ok {
		return nil
	}

	var req likeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.MessageID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "message_id is required"})
	}

	m, err := sess.ToggleLike(req.MessageID, sess.State().HumanName())
	if err != nil {
		return targetError(c, err)
	}
	return c.JSON(http.StatusOK, m)
}

type reportRequest struct {
	MessageID   string `json:"message_id"`
	BlockSender bool   `json:"block_sender"`
}

// ReportMessage flags a message and optionally blocks its sender.
// POST /v1/sessions/:session_id/reports
func (h *Handler) ReportMessage(c echo.Context) error {
	sess, ok := h.session(c)
	if !ok {
		return nil
	}

	var req reportRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.MessageID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "message_id is required"})
	}

	m, blocked, err := sess.Report(req.MessageID, sess.State().HumanName(), req.BlockSender)
	if err != nil {
		return targetError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"message": m,
		"blocked": blocked,
	})
}

// EndSession stops a session early (participant left or proctor abort).
// POST /v1/sessions/:session_id/end
func (h *Handler) EndSession(c echo.Context) error {
	sessionID := c.Param("session_id")
	if _, err := h.registry.Get(sessionID); err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
	}
	h.registry.Terminate(sessionID, "user_exit")
	return c.JSON(http.StatusOK, map[string]string{"status": "ended"})
}

// session resolves the :session_id param. On a miss it writes the 404
// response itself and returns ok=false.
func (h *Handler) session(c echo.Context) (*session.Session, bool) {
	sess, err := h.registry.Get(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
		return nil, false
	}
	return sess, true
}

func targetError(c echo.Context, err error) error {
	if errors.Is(err, state.ErrMessageNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
}
