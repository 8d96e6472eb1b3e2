// Package v1 provides the participant-facing HTTP API.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/stagelab/chatroom/internal/session"
	"github.com/stagelab/chatroom/internal/tokens"
)

// Handler handles HTTP requests.
type Handler struct {
	registry *session.Registry
	tokens   *tokens.Store
}

// NewHandler creates a new handler.
func NewHandler(reg *session.Registry, ts *tokens.Store) *Handler {
	return &Handler{
		registry: reg,
		tokens:   ts,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/session/start", h.StartSession)
	e.POST("/v1/sessions/start", h.StartSession)
	e.GET("/v1/sessions/:session_id/messages", h.GetSessionMessages)
	e.POST("/v1/sessions/:session_id/messages", h.PostMessage)
	e.POST("/v1/sessions/:session_id/likes", h.ToggleLike)
	e.POST("/v1/sessions/:session_id/reports", h.ReportMessage)
	e.POST("/v1/sessions/:session_id/end", h.EndSession)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":   "healthy",
		"sessions": h.registry.Count(),
	})
}
