// Package http assembles the participant-facing HTTP server.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/stagelab/chatroom/internal/config"
	"github.com/stagelab/chatroom/internal/hub"
	"github.com/stagelab/chatroom/internal/session"
	"github.com/stagelab/chatroom/internal/tokens"
	v1 "github.com/stagelab/chatroom/internal/transport/http/v1"
	"github.com/stagelab/chatroom/internal/transport/ws"
)

// NewServer creates and configures the HTTP server: the v1 REST API plus the
// WebSocket attach endpoint.
func NewServer(cfg *config.Config, reg *session.Registry, ts *tokens.Store, h *hub.Hub) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Handlers
	v1Handler := v1.NewHandler(reg, ts)
	wsServer := ws.NewServer(cfg, h, reg)

	// Register routes
	v1Handler.RegisterRoutes(e)
	e.GET("/ws/:session_id", wsServer.HandleWebSocket)

	return e
}
