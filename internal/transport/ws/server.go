// Package ws attaches participant WebSocket connections to live sessions.
package ws

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/stagelab/chatroom/internal/config"
	"github.com/stagelab/chatroom/internal/hub"
	"github.com/stagelab/chatroom/internal/protocol"
	"github.com/stagelab/chatroom/internal/session"
	"github.com/stagelab/chatroom/internal/state"
)

// Server handles WebSocket upgrades and frame dispatch.
type Server struct {
	cfg      *config.Config
	hub      *hub.Hub
	registry *session.Registry
	upgrader websocket.Upgrader
}

// NewServer creates a WebSocket server backed by the given session registry.
func NewServer(cfg *config.Config, h *hub.Hub, reg *session.Registry) *Server {
	return &Server{
		cfg:      cfg,
		hub:      h,
		registry: reg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Participants connect from the study front end; origin
				// enforcement happens at the reverse proxy.
				return true
			},
		},
	}
}

// HandleWebSocket upgrades GET /ws/:session_id, replays the visible
// transcript, and starts the read/write pumps.
func (s *Server) HandleWebSocket(c echo.Context) error {
	sessionID := c.Param("session_id")
	sess, err := s.registry.Get(sessionID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}

	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("Failed to upgrade WebSocket: %v", err)
		return err
	}

	conn := s.hub.NewConnection(ws)
	conn.SessionID = sessionID
	s.hub.Register(conn)

	ws.SetReadLimit(s.cfg.WSMaxMessageSize)

	go s.writePump(conn)
	go s.readPump(conn, sess)

	// Replay after the pumps start so the frames flow through the same
	// send channel as live events.
	s.replayHistory(conn, sess)

	return nil
}

// replayHistory sends the block-filtered transcript to a fresh connection.
func (s *Server) replayHistory(conn *hub.Connection, sess *session.Session) {
	history := protocol.HistoryMessage{
		BaseMessage: protocol.BaseMessage{
			Type:      protocol.TypeHistory,
			Ts:        time.Now().UnixMilli(),
			SessionID: conn.SessionID,
		},
		Messages: sess.VisibleHistory(),
	}
	if err := s.hub.SendJSONToConnection(conn, history); err != nil {
		log.Printf("Failed to replay history to %s: %v", conn.ID, err)
	}
}

func (s *Server) readPump(conn *hub.Connection, sess *session.Session) {
	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(s.cfg.WSReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.cfg.WSReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
		s.handleMessage(conn, sess, message)
	}
}

func (s *Server) writePump(conn *hub.Connection) {
	ticker := time.NewTicker(s.cfg.WSPingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WSWriteTimeout))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("Failed to write message: %v", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WSWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches an inbound frame to the session.
func (s *Server) handleMessage(conn *hub.Connection, sess *session.Session, data []byte) {
	var base protocol.BaseMessage
	if err := json.Unmarshal(data, &base); err != nil {
		s.sendError(conn, protocol.ErrorCodeInvalidMessage, "invalid JSON message")
		return
	}

	switch base.Type {
	case protocol.TypeUserMessage:
		s.handleUserMessage(conn, sess, data)
	case protocol.TypeLikeMessage:
		s.handleLike(conn, sess, data)
	case protocol.TypeReportMessage:
		s.handleReport(conn, sess, data)
	default:
		s.sendError(conn, protocol.ErrorCodeInvalidMessage, "unknown message type: "+base.Type)
	}
}

func (s *Server) handleUserMessage(conn *hub.Connection, sess *session.Session, data []byte) {
	var msg protocol.UserMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, protocol.ErrorCodeInvalidMessage, "invalid user_message")
		return
	}
	if msg.Content == "" {
		s.sendError(conn, protocol.ErrorCodeInvalidMessage, "content is required")
		return
	}

	if _, err := sess.SubmitHumanMessage(msg.Content, msg.ReplyTo, msg.Mentions); err != nil {
		s.sendError(conn, targetErrorCode(err), err.Error())
	}
}

func (s *Server) handleLike(conn *hub.Connection, sess *session.Session, data []byte) {
	var msg protocol.LikeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, protocol.ErrorCodeInvalidMessage, "invalid like_message")
		return
	}
	if msg.MessageID == "" {
		s.sendError(conn, protocol.ErrorCodeInvalidMessage, "message_id is required")
		return
	}

	if _, err := sess.ToggleLike(msg.MessageID, sess.State().HumanName()); err != nil {
		s.sendError(conn, targetErrorCode(err), err.Error())
	}
}

func (s *Server) handleReport(conn *hub.Connection, sess *session.Session, data []byte) {
	var msg protocol.ReportMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, protocol.ErrorCodeInvalidMessage, "invalid report_message")
		return
	}
	if msg.MessageID == "" {
		s.sendError(conn, protocol.ErrorCodeInvalidMessage, "message_id is required")
		return
	}

	if _, _, err := sess.Report(msg.MessageID, sess.State().HumanName(), msg.BlockSender); err != nil {
		s.sendError(conn, targetErrorCode(err), err.Error())
	}
}

func targetErrorCode(err error) string {
	if errors.Is(err, state.ErrMessageNotFound) {
		return protocol.ErrorCodeTargetNotFound
	}
	return protocol.ErrorCodeInvalidMessage
}

func (s *Server) sendError(conn *hub.Connection, code, message string) {
	errMsg := protocol.ErrorMessage{
		BaseMessage: protocol.BaseMessage{
			Type:      protocol.TypeError,
			Ts:        time.Now().UnixMilli(),
			SessionID: conn.SessionID,
		},
		Code:    code,
		Message: message,
	}
	if err := s.hub.SendJSONToConnection(conn, errMsg); err != nil {
		log.Printf("Failed to send error to %s: %v", conn.ID, err)
	}
}
