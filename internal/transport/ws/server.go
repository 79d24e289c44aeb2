// Package ws provides the realtime gateway for chat clients.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"github.com/xiaot623/roadchat/internal/domain"
	"github.com/xiaot623/roadchat/internal/hub"
	"github.com/xiaot623/roadchat/internal/protocol"
	"github.com/xiaot623/roadchat/internal/service"
)

// eventTimeout bounds the service call behind one inbound frame.
const eventTimeout = 10 * time.Second

var errNotJoined = errors.New("connection has not joined the conversation")

// Verifier admits a connection from its upgrade request.
type Verifier interface {
	Verify(r *http.Request) (*domain.ClientSession, error)
}

// ChatService is the subset of the conversation service the gateway uses.
type ChatService interface {
	GetChats(ctx context.Context, userEmail string) ([]domain.ConversationRef, error)
	AddMessage(ctx context.Context, sess *domain.ClientSession, req domain.AddMessageRequest) (*domain.Message, error)
	EditMessage(ctx context.Context, sess *domain.ClientSession, req domain.EditMessageRequest) (*domain.MessageEvent, error)
	DeleteMessage(ctx context.Context, sess *domain.ClientSession, req domain.DeleteMessageRequest) (*domain.MessageEvent, error)
}

// Validator checks decoded frame payloads.
type Validator interface {
	Validate(i any) error
}

// Options holds the connection settings.
type Options struct {
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	MaxMessageSize int64
	SendBufferSize int
	AllowedOrigins []string
}

// Server handles WebSocket connections.
type Server struct {
	opts      Options
	hub       *hub.Hub
	verifier  Verifier
	service   ChatService
	validator Validator
	log       *slog.Logger
	upgrader  websocket.Upgrader
}

// NewServer creates a new WebSocket server.
func NewServer(opts Options, h *hub.Hub, verifier Verifier, svc ChatService, validator Validator, log *slog.Logger) *Server {
	s := &Server{
		opts:      opts,
		hub:       h,
		verifier:  verifier,
		service:   svc,
		validator: validator,
		log:       log,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || lo.Contains(s.opts.AllowedOrigins, "*") {
		return true
	}
	return lo.Contains(s.opts.AllowedOrigins, origin)
}

// HandleWebSocket admits the session, upgrades, joins the user's rooms and
// starts the pumps. Rejected requests are never upgraded.
func (s *Server) HandleWebSocket(c echo.Context) error {
	sess, err := s.verifier.Verify(c.Request())
	if err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, domain.ErrUnauthorized) {
			status = http.StatusForbidden
		}
		return c.JSON(status, map[string]string{"error": http.StatusText(status)})
	}

	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.log.Warn("failed to upgrade websocket", "user", sess.UserEmail, "error", err)
		return nil
	}

	conn := s.hub.NewConnection(ws, *sess, s.opts.SendBufferSize)
	s.hub.Register(conn)
	ws.SetReadLimit(s.opts.MaxMessageSize)

	refs, err := s.service.GetChats(c.Request().Context(), sess.UserEmail)
	if err != nil {
		s.log.Error("failed to load chat directory, closing", "conn_id", conn.ID, "user", sess.UserEmail, "error", err)
		s.hub.Unregister(conn)
		_ = conn.Close()
		return nil
	}
	for _, id := range service.ConversationIDs(refs) {
		s.hub.Join(conn, id)
	}
	s.log.Info("connection admitted", "conn_id", conn.ID, "user", sess.UserEmail, "rooms", len(refs))

	go s.writePump(conn)
	go s.readPump(conn)
	return nil
}

// readPump reads frames and handles them one at a time.
func (s *Server) readPump(conn *hub.Connection) {
	defer func() {
		s.hub.Unregister(conn)
		_ = conn.Close()
		s.log.Info("connection closed", "conn_id", conn.ID, "user", conn.Session.UserEmail)
	}()

	_ = conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				s.log.Warn("websocket read error", "conn_id", conn.ID, "error", err)
			}
			return
		}
		s.handleMessage(conn, message)
	}
}

// writePump drains the send buffer and keeps the connection alive.
func (s *Server) writePump(conn *hub.Connection) {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			_ = conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if !ok {
				// Hub closed the channel.
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				s.log.Warn("failed to write message", "conn_id", conn.ID, "error", err)
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage runs one inbound frame through the service and fans the
// confirmed result out to the other members of the room.
func (s *Server) handleMessage(conn *hub.Connection, data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.log.Debug("dropping undecodable frame", "conn_id", conn.ID, "error", err)
		return
	}
	friend, ok := protocol.FriendEvent(env.Type)
	if !ok {
		s.fail(conn, env.RequestID, protocol.ErrorCodeInvalidMessage)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	ev, err := s.dispatch(ctx, conn, env)
	if err != nil {
		code := protocol.ErrorCode(err)
		switch {
		case errors.Is(err, errNotJoined):
			code = protocol.ErrorCodeNotJoined
			s.log.Debug("dropping event for unjoined room", "conn_id", conn.ID, "type", env.Type)
		case code == protocol.ErrorCodeInternalError:
			s.log.Error("event failed", "conn_id", conn.ID, "type", env.Type, "error", err)
		default:
			s.log.Debug("event rejected", "conn_id", conn.ID, "type", env.Type, "error", err)
		}
		s.fail(conn, env.RequestID, code)
		return
	}

	// The connection may have gone away while the store call ran.
	if !s.hub.IsMember(conn, ev.ChatID) {
		return
	}
	if _, err := s.hub.BroadcastJSON(ev.ChatID, protocol.NewEvent(friend, *ev), conn); err != nil {
		s.log.Error("failed to encode event", "conn_id", conn.ID, "error", err)
		return
	}
	if env.RequestID != "" {
		_ = s.hub.SendJSONToConnection(conn, protocol.NewAck(env.RequestID, *ev))
	}
}

func (s *Server) dispatch(ctx context.Context, conn *hub.Connection, env protocol.Envelope) (*domain.MessageEvent, error) {
	sess := &conn.Session
	switch env.Type {
	case domain.EventTypeMessage:
		req, err := decodeFrame(s, conn, env.Data, func(r domain.AddMessageRequest) string { return r.ChatID })
		if err != nil {
			return nil, err
		}
		msg, err := s.service.AddMessage(ctx, sess, req)
		if err != nil {
			return nil, err
		}
		ev := domain.NewMessageEvent(domain.ConversationID(req.ChatID), msg)
		return &ev, nil

	case domain.EventTypeEdit:
		req, err := decodeFrame(s, conn, env.Data, func(r domain.EditMessageRequest) string { return r.ChatID })
		if err != nil {
			return nil, err
		}
		return s.service.EditMessage(ctx, sess, req)

	default:
		req, err := decodeFrame(s, conn, env.Data, func(r domain.DeleteMessageRequest) string { return r.ChatID })
		if err != nil {
			return nil, err
		}
		return s.service.DeleteMessage(ctx, sess, req)
	}
}

// decodeFrame parses and validates a frame payload and drops it unless the
// connection has joined the target room.
func decodeFrame[T any](s *Server, conn *hub.Connection, data json.RawMessage, chatID func(T) string) (T, error) {
	var req T
	if err := json.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if err := s.validator.Validate(&req); err != nil {
		return req, err
	}
	if !s.hub.IsMember(conn, domain.ConversationID(chatID(req))) {
		return req, errNotJoined
	}
	return req, nil
}

// fail reports a failed frame to its sender when it carried a request id.
func (s *Server) fail(conn *hub.Connection, requestID, code string) {
	if requestID == "" {
		return
	}
	_ = s.hub.SendJSONToConnection(conn, protocol.NewError(requestID, code))
}
