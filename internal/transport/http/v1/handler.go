// Package v1 provides the chat directory HTTP handlers.
package v1

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/roadchat/internal/domain"
)

// ChatService is the conversation service as seen by the REST surface.
type ChatService interface {
	CreateChat(ctx context.Context, sess *domain.ClientSession, peerEmail string) (domain.ConversationID, error)
	GetChats(ctx context.Context, userEmail string) ([]domain.ConversationRef, error)
	GetChat(ctx context.Context, sess *domain.ClientSession, rawID string) ([]domain.Message, error)
	AddMessage(ctx context.Context, sess *domain.ClientSession, req domain.AddMessageRequest) (*domain.Message, error)
	EditMessage(ctx context.Context, sess *domain.ClientSession, req domain.EditMessageRequest) (*domain.MessageEvent, error)
	DeleteMessage(ctx context.Context, sess *domain.ClientSession, req domain.DeleteMessageRequest) (*domain.MessageEvent, error)
}

// Verifier admits a request from its session cookie.
type Verifier interface {
	Verify(r *http.Request) (*domain.ClientSession, error)
}

// Broadcaster fans a frame out to a room, skipping one user's connections.
type Broadcaster interface {
	BroadcastExceptUser(room domain.ConversationID, data []byte, userEmail string) int
}

// Handler handles HTTP requests.
type Handler struct {
	service  ChatService
	verifier Verifier
	rooms    Broadcaster
	log      *slog.Logger
}

// NewHandler creates a new handler. rooms may be nil.
func NewHandler(service ChatService, verifier Verifier, rooms Broadcaster, log *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		verifier: verifier,
		rooms:    rooms,
		log:      log,
	}
}

// RegisterRoutes registers the chat directory routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/chatDirectory", h.Authenticate)
	g.POST("/create", h.CreateChat)
	g.GET("/getChats", h.GetChats)
	g.POST("/getChat", h.GetChat)
	g.POST("/addMessage", h.AddMessage)
	g.PUT("/editMessage", h.EditMessage)
	g.DELETE("/deleteMessage", h.DeleteMessage)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
