package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/roadchat/internal/domain"
)

// CreateChat opens a conversation with another privileged user.
// POST /chatDirectory/create
func (h *Handler) CreateChat(c echo.Context) error {
	sess, err := sessionFrom(c)
	if err != nil {
		return writeError(c, err)
	}
	var req domain.CreateChatRequest
	if err := bind(c, &req); err != nil {
		return writeError(c, err)
	}

	id, err := h.service.CreateChat(c.Request().Context(), sess, req.UserEmail)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]string{"chatId": id.String()})
}

// GetChats lists the caller's conversations.
// GET /chatDirectory/getChats
func (h *Handler) GetChats(c echo.Context) error {
	sess, err := sessionFrom(c)
	if err != nil {
		return writeError(c, err)
	}
	refs, err := h.service.GetChats(c.Request().Context(), sess.UserEmail)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, refs)
}

// GetChat returns a conversation's messages, newest first.
// POST /chatDirectory/getChat
func (h *Handler) GetChat(c echo.Context) error {
	sess, err := sessionFrom(c)
	if err != nil {
		return writeError(c, err)
	}
	var req domain.GetChatRequest
	if err := bind(c, &req); err != nil {
		return writeError(c, err)
	}

	messages, err := h.service.GetChat(c.Request().Context(), sess, req.ChatID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, messages)
}
