package v1

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/roadchat/internal/domain"
	"github.com/xiaot623/roadchat/internal/protocol"
)

// AddMessage appends a message as the session user.
// POST /chatDirectory/addMessage
func (h *Handler) AddMessage(c echo.Context) error {
	sess, err := sessionFrom(c)
	if err != nil {
		return writeError(c, err)
	}
	var req domain.AddMessageRequest
	if err := bind(c, &req); err != nil {
		return writeError(c, err)
	}

	msg, err := h.service.AddMessage(c.Request().Context(), sess, req)
	if err != nil {
		return writeError(c, err)
	}
	h.fanOut(domain.EventTypeFriendMessage, domain.NewMessageEvent(domain.ConversationID(req.ChatID), msg))
	return c.JSON(http.StatusCreated, msg)
}

// EditMessage replaces the body of one of the caller's messages.
// PUT /chatDirectory/editMessage
func (h *Handler) EditMessage(c echo.Context) error {
	sess, err := sessionFrom(c)
	if err != nil {
		return writeError(c, err)
	}
	var req domain.EditMessageRequest
	if err := bind(c, &req); err != nil {
		return writeError(c, err)
	}

	ev, err := h.service.EditMessage(c.Request().Context(), sess, req)
	if err != nil {
		return writeError(c, err)
	}
	h.fanOut(domain.EventTypeFriendEdit, *ev)
	return c.JSON(http.StatusOK, ev)
}

// DeleteMessage soft-deletes one of the caller's messages.
// DELETE /chatDirectory/deleteMessage
func (h *Handler) DeleteMessage(c echo.Context) error {
	sess, err := sessionFrom(c)
	if err != nil {
		return writeError(c, err)
	}
	var req domain.DeleteMessageRequest
	if err := bind(c, &req); err != nil {
		return writeError(c, err)
	}

	ev, err := h.service.DeleteMessage(c.Request().Context(), sess, req)
	if err != nil {
		return writeError(c, err)
	}
	h.fanOut(domain.EventTypeFriendDelete, *ev)
	return c.JSON(http.StatusOK, ev)
}

// fanOut pushes a confirmed mutation to the room, skipping the author's own
// connections.
func (h *Handler) fanOut(t domain.EventType, ev domain.MessageEvent) {
	if h.rooms == nil {
		return
	}
	data, err := json.Marshal(protocol.NewEvent(t, ev))
	if err != nil {
		h.log.Error("failed to encode event", "chat_id", ev.ChatID, "error", err)
		return
	}
	h.rooms.BroadcastExceptUser(ev.ChatID, data, ev.AuthorEmail)
}
