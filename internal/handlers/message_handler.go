package handlers

import (
	"net/http"
	"strconv"

	"github.com/anonto42/findmate/backend/internal/models"
	"github.com/anonto42/findmate/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// MessageHandler handles direct messages
type MessageHandler struct {
	messageRepository repositories.MessageRepository
	notifier          MessageNotifier
}

// NewMessageHandler creates a new MessageHandler
func NewMessageHandler(messageRepo repositories.MessageRepository, notifier MessageNotifier) *MessageHandler {
	return &MessageHandler{messageRepository: messageRepo, notifier: notifier}
}

// RegisterMessageRoutes registers message routes
func (h *MessageHandler) RegisterMessageRoutes(g *echo.Group) {
	g.POST("/messages", h.SendMessage)
	g.GET("/messages/:userId", h.GetConversation)
}

// SendMessage stores a message and notifies its addressee
func (h *MessageHandler) SendMessage(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}

	var req models.SendMessageRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if req.ToUserID == userID {
		return echo.NewHTTPError(http.StatusBadRequest, "Cannot send a message to yourself")
	}

	msg := &models.Message{
		FromUserID:  userID,
		ToUserID:    req.ToUserID,
		Text:        req.Text,
		MessageType: models.MessageTypeText,
		MediaURL:    req.MediaURL,
	}
	if req.MediaURL != "" {
		msg.MessageType = models.MessageTypeImage
	}

	ctx := c.Request().Context()
	if err := h.messageRepository.CreateMessage(ctx, msg); err != nil {
		return internalError("Failed to send message", err)
	}

	h.notifier.NotifyNewMessage(ctx, msg.ID.Hex(), userID, msg.ToUserID)

	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": msg})
}

// GetConversation returns the messages exchanged with another user, oldest first
func (h *MessageHandler) GetConversation(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}

	limit, _ := strconv.ParseInt(c.QueryParam("limit"), 10, 64)
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	messages, err := h.messageRepository.GetConversation(c.Request().Context(), userID, c.Param("userId"), limit)
	if err != nil {
		return internalError("Failed to fetch conversation", err)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": messages})
}
