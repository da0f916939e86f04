package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/anonto42/findmate/backend/internal/models"
	"github.com/anonto42/findmate/backend/internal/realtime"
	"github.com/anonto42/findmate/backend/internal/repositories"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	defaultNotificationLimit = 20
	maxNotificationLimit     = 50
)

// StreamConfig tunes live event streams.
type StreamConfig struct {
	BufferSize int
	Heartbeat  time.Duration // 0 disables keepalive comments
}

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	notificationRepository repositories.NotificationRepository
	userRepository         repositories.UserRepository
	registry               *realtime.Registry
	stream                 StreamConfig
	logger                 *zap.Logger
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notifRepo repositories.NotificationRepository, userRepo repositories.UserRepository, registry *realtime.Registry, cfg StreamConfig, logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{
		notificationRepository: notifRepo,
		userRepository:         userRepo,
		registry:               registry,
		stream:                 cfg,
		logger:                 logger.Named("notifications"),
	}
}

// RegisterNotificationRoutes registers notification routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.GET("/sse", h.Stream)
	g.GET("/sse/:userId", h.Stream)
	g.GET("", h.GetNotifications)
	g.GET("/", h.GetNotifications)
	g.GET("/counts", h.GetCounts)
	g.PATCH("/read-all", h.MarkAllAsRead)
	g.PATCH("/read-by-type", h.MarkTypeAsRead)
	g.PATCH("/:id/read", h.MarkAsRead)
}

// Stream holds an event stream open for the caller and registers it as the
// caller's live channel until the client goes away.
func (h *NotificationHandler) Stream(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	if param := c.Param("userId"); param != "" && param != userID {
		return echo.NewHTTPError(http.StatusForbidden, "Cannot subscribe to another user's notifications")
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)

	stream := realtime.NewStream(userID, h.stream.BufferSize)
	if prev := h.registry.Register(userID, stream); prev != nil {
		h.logger.Debug("live channel superseded", zap.String("user_id", userID))
	}
	defer h.registry.Release(userID, stream)

	log := h.logger.With(zap.String("user_id", userID), zap.String("stream_id", stream.ID()))
	log.Debug("live channel opened", zap.Int("online", h.registry.Len()))

	err = stream.Serve(c.Request().Context(), res, res.Flush, h.stream.Heartbeat)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	log.Debug("live channel closed", zap.Error(err))
	return nil
}

// GetNotifications returns the caller's most recent notifications plus the unread total
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 {
		limit = defaultNotificationLimit
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}

	ctx := c.Request().Context()
	notifications, err := h.notificationRepository.GetByRecipient(ctx, userID, int64(limit))
	if err != nil {
		return internalError("Failed to fetch notifications", err)
	}
	unread, err := h.notificationRepository.CountUnread(ctx, userID)
	if err != nil {
		return internalError("Failed to count notifications", err)
	}
	h.attachActors(ctx, notifications)

	return c.JSON(http.StatusOK, echo.Map{
		"success":       true,
		"notifications": notifications,
		"unreadCount":   unread,
	})
}

// GetCounts returns unread counts per kind, queried from the store on every call
func (h *NotificationHandler) GetCounts(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	var counts models.NotificationCounts
	for _, kind := range models.Kinds() {
		n, err := h.notificationRepository.CountUnreadByKind(ctx, userID, kind)
		if err != nil {
			return internalError("Failed to count notifications", err)
		}
		switch kind {
		case models.KindPost:
			counts.Post = n
		case models.KindMessage:
			counts.Message = n
		case models.KindConnection:
			counts.Connection = n
		}
	}
	if counts.Total, err = h.notificationRepository.CountUnread(ctx, userID); err != nil {
		return internalError("Failed to count notifications", err)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "counts": counts})
}

// MarkAsRead marks one of the caller's notifications as read
func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	notification, err := h.notificationRepository.MarkAsRead(ctx, c.Param("id"), userID)
	switch {
	case errors.Is(err, repositories.ErrInvalidID):
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid notification ID")
	case errors.Is(err, repositories.ErrNotificationNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Notification not found")
	case err != nil:
		return internalError("Failed to mark notification as read", err)
	}

	one := []models.Notification{*notification}
	h.attachActors(ctx, one)

	return c.JSON(http.StatusOK, echo.Map{
		"success":      true,
		"message":      "Notification marked as read",
		"notification": one[0],
	})
}

// MarkAllAsRead marks all of the caller's notifications as read
func (h *NotificationHandler) MarkAllAsRead(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}

	modified, err := h.notificationRepository.MarkAllAsRead(c.Request().Context(), userID)
	if err != nil {
		return internalError("Failed to mark notifications as read", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success":  true,
		"message":  "All notifications marked as read",
		"modified": modified,
	})
}

// MarkTypeAsRead marks the caller's notifications of one kind as read
func (h *NotificationHandler) MarkTypeAsRead(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}

	var req models.MarkByTypeRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	modified, err := h.notificationRepository.MarkKindAsRead(c.Request().Context(), userID, req.Type)
	if err != nil {
		return internalError("Failed to mark notifications as read", err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"success":  true,
		"message":  string(req.Type) + " notifications marked as read",
		"modified": modified,
	})
}

// attachActors resolves the acting users of ns in one lookup. Profiles are
// decoration only: a failed lookup leaves them empty.
func (h *NotificationHandler) attachActors(ctx context.Context, ns []models.Notification) {
	seen := make(map[string]struct{})
	ids := []string{}
	for _, n := range ns {
		if n.Actor == "" {
			continue
		}
		if _, ok := seen[n.Actor]; !ok {
			seen[n.Actor] = struct{}{}
			ids = append(ids, n.Actor)
		}
	}
	if len(ids) == 0 {
		return
	}

	users, err := h.userRepository.GetUsersByIDs(ctx, ids)
	if err != nil {
		h.logger.Warn("resolving notification actors", zap.Int("actors", len(ids)), zap.Error(err))
		return
	}
	profiles := make(map[string]*models.UserCompact, len(users))
	for i := range users {
		p := users[i].ToCompact()
		profiles[users[i].ID] = &p
	}
	for i := range ns {
		ns[i].ActorProfile = profiles[ns[i].Actor]
	}
}
