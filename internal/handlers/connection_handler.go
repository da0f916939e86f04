package handlers

import (
	"errors"
	"net/http"

	"github.com/anonto42/findmate/backend/internal/models"
	"github.com/anonto42/findmate/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// ConnectionHandler handles connection requests between users
type ConnectionHandler struct {
	connectionRepository repositories.ConnectionRepository
	userRepository       repositories.UserRepository
	notifier             ConnectionNotifier
}

// NewConnectionHandler creates a new ConnectionHandler
func NewConnectionHandler(connRepo repositories.ConnectionRepository, userRepo repositories.UserRepository, notifier ConnectionNotifier) *ConnectionHandler {
	return &ConnectionHandler{
		connectionRepository: connRepo,
		userRepository:       userRepo,
		notifier:             notifier,
	}
}

// RegisterConnectionRoutes registers connection routes
func (h *ConnectionHandler) RegisterConnectionRoutes(g *echo.Group) {
	g.POST("/connections", h.SendConnectionRequest)
	g.GET("/connections/pending", h.GetPendingConnections)
	g.PATCH("/connections/:id/status", h.UpdateConnectionStatus)
}

// SendConnectionRequest creates a pending request and notifies its addressee
func (h *ConnectionHandler) SendConnectionRequest(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}

	var req models.CreateConnectionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if req.ToUserID == userID {
		return echo.NewHTTPError(http.StatusBadRequest, "Cannot send a connection request to yourself")
	}

	ctx := c.Request().Context()
	if _, err := h.userRepository.GetUserByID(ctx, req.ToUserID); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Receiver user not found")
		}
		return internalError("Failed to look up receiver", err)
	}

	conn := &models.Connection{FromUserID: userID, ToUserID: req.ToUserID}
	err = h.connectionRepository.CreateConnection(ctx, conn)
	switch {
	case errors.Is(err, repositories.ErrConnectionPending), errors.Is(err, repositories.ErrAlreadyConnected):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case err != nil:
		return internalError("Failed to create connection request", err)
	}

	h.notifier.NotifyConnectionRequest(ctx, conn.ID, userID, conn.ToUserID)

	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": conn})
}

// GetPendingConnections lists the pending requests addressed to the caller
func (h *ConnectionHandler) GetPendingConnections(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}

	conns, err := h.connectionRepository.GetPendingConnections(c.Request().Context(), userID)
	if err != nil {
		return internalError("Failed to fetch connection requests", err)
	}

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": conns})
}

// UpdateConnectionStatus lets the addressee accept or reject a pending request
func (h *ConnectionHandler) UpdateConnectionStatus(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}

	var req models.UpdateConnectionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	conn, err := h.connectionRepository.GetConnectionByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repositories.ErrConnectionNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "Connection request not found")
		}
		return internalError("Failed to fetch connection request", err)
	}
	if conn.ToUserID != userID {
		return echo.NewHTTPError(http.StatusForbidden, "Only the receiver can answer a connection request")
	}
	if conn.Status != models.ConnectionPending {
		return echo.NewHTTPError(http.StatusConflict, "Connection request already answered")
	}

	if err := h.connectionRepository.UpdateConnectionStatus(ctx, conn.ID, req.Status); err != nil {
		return internalError("Failed to update connection request", err)
	}
	conn.Status = req.Status

	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": conn})
}
