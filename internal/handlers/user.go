package handlers

import (
	"errors"
	"net/http"

	"github.com/anonto42/findmate/backend/internal/repositories"
	"github.com/labstack/echo/v4"
)

// UserHandler serves read-only profile lookups so clients can render the
// actors named in notifications.
type UserHandler struct {
	userRepository repositories.UserRepository
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userRepo repositories.UserRepository) *UserHandler {
	return &UserHandler{userRepository: userRepo}
}

// RegisterUserRoutes registers user profile routes
func (h *UserHandler) RegisterUserRoutes(g *echo.Group) {
	g.GET("/users/me", h.GetProfile)
	g.GET("/users/:id", h.GetUser)
}

// GetUser returns another user's compact profile
func (h *UserHandler) GetUser(c echo.Context) error {
	if _, err := requireUser(c); err != nil {
		return err
	}
	return h.respond(c, c.Param("id"))
}

// GetProfile returns the authenticated user's compact profile
func (h *UserHandler) GetProfile(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	return h.respond(c, userID)
}

func (h *UserHandler) respond(c echo.Context, id string) error {
	user, err := h.userRepository.GetUserByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "User profile not found")
		}
		return internalError("Failed to load user", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": user.ToCompact()})
}
