package handlers

import (
	"net/http"

	"github.com/anonto42/findmate/backend/internal/realtime"
	"github.com/labstack/echo/v4"
)

// HealthCheck reports liveness and the number of users holding a live channel
func HealthCheck(registry *realtime.Registry) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{
			"status":       "healthy",
			"service":      "findmate-notifications",
			"live_streams": registry.Len(),
		})
	}
}
