package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/anonto42/findmate/backend/internal/middleware"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// PostNotifier is called after a post has been stored.
type PostNotifier interface {
	NotifyNewPost(ctx context.Context, postID, authorID string)
}

// MessageNotifier is called after a message has been stored.
type MessageNotifier interface {
	NotifyNewMessage(ctx context.Context, messageID, senderID, recipientID string)
}

// ConnectionNotifier is called after a connection request has been stored.
type ConnectionNotifier interface {
	NotifyConnectionRequest(ctx context.Context, connectionID, senderID, recipientID string)
}

// getUserIDFromContext returns the id stored by the auth middleware, or "".
func getUserIDFromContext(c echo.Context) string {
	id, _ := c.Get(middleware.ContextUserID).(string)
	return id
}

func requireUser(c echo.Context) (string, error) {
	id := getUserIDFromContext(c)
	if id == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	return id, nil
}

// bindAndValidate binds the request body into req and runs the echo validator.
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	return c.Validate(req)
}

func internalError(msg string, err error) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusInternalServerError, msg).SetInternal(err)
}

// ErrorHandler renders every failed request as {"success": false, "message": ...}.
func ErrorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code := http.StatusInternalServerError
		message := "Internal server error"
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			message = fmt.Sprint(he.Message)
			if he.Internal != nil {
				err = he.Internal
			}
		}

		if code >= http.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.Error(err))
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, echo.Map{"success": false, "message": message})
		}
		if err != nil {
			logger.Error("writing error response", zap.Error(err))
		}
	}
}
