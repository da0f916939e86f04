package router

import (
	"context"
	"fmt"

	"github.com/anonto42/findmate/backend/internal/handlers"
	"github.com/anonto42/findmate/backend/internal/models"
	"github.com/anonto42/findmate/backend/internal/notify"
	"github.com/anonto42/findmate/backend/internal/realtime"
	"github.com/anonto42/findmate/backend/internal/repositories"
	"github.com/anonto42/findmate/backend/internal/validators"
	"github.com/anonto42/findmate/backend/pkg/config"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps are the collaborators the HTTP layer is built from.
type Deps struct {
	Notifications repositories.NotificationRepository
	Posts         repositories.PostRepository
	Messages      repositories.MessageRepository
	Connections   repositories.ConnectionRepository
	Users         repositories.UserRepository

	// Registry is the process-wide live channel registry, created once in main.
	Registry *realtime.Registry
	Auth     echo.MiddlewareFunc
	Stream   handlers.StreamConfig
	Notify   notify.Config
	Logger   *zap.Logger
}

// IndexEnsurer creates the indexes a Mongo-backed store relies on.
type IndexEnsurer interface {
	EnsureIndexes(ctx context.Context) error
}

// Migrate runs the PostgreSQL auto-migrations and ensures Mongo indexes.
func Migrate(ctx context.Context, pgdb *gorm.DB, indexes IndexEnsurer, logger *zap.Logger) error {
	if err := pgdb.WithContext(ctx).AutoMigrate(&models.User{}, &models.Connection{}); err != nil {
		return fmt.Errorf("auto migrating models: %w", err)
	}
	logger.Info("PostgreSQL auto-migrations completed")

	if err := indexes.EnsureIndexes(ctx); err != nil {
		return err
	}
	logger.Info("MongoDB notification indexes ensured")
	return nil
}

// New builds the echo instance with every route and dependency wired.
func New(deps Deps) *echo.Echo {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validators.NewValidator()
	e.HTTPErrorHandler = handlers.ErrorHandler(logger)
	config.SetupMiddleware(e, logger.Named("http"))

	dispatcher := realtime.NewDispatcher(deps.Registry, logger.Named("dispatch"))
	emitter := notify.NewEmitter(deps.Notifications, deps.Users, deps.Posts, deps.Messages, dispatcher, deps.Notify, logger)

	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck(deps.Registry))

	api := e.Group("/api")
	api.Use(deps.Auth)

	notificationHandler := handlers.NewNotificationHandler(deps.Notifications, deps.Users, deps.Registry, deps.Stream, logger)
	notificationHandler.RegisterNotificationRoutes(api.Group("/notifications"))

	postHandler := handlers.NewPostHandler(deps.Posts, emitter)
	postHandler.RegisterPostRoutes(api)

	messageHandler := handlers.NewMessageHandler(deps.Messages, emitter)
	messageHandler.RegisterMessageRoutes(api)

	connectionHandler := handlers.NewConnectionHandler(deps.Connections, deps.Users, emitter)
	connectionHandler.RegisterConnectionRoutes(api)

	userHandler := handlers.NewUserHandler(deps.Users)
	userHandler.RegisterUserRoutes(api)

	logger.Debug("routes configured", zap.Int("count", len(e.Routes())))
	return e
}
