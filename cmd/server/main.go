package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anonto42/findmate/backend/internal/handlers"
	"github.com/anonto42/findmate/backend/internal/middleware"
	"github.com/anonto42/findmate/backend/internal/notify"
	"github.com/anonto42/findmate/backend/internal/realtime"
	"github.com/anonto42/findmate/backend/internal/repositories"
	"github.com/anonto42/findmate/backend/internal/router"
	"github.com/anonto42/findmate/backend/pkg/config"
	"github.com/anonto42/findmate/backend/pkg/firebase"
	"github.com/anonto42/findmate/backend/pkg/logger"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	zl, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := config.InitDB(ctx, cfg, zl)
	if err != nil {
		return fmt.Errorf("initializing databases: %w", err)
	}
	defer db.CloseDB()

	notificationRepo := repositories.NewMongoNotificationRepository(db.MongoDB)
	if err := router.Migrate(ctx, db.Postgres, notificationRepo, zl); err != nil {
		return err
	}

	auth, err := authMiddleware(ctx, cfg, zl)
	if err != nil {
		return err
	}

	e := router.New(router.Deps{
		Notifications: notificationRepo,
		Posts:         repositories.NewMongoPostRepository(db.MongoDB),
		Messages:      repositories.NewMongoMessageRepository(db.MongoDB),
		Connections:   repositories.NewPostgresConnectionRepository(db.Postgres),
		Users:         repositories.NewPostgresUserRepository(db.Postgres),
		Registry:      realtime.NewRegistry(),
		Auth:          auth,
		Stream: handlers.StreamConfig{
			BufferSize: cfg.StreamBufferSize,
			Heartbeat:  cfg.HeartbeatInterval,
		},
		Notify: notify.Config{
			PreviewLength: cfg.MessagePreviewLength,
			Timeout:       cfg.NotificationTimeout,
		},
		Logger: zl,
	})
	// Request contexts derive from ctx, so open event streams end on shutdown.
	e.Server.BaseContext = func(net.Listener) context.Context { return ctx }

	errCh := make(chan error, 1)
	go func() {
		zl.Info("server listening", zap.String("port", cfg.Port), zap.String("env", cfg.Env))
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}

	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// authMiddleware verifies Firebase ID tokens when credentials are configured
// and falls back to HMAC-signed JWTs otherwise.
func authMiddleware(ctx context.Context, cfg *config.Config, zl *zap.Logger) (echo.MiddlewareFunc, error) {
	if cfg.FirebaseCredentialsPath == "" {
		zl.Info("using JWT authentication")
		return middleware.JWTAuthMiddleware(cfg.JWTSecret), nil
	}
	app, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("initializing firebase: %w", err)
	}
	zl.Info("using Firebase authentication")
	return middleware.FirebaseAuthMiddleware(app.AuthClient), nil
}
