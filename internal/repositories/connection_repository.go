package repositories

import (
	"context"
	"errors"

	"github.com/anonto42/findmate/backend/internal/models"
	"gorm.io/gorm"
)

var (
	// ErrConnectionNotFound is returned when a connection request does not exist
	ErrConnectionNotFound = errors.New("connection request not found")
	// ErrConnectionPending is returned when a pending request already exists between two users
	ErrConnectionPending = errors.New("a pending connection request already exists between these users")
	// ErrAlreadyConnected is returned when two users are already connected
	ErrAlreadyConnected = errors.New("users are already connected")
)

// ConnectionRepository defines the interface for connection request operations
type ConnectionRepository interface {
	CreateConnection(ctx context.Context, conn *models.Connection) error
	GetConnectionByID(ctx context.Context, id string) (*models.Connection, error)
	GetPendingConnections(ctx context.Context, userID string) ([]models.Connection, error)
	UpdateConnectionStatus(ctx context.Context, id, status string) error
}

// PostgresConnectionRepository implements ConnectionRepository for PostgreSQL
type PostgresConnectionRepository struct {
	db *gorm.DB
}

// NewPostgresConnectionRepository creates a new PostgresConnectionRepository
func NewPostgresConnectionRepository(db *gorm.DB) *PostgresConnectionRepository {
	return &PostgresConnectionRepository{db: db}
}

// CreateConnection creates a pending connection request unless one already links the two users
func (r *PostgresConnectionRepository) CreateConnection(ctx context.Context, conn *models.Connection) error {
	var existing models.Connection
	err := r.db.WithContext(ctx).
		Where("(from_user_id = ? AND to_user_id = ?) OR (from_user_id = ? AND to_user_id = ?)",
			conn.FromUserID, conn.ToUserID, conn.ToUserID, conn.FromUserID).
		Where("status IN ?", []string{models.ConnectionPending, models.ConnectionAccepted}).
		First(&existing).Error

	switch {
	case err == nil && existing.Status == models.ConnectionPending:
		return ErrConnectionPending
	case err == nil:
		return ErrAlreadyConnected
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return err
	}

	conn.Status = models.ConnectionPending
	return r.db.WithContext(ctx).Create(conn).Error
}

// GetConnectionByID retrieves a connection request by ID
func (r *PostgresConnectionRepository) GetConnectionByID(ctx context.Context, id string) (*models.Connection, error) {
	var conn models.Connection
	if err := r.db.WithContext(ctx).First(&conn, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConnectionNotFound
		}
		return nil, err
	}
	return &conn, nil
}

// GetPendingConnections retrieves the pending requests addressed to a user
func (r *PostgresConnectionRepository) GetPendingConnections(ctx context.Context, userID string) ([]models.Connection, error) {
	conns := []models.Connection{}
	if err := r.db.WithContext(ctx).
		Where("to_user_id = ? AND status = ?", userID, models.ConnectionPending).
		Order("created_at DESC").
		Find(&conns).Error; err != nil {
		return nil, err
	}
	return conns, nil
}

// UpdateConnectionStatus updates the status of a connection request
func (r *PostgresConnectionRepository) UpdateConnectionStatus(ctx context.Context, id, status string) error {
	return r.db.WithContext(ctx).Model(&models.Connection{}).Where("id = ?", id).Update("status", status).Error
}
