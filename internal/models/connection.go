package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Connection request statuses
const (
	ConnectionPending  = "pending"
	ConnectionAccepted = "accepted"
	ConnectionRejected = "rejected"
)

// Connection is a connection request between two users (PostgreSQL)
type Connection struct {
	ID         string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	FromUserID string    `json:"from_user_id" gorm:"index;size:64"`
	ToUserID   string    `json:"to_user_id" gorm:"index;size:64"`
	Status     string    `json:"status" gorm:"type:varchar(20);default:'pending'"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID when none is set
func (c *Connection) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// CreateConnectionRequest defines the request body for sending a connection request
type CreateConnectionRequest struct {
	ToUserID string `json:"to_user_id" validate:"required"`
}

// UpdateConnectionRequest defines the request body for accepting/rejecting a connection request
type UpdateConnectionRequest struct {
	Status string `json:"status" validate:"required,oneof=accepted rejected"`
}
