package models

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// User is the read-only profile view the notification service needs (PostgreSQL).
// Profiles are owned by the profile service; this service never writes them.
type User struct {
	ID             string    `json:"id" gorm:"primaryKey;size:64"`
	FullName       string    `json:"full_name"`
	Username       string    `json:"username" gorm:"uniqueIndex"`
	ProfilePicture string    `json:"profile_picture"`
	CreatedAt      time.Time `json:"created_at"`
}

// UserCompact is the slim user shape embedded in responses
type UserCompact struct {
	ID             string `json:"id"`
	FullName       string `json:"full_name"`
	Username       string `json:"username"`
	ProfilePicture string `json:"profile_picture"`
}

// ToCompact returns the compact representation of the user
func (u *User) ToCompact() UserCompact {
	return UserCompact{
		ID:             u.ID,
		FullName:       u.FullName,
		Username:       u.Username,
		ProfilePicture: u.ProfilePicture,
	}
}

// DisplayName returns the name shown in notification texts
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	if u.Username != "" {
		return u.Username
	}
	return "Someone"
}

// JwtCustomClaims are custom claims extending standard jwt.RegisteredClaims
type JwtCustomClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}
