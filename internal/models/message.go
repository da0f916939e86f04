package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message types
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
)

// Message is a direct message between two users (MongoDB)
type Message struct {
	ID          primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	FromUserID  string             `json:"from_user_id" bson:"from_user_id"`
	ToUserID    string             `json:"to_user_id" bson:"to_user_id"`
	Text        string             `json:"text" bson:"text"`
	MessageType string             `json:"message_type" bson:"message_type"`
	MediaURL    string             `json:"media_url,omitempty" bson:"media_url,omitempty"`
	Seen        bool               `json:"seen" bson:"seen"`
	CreatedAt   time.Time          `json:"created_at" bson:"createdAt"`
}

// SendMessageRequest defines the request body for sending a message
type SendMessageRequest struct {
	ToUserID string `json:"to_user_id" validate:"required"`
	Text     string `json:"text" validate:"required_without=MediaURL,max=4000"`
	MediaURL string `json:"media_url,omitempty" validate:"omitempty,url"`
}
