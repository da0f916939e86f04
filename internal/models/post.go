package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Post types
const (
	PostTypeText          = "text"
	PostTypeImage         = "image"
	PostTypeTextWithImage = "text_with_image"
)

// Item types for lost & found reports
const (
	ItemTypeLost  = "lost"
	ItemTypeFound = "found"
)

// Post represents a feed post stored in MongoDB. Item posts are lost/found reports.
type Post struct {
	ID        primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	UserID    string             `json:"user_id" bson:"user"`
	Content   string             `json:"content" bson:"content"`
	ImageURLs []string           `json:"image_urls,omitempty" bson:"image_urls,omitempty"`
	PostType  string             `json:"post_type" bson:"post_type"`

	IsItemPost      bool   `json:"is_item_post" bson:"is_item_post"`
	ItemType        string `json:"item_type,omitempty" bson:"item_type,omitempty"`
	ItemName        string `json:"item_name,omitempty" bson:"item_name,omitempty"`
	ItemDescription string `json:"item_description,omitempty" bson:"item_description,omitempty"`
	FullName        string `json:"full_name,omitempty" bson:"full_name,omitempty"`
	Address         string `json:"address,omitempty" bson:"address,omitempty"`
	MobileNumber    string `json:"mobile_number,omitempty" bson:"mobile_number,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"createdAt"`
	UpdatedAt time.Time `json:"updated_at" bson:"updatedAt"`
}

// CreatePostRequest defines the request body for creating a new post
type CreatePostRequest struct {
	Content         string   `json:"content" validate:"max=2000"`
	ImageURLs       []string `json:"image_urls,omitempty" validate:"omitempty,dive,url"`
	IsItemPost      bool     `json:"is_item_post"`
	ItemType        string   `json:"item_type,omitempty" validate:"omitempty,oneof=lost found"`
	ItemName        string   `json:"item_name,omitempty" validate:"max=120"`
	ItemDescription string   `json:"item_description,omitempty" validate:"max=1000"`
	FullName        string   `json:"full_name,omitempty" validate:"max=120"`
	Address         string   `json:"address,omitempty" validate:"max=250"`
	MobileNumber    string   `json:"mobile_number,omitempty" validate:"max=30"`
}

// ItemComplete reports whether an item post carries the fields a report needs.
func (r CreatePostRequest) ItemComplete() bool {
	return !r.IsItemPost || (r.ItemType != "" && r.ItemName != "")
}

// PostType derives the stored post type from the request content.
func (r CreatePostRequest) PostType() string {
	switch {
	case len(r.ImageURLs) > 0 && r.Content != "":
		return PostTypeTextWithImage
	case len(r.ImageURLs) > 0:
		return PostTypeImage
	default:
		return PostTypeText
	}
}

// NotificationMetadata returns the metadata frozen into post notifications.
func (p *Post) NotificationMetadata() *PostMetadata {
	return &PostMetadata{
		PostType:   p.PostType,
		IsItemPost: p.IsItemPost,
		ItemType:   p.ItemType,
		ItemName:   p.ItemName,
	}
}
