package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Kind identifies what triggered a notification.
type Kind string

const (
	KindPost       Kind = "post"
	KindMessage    Kind = "message"
	KindConnection Kind = "connection"

	// Reserved: no emitter produces these yet.
	KindLike    Kind = "like"
	KindComment Kind = "comment"
)

// Kinds returns the kinds that are counted separately on the counts endpoint.
func Kinds() []Kind {
	return []Kind{KindPost, KindMessage, KindConnection}
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindPost, KindMessage, KindConnection, KindLike, KindComment:
		return true
	}
	return false
}

// Notification is one event relevant to one recipient (MongoDB).
// Only Read ever changes after creation, and only from false to true.
type Notification struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Recipient  string             `json:"user" bson:"user"`
	Kind       Kind               `json:"type" bson:"type"`
	Actor      string             `json:"from_user,omitempty" bson:"from_user,omitempty"` // empty for system notifications
	// ActorProfile is resolved at read or push time and never stored.
	ActorProfile *UserCompact `json:"from_user_profile,omitempty" bson:"-"`
	SubjectRef string             `json:"subject_ref" bson:"subject_ref"`                 // post, message or connection id depending on Kind
	Text       string             `json:"text" bson:"text"`
	Metadata   Metadata           `json:"metadata" bson:"metadata"`
	Read       bool               `json:"read" bson:"read"`
	CreatedAt  time.Time          `json:"created_at" bson:"createdAt"`
}

// Metadata holds the kind-specific extra data. Exactly one variant is set,
// the one matching the notification's Kind.
type Metadata struct {
	Post       *PostMetadata       `json:"post,omitempty" bson:"post,omitempty"`
	Message    *MessageMetadata    `json:"message,omitempty" bson:"message,omitempty"`
	Connection *ConnectionMetadata `json:"connection,omitempty" bson:"connection,omitempty"`
}

// PostMetadata describes the post behind a KindPost notification.
type PostMetadata struct {
	PostType   string `json:"post_type" bson:"post_type"`
	IsItemPost bool   `json:"is_item_post" bson:"is_item_post"`
	ItemType   string `json:"item_type,omitempty" bson:"item_type,omitempty"`
	ItemName   string `json:"item_name,omitempty" bson:"item_name,omitempty"`
}

// MessageMetadata describes the message behind a KindMessage notification.
type MessageMetadata struct {
	MessageType string `json:"message_type" bson:"message_type"`
	Preview     string `json:"preview" bson:"preview"`
}

// ConnectionMetadata describes the request behind a KindConnection notification.
type ConnectionMetadata struct {
	Status string `json:"status" bson:"status"`
}

// Variant returns the kind implied by the populated metadata variant, or ""
// when none or more than one is set.
func (m Metadata) Variant() Kind {
	var kind Kind
	set := 0
	if m.Post != nil {
		kind = KindPost
		set++
	}
	if m.Message != nil {
		kind = KindMessage
		set++
	}
	if m.Connection != nil {
		kind = KindConnection
		set++
	}
	if set != 1 {
		return ""
	}
	return kind
}

// NotificationCounts holds unread counts per kind plus the overall total.
type NotificationCounts struct {
	Post       int64 `json:"post"`
	Message    int64 `json:"message"`
	Connection int64 `json:"connection"`
	Total      int64 `json:"total"`
}

// MarkByTypeRequest defines the request body for marking one kind as read
type MarkByTypeRequest struct {
	Type Kind `json:"type" validate:"required,oneof=post message connection"`
}
