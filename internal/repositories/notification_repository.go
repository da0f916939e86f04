package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anonto42/findmate/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	// ErrNotificationNotFound is returned when no notification matches both id and recipient.
	ErrNotificationNotFound = errors.New("notification not found")
	// ErrInvalidID is returned for ids that are not valid ObjectID hex strings.
	ErrInvalidID = errors.New("invalid id format")
)

// NotificationRepository defines the interface for notification operations
type NotificationRepository interface {
	CreateNotification(ctx context.Context, notification *models.Notification) error
	CreateNotifications(ctx context.Context, notifications []*models.Notification) error
	GetByRecipient(ctx context.Context, recipient string, limit int64) ([]models.Notification, error)
	CountUnread(ctx context.Context, recipient string) (int64, error)
	CountUnreadByKind(ctx context.Context, recipient string, kind models.Kind) (int64, error)
	MarkAsRead(ctx context.Context, id, recipient string) (*models.Notification, error)
	MarkAllAsRead(ctx context.Context, recipient string) (int64, error)
	MarkKindAsRead(ctx context.Context, recipient string, kind models.Kind) (int64, error)
}

// MongoNotificationRepository implements NotificationRepository for MongoDB
type MongoNotificationRepository struct {
	collection *mongo.Collection
}

// NewMongoNotificationRepository creates a new MongoNotificationRepository
func NewMongoNotificationRepository(db *mongo.Database) *MongoNotificationRepository {
	return &MongoNotificationRepository{collection: db.Collection("notifications")}
}

// EnsureIndexes creates the recipient/read/createdAt index used by every read path
func (r *MongoNotificationRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user", Value: 1}, {Key: "read", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("creating notification index: %w", err)
	}
	return nil
}

// prepare fills the id and timestamp of records that do not carry one yet
func prepare(n *models.Notification, now time.Time) {
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
}

// CreateNotification inserts a single notification
func (r *MongoNotificationRepository) CreateNotification(ctx context.Context, notification *models.Notification) error {
	prepare(notification, time.Now())
	if _, err := r.collection.InsertOne(ctx, notification); err != nil {
		return fmt.Errorf("inserting notification: %w", err)
	}
	return nil
}

// CreateNotifications inserts all notifications in one InsertMany call
func (r *MongoNotificationRepository) CreateNotifications(ctx context.Context, notifications []*models.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	now := time.Now()
	docs := make([]interface{}, len(notifications))
	for i, n := range notifications {
		prepare(n, now)
		docs[i] = n
	}
	if _, err := r.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("inserting %d notifications: %w", len(docs), err)
	}
	return nil
}

// GetByRecipient returns the most recent notifications of a user, newest first
func (r *MongoNotificationRepository) GetByRecipient(ctx context.Context, recipient string, limit int64) ([]models.Notification, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(limit)
	cursor, err := r.collection.Find(ctx, recipientFilter(recipient), findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	notifications := []models.Notification{}
	if err = cursor.All(ctx, &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

// CountUnread counts a user's unread notifications
func (r *MongoNotificationRepository) CountUnread(ctx context.Context, recipient string) (int64, error) {
	return r.collection.CountDocuments(ctx, unreadFilter(recipient))
}

// CountUnreadByKind counts a user's unread notifications of one kind
func (r *MongoNotificationRepository) CountUnreadByKind(ctx context.Context, recipient string, kind models.Kind) (int64, error) {
	return r.collection.CountDocuments(ctx, unreadKindFilter(recipient, kind))
}

// MarkAsRead marks one of the recipient's notifications as read and returns
// the updated record. Marking an already read notification succeeds without changes.
func (r *MongoNotificationRepository) MarkAsRead(ctx context.Context, id, recipient string) (*models.Notification, error) {
	filter, err := ownedFilter(id, recipient)
	if err != nil {
		return nil, err
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var notification models.Notification
	err = r.collection.FindOneAndUpdate(ctx, filter, markReadUpdate(), opts).Decode(&notification)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotificationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("marking notification read: %w", err)
	}
	return &notification, nil
}

// MarkAllAsRead marks every unread notification of the recipient as read
func (r *MongoNotificationRepository) MarkAllAsRead(ctx context.Context, recipient string) (int64, error) {
	res, err := r.collection.UpdateMany(ctx, unreadFilter(recipient), markReadUpdate())
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// MarkKindAsRead marks every unread notification of one kind as read
func (r *MongoNotificationRepository) MarkKindAsRead(ctx context.Context, recipient string, kind models.Kind) (int64, error) {
	res, err := r.collection.UpdateMany(ctx, unreadKindFilter(recipient, kind), markReadUpdate())
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func recipientFilter(recipient string) bson.M {
	return bson.M{"user": recipient}
}

func unreadFilter(recipient string) bson.M {
	return bson.M{"user": recipient, "read": false}
}

func unreadKindFilter(recipient string, kind models.Kind) bson.M {
	return bson.M{"user": recipient, "type": kind, "read": false}
}

// ownedFilter matches a notification only if it belongs to recipient
func ownedFilter(id, recipient string) (bson.M, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidID, err)
	}
	return bson.M{"_id": objID, "user": recipient}, nil
}

// markReadUpdate only ever sets read to true
func markReadUpdate() bson.M {
	return bson.M{"$set": bson.M{"read": true}}
}
