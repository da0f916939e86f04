// Package notify turns committed domain writes into persisted notifications
// and best-effort live pushes.
package notify

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/anonto42/findmate/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Store persists notification records.
type Store interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	CreateNotifications(ctx context.Context, ns []*models.Notification) error
}

// UserDirectory resolves display names and fan-out recipients.
type UserDirectory interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	ListUserIDsExcept(ctx context.Context, excludedID string) ([]string, error)
}

// PostFinder loads the post behind a post notification.
type PostFinder interface {
	GetPostByID(ctx context.Context, id string) (*models.Post, error)
}

// MessageFinder loads the message behind a message notification.
type MessageFinder interface {
	GetMessageByID(ctx context.Context, id string) (*models.Message, error)
}

// Pusher delivers a persisted notification to a live channel, if any.
type Pusher interface {
	DispatchNotification(userID string, n *models.Notification)
}

const mediaPreview = "New media message"

// Config tunes the emitter.
type Config struct {
	PreviewLength int
	Timeout       time.Duration
}

// DefaultConfig returns the emitter defaults.
func DefaultConfig() Config {
	return Config{PreviewLength: 50, Timeout: 10 * time.Second}
}

// Emitter is called by domain handlers after their write commits. Its methods
// never return errors: every failure is logged and the caller's response is
// unaffected.
type Emitter struct {
	store    Store
	users    UserDirectory
	posts    PostFinder
	messages MessageFinder
	pusher   Pusher
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time
}

// NewEmitter creates an emitter.
func NewEmitter(store Store, users UserDirectory, posts PostFinder, messages MessageFinder, pusher Pusher, cfg Config, logger *zap.Logger) *Emitter {
	def := DefaultConfig()
	if cfg.PreviewLength <= 0 {
		cfg.PreviewLength = def.PreviewLength
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Emitter{
		store:    store,
		users:    users,
		posts:    posts,
		messages: messages,
		pusher:   pusher,
		cfg:      cfg,
		logger:   logger.Named("notify"),
		now:      time.Now,
	}
}

// SetClock overrides the time source used for CreatedAt.
func (e *Emitter) SetClock(now func() time.Time) {
	e.now = now
}

// detach keeps fan-out running after the triggering request has been answered.
func (e *Emitter) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), e.cfg.Timeout)
}

// NotifyNewPost notifies every user except the author about a new post.
func (e *Emitter) NotifyNewPost(ctx context.Context, postID, authorID string) {
	ctx, cancel := e.detach(ctx)
	defer cancel()
	log := e.logger.With(zap.String("event", string(models.KindPost)), zap.String("post_id", postID))

	post, err := e.posts.GetPostByID(ctx, postID)
	if err != nil {
		log.Warn("post not resolvable, skipping fan-out", zap.Error(err))
		return
	}
	author, err := e.users.GetUserByID(ctx, authorID)
	if err != nil {
		log.Warn("author not resolvable, skipping fan-out", zap.String("author_id", authorID), zap.Error(err))
		return
	}
	recipients, err := e.users.ListUserIDsExcept(ctx, authorID)
	if err != nil {
		log.Error("listing recipients", zap.Error(err))
		return
	}
	if len(recipients) == 0 {
		return
	}

	text := fmt.Sprintf("%s published a new post", author.DisplayName())
	meta := post.NotificationMetadata()
	profile := compact(author)
	created := e.now()

	batch := make([]*models.Notification, 0, len(recipients))
	for _, recipient := range recipients {
		if recipient == authorID {
			continue
		}
		n := e.newNotification(recipient, models.KindPost, authorID, postID, text,
			models.Metadata{Post: meta}, created)
		n.ActorProfile = profile
		batch = append(batch, n)
	}

	if err := e.store.CreateNotifications(ctx, batch); err != nil {
		log.Error("persisting post notifications", zap.Int("recipients", len(batch)), zap.Error(err))
		return
	}
	for _, n := range batch {
		e.pusher.DispatchNotification(n.Recipient, n)
	}
	log.Debug("post fan-out complete", zap.Int("recipients", len(batch)))
}

// NotifyNewMessage notifies the addressee of a direct message.
func (e *Emitter) NotifyNewMessage(ctx context.Context, messageID, senderID, recipientID string) {
	ctx, cancel := e.detach(ctx)
	defer cancel()
	log := e.logger.With(zap.String("event", string(models.KindMessage)), zap.String("message_id", messageID))

	msg, err := e.messages.GetMessageByID(ctx, messageID)
	if err != nil {
		log.Warn("message not resolvable, skipping notification", zap.Error(err))
		return
	}
	sender, err := e.users.GetUserByID(ctx, senderID)
	if err != nil {
		log.Warn("sender not resolvable, skipping notification", zap.String("sender_id", senderID), zap.Error(err))
		return
	}

	messageType := msg.MessageType
	if messageType == "" {
		messageType = models.MessageTypeText
	}
	n := e.newNotification(recipientID, models.KindMessage, senderID, messageID,
		fmt.Sprintf("%s sent you a message", sender.DisplayName()),
		models.Metadata{Message: &models.MessageMetadata{
			MessageType: messageType,
			Preview:     Preview(msg.Text, e.cfg.PreviewLength),
		}}, e.now())
	n.ActorProfile = compact(sender)

	e.persistAndPush(ctx, log, n)
}

// NotifyConnectionRequest notifies the addressee of a new connection request.
func (e *Emitter) NotifyConnectionRequest(ctx context.Context, connectionID, senderID, recipientID string) {
	ctx, cancel := e.detach(ctx)
	defer cancel()
	log := e.logger.With(zap.String("event", string(models.KindConnection)), zap.String("connection_id", connectionID))

	sender, err := e.users.GetUserByID(ctx, senderID)
	if err != nil {
		log.Warn("sender not resolvable, skipping notification", zap.String("sender_id", senderID), zap.Error(err))
		return
	}

	n := e.newNotification(recipientID, models.KindConnection, senderID, connectionID,
		fmt.Sprintf("%s wants to connect with you", sender.DisplayName()),
		models.Metadata{Connection: &models.ConnectionMetadata{Status: models.ConnectionPending}}, e.now())
	n.ActorProfile = compact(sender)

	e.persistAndPush(ctx, log, n)
}

func (e *Emitter) persistAndPush(ctx context.Context, log *zap.Logger, n *models.Notification) {
	if err := e.store.CreateNotification(ctx, n); err != nil {
		log.Error("persisting notification", zap.String("recipient", n.Recipient), zap.Error(err))
		return
	}
	e.pusher.DispatchNotification(n.Recipient, n)
}

func (e *Emitter) newNotification(recipient string, kind models.Kind, actor, subject, text string, meta models.Metadata, created time.Time) *models.Notification {
	return &models.Notification{
		ID:         primitive.NewObjectID(),
		Recipient:  recipient,
		Kind:       kind,
		Actor:      actor,
		SubjectRef: subject,
		Text:       text,
		Metadata:   meta,
		CreatedAt:  created,
	}
}

func compact(u *models.User) *models.UserCompact {
	c := u.ToCompact()
	return &c
}

// Preview returns the first limit runes of text, or a placeholder for media-only messages.
func Preview(text string, limit int) string {
	if text == "" {
		return mediaPreview
	}
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	return string([]rune(text)[:limit])
}
