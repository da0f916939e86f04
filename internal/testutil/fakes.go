// Package testutil provides in-memory stand-ins for the stores and the live
// pusher so handlers and the emitter can be tested without databases.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/anonto42/findmate/backend/internal/models"
	"github.com/anonto42/findmate/backend/internal/repositories"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NotificationStore is an in-memory repositories.NotificationRepository.
type NotificationStore struct {
	mu      sync.Mutex
	records []*models.Notification
	inserts int

	// FailCreate, when set, is returned by every create call.
	FailCreate error
}

var _ repositories.NotificationRepository = (*NotificationStore)(nil)

// NewNotificationStore creates an empty store.
func NewNotificationStore() *NotificationStore {
	return &NotificationStore{}
}

func (s *NotificationStore) add(n *models.Notification) {
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	cp := *n
	cp.ActorProfile = nil // not persisted
	s.records = append(s.records, &cp)
}

func (s *NotificationStore) CreateNotification(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailCreate != nil {
		return s.FailCreate
	}
	s.inserts++
	s.add(n)
	return nil
}

func (s *NotificationStore) CreateNotifications(_ context.Context, ns []*models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailCreate != nil {
		return s.FailCreate
	}
	s.inserts++
	for _, n := range ns {
		s.add(n)
	}
	return nil
}

func (s *NotificationStore) GetByRecipient(_ context.Context, recipient string, limit int64) ([]models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Notification{}
	for _, n := range s.records {
		if n.Recipient == recipient {
			out = append(out, *n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *NotificationStore) CountUnread(_ context.Context, recipient string) (int64, error) {
	return s.count(recipient, ""), nil
}

func (s *NotificationStore) CountUnreadByKind(_ context.Context, recipient string, kind models.Kind) (int64, error) {
	return s.count(recipient, kind), nil
}

func (s *NotificationStore) count(recipient string, kind models.Kind) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var c int64
	for _, n := range s.records {
		if n.Recipient == recipient && !n.Read && (kind == "" || n.Kind == kind) {
			c++
		}
	}
	return c
}

func (s *NotificationStore) MarkAsRead(_ context.Context, id, recipient string) (*models.Notification, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, repositories.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.records {
		if n.ID == objID && n.Recipient == recipient {
			n.Read = true
			cp := *n
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotificationNotFound
}

func (s *NotificationStore) MarkAllAsRead(_ context.Context, recipient string) (int64, error) {
	return s.markWhere(recipient, ""), nil
}

func (s *NotificationStore) MarkKindAsRead(_ context.Context, recipient string, kind models.Kind) (int64, error) {
	return s.markWhere(recipient, kind), nil
}

func (s *NotificationStore) markWhere(recipient string, kind models.Kind) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var modified int64
	for _, n := range s.records {
		if n.Recipient == recipient && !n.Read && (kind == "" || n.Kind == kind) {
			n.Read = true
			modified++
		}
	}
	return modified
}

// All returns copies of every stored record in insertion order.
func (s *NotificationStore) All() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Notification, len(s.records))
	for i, n := range s.records {
		out[i] = *n
	}
	return out
}

// ForRecipient returns copies of the records addressed to recipient.
func (s *NotificationStore) ForRecipient(recipient string) []models.Notification {
	out := []models.Notification{}
	for _, n := range s.All() {
		if n.Recipient == recipient {
			out = append(out, n)
		}
	}
	return out
}

// Inserts returns how many create calls succeeded.
func (s *NotificationStore) Inserts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inserts
}

// Users is an in-memory user directory.
type Users struct {
	mu      sync.Mutex
	users   map[string]*models.User
	batches [][]string
}

var _ repositories.UserRepository = (*Users)(nil)

// NewUsers creates a directory holding users.
func NewUsers(users ...*models.User) *Users {
	u := &Users{users: make(map[string]*models.User)}
	for _, user := range users {
		u.users[user.ID] = user
	}
	return u
}

func (u *Users) GetUserByID(_ context.Context, id string) (*models.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	user, ok := u.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

func (u *Users) GetUsersByIDs(_ context.Context, ids []string) ([]models.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.batches = append(u.batches, append([]string(nil), ids...))
	out := []models.User{}
	for _, id := range ids {
		if user, ok := u.users[id]; ok {
			out = append(out, *user)
		}
	}
	return out, nil
}

// Batches returns the id lists passed to GetUsersByIDs, in call order.
func (u *Users) Batches() [][]string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([][]string(nil), u.batches...)
}

func (u *Users) ListUserIDsExcept(_ context.Context, excludedID string) ([]string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	ids := []string{}
	for id := range u.users {
		if id != excludedID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Posts is an in-memory post repository.
type Posts struct {
	mu    sync.Mutex
	posts []*models.Post
}

var _ repositories.PostRepository = (*Posts)(nil)

// NewPosts creates an empty post repository.
func NewPosts() *Posts {
	return &Posts{}
}

func (p *Posts) CreatePost(_ context.Context, post *models.Post) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	post.ID = primitive.NewObjectID()
	post.CreatedAt = time.Now()
	post.UpdatedAt = post.CreatedAt
	cp := *post
	p.posts = append(p.posts, &cp)
	return nil
}

func (p *Posts) GetPostByID(_ context.Context, id string) (*models.Post, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, repositories.ErrInvalidID
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, post := range p.posts {
		if post.ID == objID {
			cp := *post
			return &cp, nil
		}
	}
	return nil, repositories.ErrPostNotFound
}

func (p *Posts) ListPosts(_ context.Context, filter repositories.PostFilter, skip, limit int64) ([]models.Post, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := []models.Post{}
	for i := len(p.posts) - 1; i >= 0; i-- {
		post := p.posts[i]
		if filter.UserID != "" && post.UserID != filter.UserID {
			continue
		}
		if filter.ItemType != "" && (!post.IsItemPost || post.ItemType != filter.ItemType) {
			continue
		}
		out = append(out, *post)
	}
	if skip >= int64(len(out)) {
		return []models.Post{}, nil
	}
	out = out[skip:]
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Messages is an in-memory message repository.
type Messages struct {
	mu       sync.Mutex
	messages []*models.Message
}

var _ repositories.MessageRepository = (*Messages)(nil)

// NewMessages creates an empty message repository.
func NewMessages() *Messages {
	return &Messages{}
}

func (m *Messages) CreateMessage(_ context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = primitive.NewObjectID()
	msg.CreatedAt = time.Now()
	cp := *msg
	m.messages = append(m.messages, &cp)
	return nil
}

func (m *Messages) GetMessageByID(_ context.Context, id string) (*models.Message, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, repositories.ErrInvalidID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.messages {
		if msg.ID == objID {
			cp := *msg
			return &cp, nil
		}
	}
	return nil, repositories.ErrMessageNotFound
}

func (m *Messages) GetConversation(_ context.Context, userA, userB string, limit int64) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Message{}
	for _, msg := range m.messages {
		if (msg.FromUserID == userA && msg.ToUserID == userB) || (msg.FromUserID == userB && msg.ToUserID == userA) {
			out = append(out, *msg)
		}
	}
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Connections is an in-memory connection repository.
type Connections struct {
	mu    sync.Mutex
	conns []*models.Connection
}

var _ repositories.ConnectionRepository = (*Connections)(nil)

// NewConnections creates an empty connection repository.
func NewConnections() *Connections {
	return &Connections{}
}

func (c *Connections) CreateConnection(_ context.Context, conn *models.Connection) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.conns {
		linked := (existing.FromUserID == conn.FromUserID && existing.ToUserID == conn.ToUserID) ||
			(existing.FromUserID == conn.ToUserID && existing.ToUserID == conn.FromUserID)
		if !linked {
			continue
		}
		switch existing.Status {
		case models.ConnectionPending:
			return repositories.ErrConnectionPending
		case models.ConnectionAccepted:
			return repositories.ErrAlreadyConnected
		}
	}
	if conn.ID == "" {
		conn.ID = primitive.NewObjectID().Hex()
	}
	conn.Status = models.ConnectionPending
	conn.CreatedAt = time.Now()
	conn.UpdatedAt = conn.CreatedAt
	cp := *conn
	c.conns = append(c.conns, &cp)
	return nil
}

func (c *Connections) GetConnectionByID(_ context.Context, id string) (*models.Connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, conn := range c.conns {
		if conn.ID == id {
			cp := *conn
			return &cp, nil
		}
	}
	return nil, repositories.ErrConnectionNotFound
}

func (c *Connections) GetPendingConnections(_ context.Context, userID string) ([]models.Connection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := []models.Connection{}
	for _, conn := range c.conns {
		if conn.ToUserID == userID && conn.Status == models.ConnectionPending {
			out = append(out, *conn)
		}
	}
	return out, nil
}

func (c *Connections) UpdateConnectionStatus(_ context.Context, id, status string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, conn := range c.conns {
		if conn.ID == id {
			conn.Status = status
			conn.UpdatedAt = time.Now()
			return nil
		}
	}
	return repositories.ErrConnectionNotFound
}

// Push is one live push recorded by Pusher.
type Push struct {
	UserID       string
	Notification models.Notification
}

// Pusher records every DispatchNotification call and can mark users online.
type Pusher struct {
	mu     sync.Mutex
	online map[string]bool
	pushes []Push
}

// NewPusher creates a pusher for which only the given users are online.
// With no users every recipient counts as online.
func NewPusher(online ...string) *Pusher {
	p := &Pusher{}
	if len(online) > 0 {
		p.online = make(map[string]bool, len(online))
		for _, id := range online {
			p.online[id] = true
		}
	}
	return p
}

func (p *Pusher) DispatchNotification(userID string, n *models.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.online != nil && !p.online[userID] {
		return
	}
	p.pushes = append(p.pushes, Push{UserID: userID, Notification: *n})
}

// Pushes returns every delivered push in order.
func (p *Pusher) Pushes() []Push {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Push(nil), p.pushes...)
}

// PushesTo returns the pushes delivered to userID.
func (p *Pusher) PushesTo(userID string) []Push {
	out := []Push{}
	for _, push := range p.Pushes() {
		if push.UserID == userID {
			out = append(out, push)
		}
	}
	return out
}
