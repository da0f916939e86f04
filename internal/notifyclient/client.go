// Package notifyclient keeps a local copy of a user's notifications in sync
// with the server: a bulk fetch plus counts, then a live event stream with
// automatic reconnect. Read acknowledgements go straight to the HTTP API.
package notifyclient

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/anonto42/findmate/backend/internal/models"
	"github.com/anonto42/findmate/backend/internal/realtime"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// State is the client's view of its live channel.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// APIError is a failed API call rendered from the {"success":false} envelope.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("notification api: %d %s", e.Status, e.Message)
}

// Options configure a Client.
type Options struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Backoff    Backoff
	Limit      int
	Logger     *zap.Logger

	// ResyncOnReconnect re-runs the bulk fetch before every reconnect so
	// notifications created while disconnected show up.
	ResyncOnReconnect bool

	// OnNotification, when set, is called for every new live notification.
	OnNotification func(models.Notification)
	// OnStateChange, when set, is called on every state transition.
	OnStateChange func(State)
}

// Client is safe for concurrent use.
type Client struct {
	opts    Options
	http    *http.Client
	backoff Backoff
	logger  *zap.Logger

	mu            sync.RWMutex
	state         State
	notifications []models.Notification
	seen          map[primitive.ObjectID]struct{}
	counts        models.NotificationCounts
}

// New creates a client. Without an explicit Backoff it retries every three seconds.
func New(opts Options) *Client {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	c := &Client{
		opts:    opts,
		http:    opts.HTTPClient,
		backoff: opts.Backoff,
		logger:  opts.Logger,
		seen:    make(map[primitive.ObjectID]struct{}),
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.backoff == nil {
		c.backoff = FixedBackoff{Delay: DefaultReconnectDelay}
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Notifications returns the local list, newest first.
func (c *Client) Notifications() []models.Notification {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Notification(nil), c.notifications...)
}

// Counts returns the local unread counters.
func (c *Client) Counts() models.NotificationCounts {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counts
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	c.mu.Unlock()
	if changed && c.opts.OnStateChange != nil {
		c.opts.OnStateChange(s)
	}
}

// Sync replaces local state with the server's recent notifications and counts.
func (c *Client) Sync(ctx context.Context) error {
	var list struct {
		Notifications []models.Notification `json:"notifications"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/notifications?limit="+strconv.Itoa(c.opts.Limit), &list); err != nil {
		return fmt.Errorf("fetching notifications: %w", err)
	}
	counts, err := c.fetchCounts(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifications = list.Notifications
	c.seen = make(map[primitive.ObjectID]struct{}, len(list.Notifications))
	for _, n := range list.Notifications {
		c.seen[n.ID] = struct{}{}
	}
	c.counts = counts
	return nil
}

// RefreshCounts replaces only the local counters with the server's.
func (c *Client) RefreshCounts(ctx context.Context) error {
	counts, err := c.fetchCounts(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.counts = counts
	c.mu.Unlock()
	return nil
}

func (c *Client) fetchCounts(ctx context.Context) (models.NotificationCounts, error) {
	var res struct {
		Counts models.NotificationCounts `json:"counts"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/notifications/counts", &res); err != nil {
		return models.NotificationCounts{}, fmt.Errorf("fetching counts: %w", err)
	}
	return res.Counts, nil
}

// Run syncs, opens the live stream and reconnects after every failure until
// ctx is done. It only returns ctx's error.
func (c *Client) Run(ctx context.Context) error {
	first := true
	for {
		if first || c.opts.ResyncOnReconnect {
			if err := c.Sync(ctx); err != nil {
				c.logger.Warn("sync failed", zap.Error(err))
			}
			first = false
		}

		err := c.stream(ctx)
		c.setState(Disconnected)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		delay := c.backoff.Duration()
		c.logger.Info("live channel lost, reconnecting", zap.Error(err), zap.Duration("delay", delay))

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// stream opens the event stream and applies frames until it fails.
func (c *Client) stream(ctx context.Context) error {
	c.setState(Connecting)

	req, err := c.newRequest(ctx, http.MethodGet, "/api/notifications/sse")
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return decodeError(res)
	}

	scanner := bufio.NewScanner(res.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue // blank separators and ": ping" comments
		}
		var f realtime.Frame
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &f); err != nil {
			c.logger.Warn("malformed frame", zap.Error(err))
			continue
		}
		c.handleFrame(f)
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return io.ErrUnexpectedEOF
}

func (c *Client) handleFrame(f realtime.Frame) {
	switch f.Type {
	case realtime.FrameConnected:
		c.backoff.Reset()
		c.setState(Connected)
	case realtime.FrameNewNotification:
		if f.Notification == nil {
			return
		}
		if c.apply(*f.Notification) && c.opts.OnNotification != nil {
			c.opts.OnNotification(*f.Notification)
		}
	}
}

// apply prepends n and bumps its counters unless it is already known.
func (c *Client) apply(n models.Notification) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.seen[n.ID]; dup {
		return false
	}
	c.seen[n.ID] = struct{}{}
	c.notifications = append([]models.Notification{n}, c.notifications...)
	if !n.Read {
		adjust(&c.counts, n.Kind, 1)
	}
	return true
}

// MarkAsRead acknowledges one notification and updates local state on success.
// Counters are only decremented for a notification held locally as unread;
// for any other id the prior read state is unknown and the counters are
// refetched instead.
func (c *Client) MarkAsRead(ctx context.Context, id string, kind models.Kind) error {
	if err := c.call(ctx, http.MethodPatch, "/api/notifications/"+url.PathEscape(id)+"/read", nil); err != nil {
		return err
	}

	if c.markLocal(id, kind) {
		return nil
	}
	if err := c.RefreshCounts(ctx); err != nil {
		c.logger.Warn("refreshing counts after mark-read", zap.String("notification_id", id), zap.Error(err))
	}
	return nil
}

// markLocal flips a held notification to read and reports whether id was held.
func (c *Client) markLocal(id string, kind models.Kind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.notifications {
		if c.notifications[i].ID.Hex() != id {
			continue
		}
		if !c.notifications[i].Read {
			c.notifications[i].Read = true
			adjust(&c.counts, kind, -1)
		}
		return true
	}
	return false
}

// MarkAllAsRead acknowledges every notification and clears local counters.
func (c *Client) MarkAllAsRead(ctx context.Context) error {
	if err := c.call(ctx, http.MethodPatch, "/api/notifications/read-all", nil); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.notifications {
		c.notifications[i].Read = true
	}
	c.counts = models.NotificationCounts{}
	return nil
}

// adjust moves the per-kind and total counters by delta, never below zero.
func adjust(counts *models.NotificationCounts, kind models.Kind, delta int64) {
	var field *int64
	switch kind {
	case models.KindPost:
		field = &counts.Post
	case models.KindMessage:
		field = &counts.Message
	case models.KindConnection:
		field = &counts.Connection
	}
	if field != nil && *field+delta >= 0 {
		*field += delta
	}
	if counts.Total+delta >= 0 {
		counts.Total += delta
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.opts.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	if c.opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.Token)
	}
	return req, nil
}

func (c *Client) call(ctx context.Context, method, path string, out interface{}) error {
	req, err := c.newRequest(ctx, method, path)
	if err != nil {
		return err
	}
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		return decodeError(res)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func decodeError(res *http.Response) error {
	apiErr := &APIError{Status: res.StatusCode, Message: http.StatusText(res.StatusCode)}
	var envelope struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(io.LimitReader(res.Body, 64*1024)).Decode(&envelope); err == nil && envelope.Message != "" {
		apiErr.Message = envelope.Message
	}
	return apiErr
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}
