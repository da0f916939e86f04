package router_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/anonto42/findmate/backend/internal/handlers"
	"github.com/anonto42/findmate/backend/internal/middleware"
	"github.com/anonto42/findmate/backend/internal/models"
	"github.com/anonto42/findmate/backend/internal/notify"
	"github.com/anonto42/findmate/backend/internal/realtime"
	"github.com/anonto42/findmate/backend/internal/router"
	"github.com/anonto42/findmate/backend/internal/testutil"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// headerAuth trusts an X-User header; tokens are covered by the middleware tests.
func headerAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user := c.Request().Header.Get("X-User")
		if user == "" {
			user = c.QueryParam("user")
		}
		if user == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Missing Authorization header")
		}
		c.Set(middleware.ContextUserID, user)
		return next(c)
	}
}

type app struct {
	e        *echo.Echo
	store    *testutil.NotificationStore
	posts    *testutil.Posts
	messages *testutil.Messages
	conns    *testutil.Connections
	users    *testutil.Users
	registry *realtime.Registry
}

func newApp(t *testing.T) *app {
	t.Helper()
	a := &app{
		store:    testutil.NewNotificationStore(),
		posts:    testutil.NewPosts(),
		messages: testutil.NewMessages(),
		conns:    testutil.NewConnections(),
		users: testutil.NewUsers(
			&models.User{ID: "A", FullName: "Alice"},
			&models.User{ID: "B", FullName: "Bob"},
			&models.User{ID: "C", FullName: "Carol"},
			&models.User{ID: "D", FullName: "Dan"},
		),
		registry: realtime.NewRegistry(),
	}
	a.e = router.New(router.Deps{
		Notifications: a.store,
		Posts:         a.posts,
		Messages:      a.messages,
		Connections:   a.conns,
		Users:         a.users,
		Registry:      a.registry,
		Auth:          headerAuth,
		Stream:        handlers.StreamConfig{BufferSize: 8},
		Notify:        notify.DefaultConfig(),
	})
	return a
}

type response struct {
	Success       bool                      `json:"success"`
	Message       string                    `json:"message"`
	Notifications []models.Notification     `json:"notifications"`
	UnreadCount   int64                     `json:"unreadCount"`
	Counts        models.NotificationCounts `json:"counts"`
	Modified      int64                     `json:"modified"`
	Notification  *models.Notification      `json:"notification"`
	Data          json.RawMessage           `json:"data"`
}

func (a *app) do(t *testing.T, method, path, user, body string) (int, response) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if user != "" {
		req.Header.Set("X-User", user)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)

	var res response
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res), rec.Body.String())
	}
	return rec.Code, res
}

func (a *app) createPost(t *testing.T, author string) string {
	t.Helper()
	code, res := a.do(t, http.MethodPost, "/api/posts", author, `{"content":"found a blue umbrella","is_item_post":true,"item_type":"found","item_name":"umbrella"}`)
	require.Equal(t, http.StatusCreated, code)
	var post models.Post
	require.NoError(t, json.Unmarshal(res.Data, &post))
	return post.ID.Hex()
}

func TestHealth(t *testing.T) {
	a := newApp(t)
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"live_streams":0`)
}

func TestUnauthenticatedRequestsUseErrorEnvelope(t *testing.T) {
	a := newApp(t)

	code, res := a.do(t, http.MethodGet, "/api/notifications", "", "")

	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, res.Success)
	assert.Equal(t, "Missing Authorization header", res.Message)
}

func TestCreatePost_NotifiesEveryoneElse(t *testing.T) {
	a := newApp(t)
	postID := a.createPost(t, "A")

	code, res := a.do(t, http.MethodGet, "/api/notifications", "B", "")
	require.Equal(t, http.StatusOK, code)
	assert.True(t, res.Success)
	require.Len(t, res.Notifications, 1)
	assert.Equal(t, postID, res.Notifications[0].SubjectRef)
	assert.Equal(t, "Alice published a new post", res.Notifications[0].Text)
	assert.Equal(t, int64(1), res.UnreadCount)
	assert.Equal(t, &models.UserCompact{ID: "A", FullName: "Alice"}, res.Notifications[0].ActorProfile)

	_, res = a.do(t, http.MethodGet, "/api/notifications", "A", "")
	assert.Empty(t, res.Notifications)
	assert.Len(t, a.store.All(), 3)
}

func TestCreatePost_IncompleteItemRejected(t *testing.T) {
	a := newApp(t)

	code, res := a.do(t, http.MethodPost, "/api/posts", "A", `{"content":"lost","is_item_post":true,"item_type":"lost"}`)

	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, res.Success)
	assert.Empty(t, a.store.All())
}

func TestCreatePost_StoreFailureDoesNotFailRequest(t *testing.T) {
	a := newApp(t)
	a.store.FailCreate = assert.AnError

	code, _ := a.do(t, http.MethodPost, "/api/posts", "A", `{"content":"hello"}`)

	assert.Equal(t, http.StatusCreated, code)
	assert.Empty(t, a.store.All())
}

func TestGetNotifications_ActorsResolvedOncePerUser(t *testing.T) {
	a := newApp(t)
	for _, actor := range []string{"A", "C", "A", "ghost", ""} {
		require.NoError(t, a.store.CreateNotification(context.Background(), &models.Notification{
			Recipient: "B",
			Actor:     actor,
			Kind:      models.KindMessage,
		}))
	}

	code, res := a.do(t, http.MethodGet, "/api/notifications", "B", "")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, res.Notifications, 5)

	names := map[string]string{}
	for _, n := range res.Notifications {
		if n.ActorProfile == nil {
			assert.Contains(t, []string{"ghost", ""}, n.Actor)
			continue
		}
		assert.Equal(t, n.Actor, n.ActorProfile.ID)
		names[n.Actor] = n.ActorProfile.FullName
	}
	assert.Equal(t, map[string]string{"A": "Alice", "C": "Carol"}, names)

	require.Len(t, a.users.Batches(), 1)
	assert.ElementsMatch(t, []string{"A", "C", "ghost"}, a.users.Batches()[0])
}

func TestGetNotifications_LimitIsCapped(t *testing.T) {
	a := newApp(t)
	for i := 0; i < 55; i++ {
		require.NoError(t, a.store.CreateNotification(context.Background(), &models.Notification{
			Recipient: "B",
			Kind:      models.KindPost,
			CreatedAt: time.Now().Add(time.Duration(i) * time.Second),
		}))
	}

	_, res := a.do(t, http.MethodGet, "/api/notifications", "B", "")
	assert.Len(t, res.Notifications, 20)
	assert.True(t, res.Notifications[0].CreatedAt.After(res.Notifications[1].CreatedAt))

	_, res = a.do(t, http.MethodGet, "/api/notifications?limit=500", "B", "")
	assert.Len(t, res.Notifications, 50)
	assert.Equal(t, int64(55), res.UnreadCount)
}

func TestCounts_MatchStore(t *testing.T) {
	a := newApp(t)
	a.createPost(t, "A")
	a.createPost(t, "C")
	code, _ := a.do(t, http.MethodPost, "/api/messages", "A", `{"to_user_id":"B","text":"is this yours?"}`)
	require.Equal(t, http.StatusCreated, code)
	code, _ = a.do(t, http.MethodPost, "/api/connections", "D", `{"to_user_id":"B"}`)
	require.Equal(t, http.StatusCreated, code)

	_, res := a.do(t, http.MethodGet, "/api/notifications/counts", "B", "")

	ctx := context.Background()
	for kind, got := range map[models.Kind]int64{
		models.KindPost:       res.Counts.Post,
		models.KindMessage:    res.Counts.Message,
		models.KindConnection: res.Counts.Connection,
	} {
		want, err := a.store.CountUnreadByKind(ctx, "B", kind)
		require.NoError(t, err)
		assert.Equal(t, want, got, kind)
	}
	total, err := a.store.CountUnread(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, total, res.Counts.Total)
	assert.Equal(t, models.NotificationCounts{Post: 2, Message: 1, Connection: 1, Total: 4}, res.Counts)
}

func TestMarkAsRead_IsIdempotentAndScoped(t *testing.T) {
	a := newApp(t)
	a.createPost(t, "A")
	id := a.store.ForRecipient("B")[0].ID.Hex()

	for i := 0; i < 2; i++ {
		code, res := a.do(t, http.MethodPatch, "/api/notifications/"+id+"/read", "B", "")
		assert.Equal(t, http.StatusOK, code)
		assert.True(t, res.Success)
		require.NotNil(t, res.Notification)
		assert.Equal(t, id, res.Notification.ID.Hex())
		assert.True(t, res.Notification.Read)
		assert.Equal(t, "B", res.Notification.Recipient)
		assert.Equal(t, &models.UserCompact{ID: "A", FullName: "Alice"}, res.Notification.ActorProfile)
	}
	assert.True(t, a.store.ForRecipient("B")[0].Read)

	code, res := a.do(t, http.MethodPatch, "/api/notifications/"+id+"/read", "C", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, res.Success)

	code, _ = a.do(t, http.MethodPatch, "/api/notifications/not-an-id/read", "B", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestMarkAllAsRead_OnlyTouchesCaller(t *testing.T) {
	a := newApp(t)
	a.createPost(t, "A")
	a.createPost(t, "A")

	code, res := a.do(t, http.MethodPatch, "/api/notifications/read-all", "B", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(2), res.Modified)

	unreadB, _ := a.store.CountUnread(context.Background(), "B")
	unreadC, _ := a.store.CountUnread(context.Background(), "C")
	assert.Zero(t, unreadB)
	assert.Equal(t, int64(2), unreadC)

	_, res = a.do(t, http.MethodPatch, "/api/notifications/read-all", "B", "")
	assert.Zero(t, res.Modified)
}

func TestMarkTypeAsRead(t *testing.T) {
	a := newApp(t)
	a.createPost(t, "A")
	code, _ := a.do(t, http.MethodPost, "/api/messages", "A", `{"to_user_id":"B","text":"hi"}`)
	require.Equal(t, http.StatusCreated, code)

	code, res := a.do(t, http.MethodPatch, "/api/notifications/read-by-type", "B", `{"type":"message"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(1), res.Modified)

	_, res = a.do(t, http.MethodGet, "/api/notifications/counts", "B", "")
	assert.Equal(t, models.NotificationCounts{Post: 1, Total: 1}, res.Counts)

	code, res = a.do(t, http.MethodPatch, "/api/notifications/read-by-type", "B", `{"type":"like"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, res.Success)
}

func TestSendMessage_TwiceGivesTwoNotifications(t *testing.T) {
	a := newApp(t)
	for _, text := range []string{"first", "second"} {
		code, _ := a.do(t, http.MethodPost, "/api/messages", "A", `{"to_user_id":"B","text":"`+text+`"}`)
		require.Equal(t, http.StatusCreated, code)
	}

	got := a.store.ForRecipient("B")
	require.Len(t, got, 2)
	assert.Empty(t, a.store.ForRecipient("A"))
	for _, n := range got {
		code, _ := a.do(t, http.MethodPatch, "/api/notifications/"+n.ID.Hex()+"/read", "B", "")
		assert.Equal(t, http.StatusOK, code)
	}
}

func TestSendMessage_Validation(t *testing.T) {
	a := newApp(t)

	code, _ := a.do(t, http.MethodPost, "/api/messages", "A", `{"to_user_id":"B"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = a.do(t, http.MethodPost, "/api/messages", "A", `{"to_user_id":"A","text":"me"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestUserProfiles(t *testing.T) {
	a := newApp(t)

	code, res := a.do(t, http.MethodGet, "/api/users/me", "B", "")
	require.Equal(t, http.StatusOK, code)
	var me models.UserCompact
	require.NoError(t, json.Unmarshal(res.Data, &me))
	assert.Equal(t, models.UserCompact{ID: "B", FullName: "Bob"}, me)

	code, res = a.do(t, http.MethodGet, "/api/users/A", "B", "")
	require.Equal(t, http.StatusOK, code)
	var other models.UserCompact
	require.NoError(t, json.Unmarshal(res.Data, &other))
	assert.Equal(t, "Alice", other.FullName)

	code, res = a.do(t, http.MethodGet, "/api/users/Z", "B", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "User profile not found", res.Message)
}

func TestConnections(t *testing.T) {
	a := newApp(t)

	code, res := a.do(t, http.MethodPost, "/api/connections", "A", `{"to_user_id":"B"}`)
	require.Equal(t, http.StatusCreated, code)
	var conn models.Connection
	require.NoError(t, json.Unmarshal(res.Data, &conn))

	notes := a.store.ForRecipient("B")
	require.Len(t, notes, 1)
	assert.Equal(t, conn.ID, notes[0].SubjectRef)
	assert.Equal(t, models.ConnectionPending, notes[0].Metadata.Connection.Status)

	code, _ = a.do(t, http.MethodPost, "/api/connections", "B", `{"to_user_id":"A"}`)
	assert.Equal(t, http.StatusConflict, code)

	code, _ = a.do(t, http.MethodPost, "/api/connections", "A", `{"to_user_id":"nobody"}`)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = a.do(t, http.MethodPatch, "/api/connections/"+conn.ID+"/status", "A", `{"status":"accepted"}`)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = a.do(t, http.MethodPatch, "/api/connections/"+conn.ID+"/status", "B", `{"status":"accepted"}`)
	assert.Equal(t, http.StatusOK, code)

	code, _ = a.do(t, http.MethodPatch, "/api/connections/"+conn.ID+"/status", "B", `{"status":"rejected"}`)
	assert.Equal(t, http.StatusConflict, code)
}

// readFrame reads one "data: ..." frame, skipping heartbeat comments.
func readFrame(t *testing.T, r *bufio.Reader) realtime.Frame {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var f realtime.Frame
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &f))
		return f
	}
}

func openStream(t *testing.T, srv *httptest.Server, path, user string) (*http.Response, *bufio.Reader) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, srv.URL+path, nil)
	require.NoError(t, err)
	req.Header.Set("X-User", user)
	res, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { res.Body.Close() })
	return res, bufio.NewReader(res.Body)
}

func TestStream_LiveDeliveryScenario(t *testing.T) {
	a := newApp(t)
	srv := httptest.NewServer(a.e)
	t.Cleanup(srv.Close)

	resB, rb := openStream(t, srv, "/api/notifications/sse", "B")
	require.Equal(t, http.StatusOK, resB.StatusCode)
	assert.Equal(t, "text/event-stream", resB.Header.Get("Content-Type"))
	assert.Equal(t, realtime.FrameConnected, readFrame(t, rb).Type)

	_, rc := openStream(t, srv, "/api/notifications/sse/C", "C")
	assert.Equal(t, realtime.FrameConnected, readFrame(t, rc).Type)

	require.Eventually(t, func() bool { return a.registry.Len() == 2 }, time.Second, 5*time.Millisecond)

	postID := a.createPost(t, "A")

	for _, r := range []*bufio.Reader{rb, rc} {
		f := readFrame(t, r)
		assert.Equal(t, realtime.FrameNewNotification, f.Type)
		require.NotNil(t, f.Notification)
		assert.Equal(t, postID, f.Notification.SubjectRef)
		assert.False(t, f.Notification.ID.IsZero())
		assert.Equal(t, &models.UserCompact{ID: "A", FullName: "Alice"}, f.Notification.ActorProfile)
	}

	// D was offline and still finds the notification by fetching.
	_, res := a.do(t, http.MethodGet, "/api/notifications", "D", "")
	require.Len(t, res.Notifications, 1)
	assert.Equal(t, postID, res.Notifications[0].SubjectRef)
	assert.Equal(t, int64(1), res.UnreadCount)
}

func TestStream_OtherUsersStreamForbidden(t *testing.T) {
	a := newApp(t)

	code, res := a.do(t, http.MethodGet, "/api/notifications/sse/B", "A", "")

	assert.Equal(t, http.StatusForbidden, code)
	assert.False(t, res.Success)
	assert.Zero(t, a.registry.Len())
}

func TestStream_ClosingReleasesRegistryEntry(t *testing.T) {
	a := newApp(t)
	srv := httptest.NewServer(a.e)
	t.Cleanup(srv.Close)

	res, r := openStream(t, srv, "/api/notifications/sse", "B")
	readFrame(t, r)
	require.Eventually(t, func() bool { return a.registry.Len() == 1 }, time.Second, 5*time.Millisecond)

	res.Body.Close()

	require.Eventually(t, func() bool { return a.registry.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}
