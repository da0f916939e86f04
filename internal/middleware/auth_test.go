package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/findmate/backend/internal/models"
	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, userID, secret string, expires time.Time) string {
	t.Helper()
	claims := &models.JwtCustomClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func run(t *testing.T, mw echo.MiddlewareFunc, req *http.Request) (string, error) {
	t.Helper()
	e := echo.New()
	c := e.NewContext(req, httptest.NewRecorder())
	var got string
	err := mw(func(c echo.Context) error {
		got, _ = c.Get(ContextUserID).(string)
		return nil
	})(c)
	return got, err
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	require.True(t, errors.As(err, &he), "expected *echo.HTTPError, got %v", err)
	return he.Code
}

func TestJWTAuth_HeaderToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "u1", testSecret, time.Now().Add(time.Hour)))

	userID, err := run(t, JWTAuthMiddleware(testSecret), req)
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)
}

func TestJWTAuth_QueryToken(t *testing.T) {
	token := signToken(t, "u2", testSecret, time.Now().Add(time.Hour))
	req := httptest.NewRequest(http.MethodGet, "/sse?token="+token, nil)

	userID, err := run(t, JWTAuthMiddleware(testSecret), req)
	require.NoError(t, err)
	assert.Equal(t, "u2", userID)
}

func TestJWTAuth_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "wrong scheme", header: "Basic abc"},
		{name: "wrong secret", header: "Bearer " + signToken(t, "u1", "other", time.Now().Add(time.Hour))},
		{name: "expired", header: "Bearer " + signToken(t, "u1", testSecret, time.Now().Add(-time.Hour))},
		{name: "no user id", header: "Bearer " + signToken(t, "", testSecret, time.Now().Add(time.Hour))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			_, err := run(t, JWTAuthMiddleware(testSecret), req)
			assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
		})
	}
}

type stubVerifier struct {
	uid string
	err error
}

func (s stubVerifier) VerifyIDToken(_ context.Context, _ string) (*auth.Token, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &auth.Token{UID: s.uid}, nil
}

func TestFirebaseAuth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer id-token")

	userID, err := run(t, FirebaseAuthMiddleware(stubVerifier{uid: "fb-1"}), req)
	require.NoError(t, err)
	assert.Equal(t, "fb-1", userID)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer id-token")
	_, err = run(t, FirebaseAuthMiddleware(stubVerifier{err: errors.New("expired")}), req)
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
}
