// ABOUTME: Tests for the JWT HTTP auth middleware

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskstream/assistant/internal/store"
)

type fakeUserStore struct {
	users map[int64]*store.User
}

func (f *fakeUserStore) GetUser(_ context.Context, id int64) (*store.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

func newAuthHandler(t *testing.T) (http.Handler, *JWTVerifier) {
	t.Helper()
	verifier := NewJWTVerifier([]byte("test-secret"))
	users := &fakeUserStore{users: map[int64]*store.User{
		7: {ID: 7, Username: "alice"},
	}}

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserIDFromContext(r.Context())
		require.True(t, ok)
		assert.Equal(t, int64(7), userID)
		w.WriteHeader(http.StatusOK)
	})
	return Middleware(users, verifier)(inner), verifier
}

func TestMiddleware_ValidToken(t *testing.T) {
	handler, verifier := newAuthHandler(t)

	token, err := verifier.Generate(7, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddleware_MissingHeader(t *testing.T) {
	handler, _ := newAuthHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing authorization header")
}

func TestMiddleware_MalformedHeader(t *testing.T) {
	handler, _ := newAuthHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid authorization header format")
}

func TestMiddleware_BadToken(t *testing.T) {
	handler, _ := newAuthHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid token")
}

func TestMiddleware_DeletedUser(t *testing.T) {
	handler, verifier := newAuthHandler(t)

	token, err := verifier.Generate(99, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "user not found")
}
