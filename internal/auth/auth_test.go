package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gota/internal/core"
	"gota/internal/store/memory"
)

func newTestService(t *testing.T) (*Service, *time.Time) {
	t.Helper()
	stores := memory.New().Stores()
	svc := NewService(stores.Users, stores.Sessions, time.Hour, nil)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }
	return svc, &now
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)
	assert.True(t, CheckPassword("correct horse", hash))
	assert.False(t, CheckPassword("wrong", hash))
}

func TestGenerateSessionToken(t *testing.T) {
	a, err := GenerateSessionToken()
	require.NoError(t, err)
	b, err := GenerateSessionToken()
	require.NoError(t, err)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}

func TestRegister(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "not-an-email", "short")
	var verr *core.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.True(t, verr.Has("email"))
	assert.True(t, verr.Has("password"))

	u, err := svc.Register(ctx, "Ana@Example.com", "longenough")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", u.Email)

	_, err = svc.Register(ctx, "ana@example.com", "longenough")
	assert.ErrorIs(t, err, core.ErrConflict)
}

func TestLoginAndAuthenticate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, "ana@example.com", "longenough")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "ana@example.com", "wrong-password")
	assert.ErrorIs(t, err, core.ErrUnauthorized)
	_, err = svc.Login(ctx, "nobody@example.com", "longenough")
	assert.ErrorIs(t, err, core.ErrUnauthorized)

	sess, err := svc.Login(ctx, "ANA@example.com", "longenough")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", sess.Email)

	got, renewed, err := svc.Authenticate(ctx, sess.Token)
	require.NoError(t, err)
	assert.False(t, renewed)
	assert.Equal(t, sess.UserID, got.UserID)

	_, _, err = svc.Authenticate(ctx, "")
	assert.ErrorIs(t, err, core.ErrUnauthorized)
	_, _, err = svc.Authenticate(ctx, "unknown")
	assert.ErrorIs(t, err, core.ErrUnauthorized)
}

func TestAuthenticate_RollingRenewal(t *testing.T) {
	svc, now := newTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, "ana@example.com", "longenough")
	require.NoError(t, err)
	sess, err := svc.Login(ctx, "ana@example.com", "longenough")
	require.NoError(t, err)

	*now = now.Add(20 * time.Minute)
	_, renewed, err := svc.Authenticate(ctx, sess.Token)
	require.NoError(t, err)
	assert.False(t, renewed, "first half of the lifetime does not renew")

	*now = now.Add(20 * time.Minute)
	got, renewed, err := svc.Authenticate(ctx, sess.Token)
	require.NoError(t, err)
	assert.True(t, renewed)
	assert.Equal(t, now.Add(time.Hour), got.ExpiresAt)

	*now = now.Add(2 * time.Hour)
	_, _, err = svc.Authenticate(ctx, sess.Token)
	assert.ErrorIs(t, err, core.ErrUnauthorized)
}

func TestLogoutAndDeleteUser(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	u, err := svc.Register(ctx, "ana@example.com", "longenough")
	require.NoError(t, err)

	s1, err := svc.Login(ctx, "ana@example.com", "longenough")
	require.NoError(t, err)
	s2, err := svc.Login(ctx, "ana@example.com", "longenough")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, s1.Token))
	_, _, err = svc.Authenticate(ctx, s1.Token)
	assert.ErrorIs(t, err, core.ErrUnauthorized)

	require.NoError(t, svc.DeleteUser(ctx, u.ID))
	_, _, err = svc.Authenticate(ctx, s2.Token)
	assert.ErrorIs(t, err, core.ErrUnauthorized, "cached session must not outlive its user")
	_, err = svc.Login(ctx, "ana@example.com", "longenough")
	assert.ErrorIs(t, err, core.ErrUnauthorized)
}

func TestMiddleware(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, "ana@example.com", "longenough")
	require.NoError(t, err)
	sess, err := svc.Login(ctx, "ana@example.com", "longenough")
	require.NoError(t, err)

	var seen core.Principal
	protected := svc.Middleware(false,
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusUnauthorized) }),
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) }),
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = PrincipalFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name    string
		prepare func(*http.Request)
		want    int
	}{
		{"no credentials", func(*http.Request) {}, http.StatusUnauthorized},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: CookieName, Value: sess.Token}) }, http.StatusNoContent},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+sess.Token) }, http.StatusNoContent},
		{"bad cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: CookieName, Value: "nope"}) }, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = core.Principal{}
			req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
			tt.prepare(req)
			rec := httptest.NewRecorder()
			protected.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusNoContent {
				assert.Equal(t, sess.UserID, seen.UserID)
				assert.Equal(t, "ana@example.com", seen.Email)
			}
		})
	}
}
