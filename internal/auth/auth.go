// Package auth holds users' credentials and opaque session tokens.
//
// Sessions roll: a request made in the second half of a session's lifetime
// pushes its expiry a full duration forward, so active users stay signed in
// while idle sessions lapse.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"gota/internal/cache"
	"gota/internal/core"
	"gota/internal/log"
	"gota/internal/store"
)

const (
	// DefaultSessionDuration is how long a session lasts without activity.
	DefaultSessionDuration = 30 * 24 * time.Hour

	tokenBytes       = 32
	minPasswordRunes = 8
)

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GenerateSessionToken returns a random hex token.
func GenerateSessionToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Service authenticates users and manages their sessions. Validated
// sessions are cached so that most requests never reach the store.
type Service struct {
	users    store.UserStore
	sessions store.SessionStore
	cache    *cache.LRUCache[core.Session]
	duration time.Duration
	now      func() time.Time
	logger   *log.StructuredLogger
}

func NewService(users store.UserStore, sessions store.SessionStore, duration time.Duration, logger *log.Logger) *Service {
	if duration <= 0 {
		duration = DefaultSessionDuration
	}
	return &Service{
		users:    users,
		sessions: sessions,
		cache:    cache.NewLRUCache[core.Session](1000, 5*time.Minute),
		duration: duration,
		now:      time.Now,
		logger:   log.NewStructuredLogger(logger),
	}
}

// Duration is the lifetime of a fresh or renewed session.
func (s *Service) Duration() time.Duration { return s.duration }

// Cache exposes the session cache so it can be registered for cleanup.
func (s *Service) Cache() cache.Cleaner { return s.cache }

// Register creates a user. The password must have at least 8 characters.
func (s *Service) Register(ctx context.Context, email, password string) (core.User, error) {
	email = store.NormalizeEmail(email)
	verr := &core.ValidationError{}
	if email == "" || !strings.Contains(email, "@") {
		verr.Add("email", "Email inválido")
	}
	if len([]rune(password)) < minPasswordRunes {
		verr.Add("password", "La contraseña debe tener al menos 8 caracteres")
	}
	if err := verr.Err(); err != nil {
		return core.User{}, err
	}

	hash, err := HashPassword(password)
	if err != nil {
		return core.User{}, err
	}
	return s.users.CreateUser(ctx, email, hash)
}

// Login checks credentials and opens a new session. Unknown emails and
// wrong passwords both yield core.ErrUnauthorized.
func (s *Service) Login(ctx context.Context, email, password string) (core.Session, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		return core.Session{}, core.ErrUnauthorized
	}
	if err != nil {
		return core.Session{}, core.Upstream("get user", err)
	}
	if !CheckPassword(password, user.PasswordHash) {
		return core.Session{}, core.ErrUnauthorized
	}

	token, err := GenerateSessionToken()
	if err != nil {
		return core.Session{}, err
	}
	now := s.now().UTC()
	sess := core.Session{Token: token, UserID: user.ID, Email: user.Email, ExpiresAt: now.Add(s.duration), CreatedAt: now}
	if err := s.sessions.CreateSession(ctx, sess); err != nil {
		return core.Session{}, core.Upstream("create session", err)
	}
	s.cache.Set(token, sess)
	return sess, nil
}

// Logout ends the session. Unknown tokens are not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	s.cache.Delete(token)
	if err := s.sessions.DeleteSession(ctx, token); err != nil {
		return core.Upstream("delete session", err)
	}
	return nil
}

// Authenticate resolves token to its session. The returned bool reports
// whether the session was renewed and the client should refresh its cookie.
func (s *Service) Authenticate(ctx context.Context, token string) (core.Session, bool, error) {
	if token == "" {
		return core.Session{}, false, core.ErrUnauthorized
	}

	sess, ok := s.cache.Get(token)
	if !ok {
		var err error
		sess, err = s.sessions.GetSession(ctx, token)
		if errors.Is(err, core.ErrNotFound) {
			return core.Session{}, false, core.ErrUnauthorized
		}
		if err != nil {
			return core.Session{}, false, core.Upstream("get session", err)
		}
	}

	now := s.now().UTC()
	if sess.Expired(now) {
		s.cache.Delete(token)
		if err := s.sessions.DeleteSession(ctx, token); err != nil {
			s.logger.LogError(ctx, "Failed to delete expired session", err, log.ComponentAuth, log.OpDelete,
				log.NewFields().WithUser(sess.UserID))
		}
		return core.Session{}, false, core.ErrUnauthorized
	}

	renewed := false
	if sess.ExpiresAt.Sub(now) < s.duration/2 {
		next := now.Add(s.duration)
		if err := s.sessions.RenewSession(ctx, token, next); err != nil {
			s.logger.LogError(ctx, "Failed to renew session", err, log.ComponentAuth, log.OpUpdate,
				log.NewFields().WithUser(sess.UserID))
		} else {
			sess.ExpiresAt = next
			renewed = true
		}
	}
	s.cache.Set(token, sess)
	return sess, renewed, nil
}

// DeleteUser removes the user and every session it holds.
func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	if err := s.sessions.DeleteUserSessions(ctx, userID); err != nil {
		return core.Upstream("delete sessions", err)
	}
	if err := s.users.DeleteUser(ctx, userID); err != nil {
		return core.Upstream("delete user", err)
	}
	s.forgetUser(userID)
	return nil
}

// forgetUser drops cached sessions of userID. The cache is keyed by token, so
// every entry is inspected.
func (s *Service) forgetUser(userID string) {
	s.cache.Purge(func(sess core.Session) bool { return sess.UserID == userID })
}
