package core

import "time"

// User is an authenticated principal's stored record.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Principal returns the request-scoped identity of u.
func (u User) Principal() Principal {
	return Principal{UserID: u.ID, Email: u.Email}
}

// Session is an opaque login token bound to a user.
type Session struct {
	Token     string
	UserID    string
	Email     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the session is no longer usable at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Principal returns the identity the session authenticates.
func (s Session) Principal() Principal {
	return Principal{UserID: s.UserID, Email: s.Email}
}
