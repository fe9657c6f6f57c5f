// Package duplicate implements the advisory duplicate-expense check.
//
// A Detector asks the store for existing expenses with the same amount,
// category and date. It never blocks a write: lookup failures are logged and
// reported as "no matches". A Tracker remembers, per pending draft, which
// (amount, category, date) triple was last checked so a user who has already
// seen the warning can confirm without being asked again, while any change to
// one of the three fields requires a fresh check.
package duplicate

import (
	"context"
	"time"

	"github.com/google/uuid"

	"gota/internal/cache"
	"gota/internal/core"
	"gota/internal/log"
)

// Finder is the store procedure that looks up probable duplicates. The match
// window is the exact calendar date.
type Finder interface {
	FindDuplicates(ctx context.Context, userID string, key core.DuplicateKey) ([]core.DuplicateMatch, error)
}

type Detector struct {
	finder Finder
	logger *log.StructuredLogger
}

func NewDetector(finder Finder, logger *log.Logger) *Detector {
	return &Detector{finder: finder, logger: log.NewStructuredLogger(logger)}
}

// Check returns probable duplicates of key. It fails open: any lookup error
// yields no matches.
func (d *Detector) Check(ctx context.Context, userID string, key core.DuplicateKey) []core.DuplicateMatch {
	if d == nil || d.finder == nil {
		return nil
	}
	matches, err := d.finder.FindDuplicates(ctx, userID, key)
	if err != nil {
		d.logger.LogError(ctx, "Duplicate lookup failed, allowing write", err,
			log.ComponentDuplicate, log.OpRead, log.NewFields().WithUser(userID).WithErrorType(log.ErrorTypeUpstream))
		return nil
	}
	return matches
}

// Session is the short-lived check state of one pending draft.
type Session struct {
	Checked   bool
	Key       core.DuplicateKey
	CheckedAt time.Time
}

// NeedsCheck reports whether a save of key must run the detector first.
func (s Session) NeedsCheck(key core.DuplicateKey) bool {
	return !s.Checked || s.Key != key
}

// Tracker stores draft sessions keyed by user and draft id.
type Tracker struct {
	sessions *cache.LRUCache[Session]
}

// NewTracker creates a tracker whose sessions expire after ttl.
func NewTracker(maxDrafts int, ttl time.Duration) *Tracker {
	return &Tracker{sessions: cache.NewLRUCache[Session](maxDrafts, ttl)}
}

// NewDraftID returns a fresh identifier for a pending write.
func NewDraftID() string {
	return uuid.NewString()
}

// Begin records that key is about to be checked for the draft and reports
// whether the check must run. A draft whose last checked key equals key skips
// the check: the user has already been warned and is confirming.
func (t *Tracker) Begin(userID, draftID string, key core.DuplicateKey) bool {
	needs := true
	t.sessions.Update(cache.Key(userID, draftID), func(cur Session, found bool) Session {
		if found && !cur.NeedsCheck(key) {
			needs = false
			return cur
		}
		return Session{Checked: true, Key: key, CheckedAt: time.Now()}
	})
	return needs
}

// Complete drops the draft once its write has been committed.
func (t *Tracker) Complete(userID, draftID string) {
	t.sessions.Delete(cache.Key(userID, draftID))
}

// Forget drops every draft of a user.
func (t *Tracker) Forget(userID string) {
	t.sessions.DeletePrefix(cache.UserPrefix(userID))
}

// Cache exposes the underlying store so it can be registered for cleanup.
func (t *Tracker) Cache() cache.Cleaner {
	return t.sessions
}
