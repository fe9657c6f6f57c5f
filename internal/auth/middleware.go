package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"gota/internal/core"
	"gota/internal/log"
)

// CookieName is the session cookie.
const CookieName = "gota_session"

type principalKey struct{}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p core.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the authenticated principal of the request.
func PrincipalFrom(ctx context.Context) (core.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(core.Principal)
	return p, ok && p.UserID != ""
}

// TokenFromRequest reads the session token from the cookie, falling back to
// an "Authorization: Bearer" header.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	h := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// SetCookie writes the session cookie for sess.
func SetCookie(w http.ResponseWriter, sess core.Session, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		MaxAge:   int(time.Until(sess.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie.
func ClearCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Middleware authenticates every request. Requests without a valid session
// are answered by unauthorized; store failures by unavailable.
func (s *Service) Middleware(secure bool, unauthorized, unavailable http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, renewed, err := s.Authenticate(r.Context(), TokenFromRequest(r))
			switch {
			case errors.Is(err, core.ErrUnauthorized):
				if _, cerr := r.Cookie(CookieName); cerr == nil {
					ClearCookie(w, secure)
				}
				unauthorized.ServeHTTP(w, r)
				return
			case err != nil:
				s.logger.LogError(r.Context(), "Session lookup failed", err, log.ComponentAuth, log.OpRead, nil)
				unavailable.ServeHTTP(w, r)
				return
			}

			if renewed {
				SetCookie(w, sess, secure)
			}
			ctx := WithPrincipal(r.Context(), sess.Principal())
			ctx = log.WithLogger(ctx, log.FromContext(ctx).With(log.FieldUserID, sess.UserID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
