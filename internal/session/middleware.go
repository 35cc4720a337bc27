package session

import (
	"context"
	"net/http"
	"time"
)

// CookieName is the session token cookie.
const CookieName = "namewise_session"

type contextKey int

const sessionKey contextKey = iota

// FromContext extracts the request's session from the context.
func FromContext(ctx context.Context) *Session {
	if s, ok := ctx.Value(sessionKey).(*Session); ok {
		return s
	}
	return nil
}

func setCookie(w http.ResponseWriter, token string, ttl time.Duration, isDev bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		Expires:  time.Now().Add(ttl),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
}

// Middleware attaches a live session to every request. A valid cookie
// resolves to its existing session (sliding the inactivity window and
// refreshing the cookie); anything else gets a fresh session and token.
func Middleware(m *Manager, isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var sess *Session
			if c, err := r.Cookie(CookieName); err == nil {
				sess = m.Get(c.Value)
			}
			if sess == nil {
				sess = m.Create()
			}
			setCookie(w, sess.Token, m.ttl, isDev)

			ctx := context.WithValue(r.Context(), sessionKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
