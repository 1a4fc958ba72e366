package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/momentokidspass/mkp/internal/session"
)

const (
	sessionKey      contextKey = "session"
	sessionTokenKey contextKey = "sessionToken"
)

// SessionStore resolves browser tokens to sessions.
type SessionStore interface {
	Create() (string, *session.Session, error)
	Get(token string) (*session.Session, bool)
	Rotate(token string) (string, error)
	Remove(token string)
}

// CookieConfig describes the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
	MaxAge time.Duration
}

// Session is middleware that attaches the session named by the session
// cookie, if any, to the request context. It never creates a session. The
// cookie of a live session is re-sent so its lifetime follows the idle TTL.
func Session(store SessionStore, cookie CookieConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := r.Cookie(cookie.Name)
			if err != nil || c.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			s, ok := store.Get(c.Value)
			if !ok {
				ClearSessionCookie(w, cookie)
				next.ServeHTTP(w, r)
				return
			}

			SetSessionCookie(w, cookie, c.Value)

			ctx := context.WithValue(r.Context(), sessionKey, s)
			ctx = context.WithValue(ctx, sessionTokenKey, c.Value)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSession retrieves the session attached by Session, or nil.
func GetSession(ctx context.Context) *session.Session {
	if s, ok := ctx.Value(sessionKey).(*session.Session); ok {
		return s
	}
	return nil
}

// GetSessionToken retrieves the token of the attached session, or "".
func GetSessionToken(ctx context.Context) string {
	if t, ok := ctx.Value(sessionTokenKey).(string); ok {
		return t
	}
	return ""
}

// SetSessionCookie writes the session cookie for token, replacing any
// session cookie already set on w.
func SetSessionCookie(w http.ResponseWriter, cookie CookieConfig, token string) {
	writeCookie(w, &http.Cookie{
		Name:     cookie.Name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(cookie.MaxAge / time.Second),
		HttpOnly: true,
		Secure:   cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie.
func ClearSessionCookie(w http.ResponseWriter, cookie CookieConfig) {
	writeCookie(w, &http.Cookie{
		Name:     cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// writeCookie sets c so that the last write for a name wins.
func writeCookie(w http.ResponseWriter, c *http.Cookie) {
	h := w.Header()
	prefix := c.Name + "="
	var kept []string
	for _, v := range h.Values("Set-Cookie") {
		if !strings.HasPrefix(v, prefix) {
			kept = append(kept, v)
		}
	}
	h.Del("Set-Cookie")
	for _, v := range kept {
		h.Add("Set-Cookie", v)
	}
	http.SetCookie(w, c)
}
