package middleware

import (
	"net/http"

	"github.com/momentokidspass/mkp/internal/api/response"
	"github.com/momentokidspass/mkp/internal/user"
)

// RequireAuthenticated returns middleware that rejects requests without a
// session holding both an identity and its user row.
func RequireAuthenticated() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := GetSession(r.Context())
			if s == nil || !s.IsAuthenticated() {
				response.Fail(w, response.Unauthenticated, nil, GetRequestID(r.Context()))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole returns middleware that rejects users whose role is not in the
// allowed list. It must run after RequireAuthenticated.
func RequireRole(roles ...user.Role) func(http.Handler) http.Handler {
	allowed := make(map[user.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			s := GetSession(r.Context())
			var u *user.User
			if s != nil {
				u = s.Current()
			}
			if u == nil {
				response.Fail(w, response.Unauthenticated, nil, requestID)
				return
			}

			if !allowed[u.Role] {
				response.Fail(w, response.Forbidden, nil, requestID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
