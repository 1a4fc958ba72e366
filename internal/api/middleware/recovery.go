package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/momentokidspass/mkp/internal/api/response"
)

// Recovery is middleware that recovers from panics and returns a 500 error.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}
				Logger(r.Context()).Error("panic recovered",
					"error", err,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				response.Fail(w, response.Internal, nil, GetRequestID(r.Context()))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
