package middleware

import (
	"net/http"

	pkgAuth "github.com/angelmondragon/eventix-edge/pkg/auth"
)

// Session copies the caller's bearer token into the request context. It never
// rejects a request: a missing token means the console user is logged out.
func Session() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := pkgAuth.BearerToken(r.Header.Get("Authorization"))
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithBearerToken(r.Context(), token)))
		})
	}
}
