package httpserver

import (
	"net/http"
	"strings"

	"lv-backoffice/internal/httputil"
)

// InternalAuth guards the user-facing routes. Callers are trusted upstream
// services that authenticate with a shared token and name the end user in
// X-User-ID.
func InternalAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-Internal-Token") != token {
				httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "invalid internal token"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserID pulls the acting user out of the request headers.
func UserID(r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.Header.Get("X-User-ID"))
	return id, id != ""
}
