package middleware

import "net/http"

// NoStore is the directive for responses that must be fetched fresh on every
// navigation.
const NoStore = "no-store"

// CacheControl sets the given Cache-Control directive on GET and HEAD
// responses unless the handler already chose one.
func CacheControl(directive string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if (r.Method == http.MethodGet || r.Method == http.MethodHead) && w.Header().Get("Cache-Control") == "" {
				w.Header().Set("Cache-Control", directive)
			}
			next.ServeHTTP(w, r)
		})
	}
}
