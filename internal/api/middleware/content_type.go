package middleware

import "net/http"

// DefaultContentType sets the Content-Type header when the handler has not
// chosen one. Chart and export handlers override it.
func DefaultContentType(contentType string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if w.Header().Get("Content-Type") == "" {
				w.Header().Set("Content-Type", contentType)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ContentTypeJSON defaults responses to application/json.
var ContentTypeJSON = DefaultContentType("application/json")
