package middleware

import (
	"crypto/subtle"
	"net/http"
)

const (
	FunctionKeyHeader     = "x-functions-key"
	FunctionKeyQueryParam = "code"
)

// FunctionKey requires the caller to present key in the x-functions-key
// header or the code query parameter. An empty key disables the check.
func FunctionKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get(FunctionKeyHeader)
			if presented == "" {
				presented = r.URL.Query().Get(FunctionKeyQueryParam)
			}
			if subtle.ConstantTimeCompare([]byte(presented), []byte(key)) != 1 {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
