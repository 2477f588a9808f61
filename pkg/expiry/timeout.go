package expiry

import (
	"context"
	"net/http"
	"time"
)

// WithTimeout bounds every request reaching next by d. Combined with Guard,
// steps that run past the deadline make the next guard reject the request.
func WithTimeout(next http.Handler, d time.Duration) http.Handler {
	if d <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), d)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
