package log

import (
	"net/http"
)

// Middleware tags plain net/http requests with a correlation id and a
// correlated logger. The Gin engines do the same through their own middleware.
func Middleware(base *Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := SanitizeCorrelationID(r.Header.Get(CorrelationIDHeader))
		w.Header().Set(CorrelationIDHeader, id)

		ctx := ContextWithCorrelationID(r.Context(), id)
		if base != nil {
			ctx = ContextWithLogger(ctx, base.With(string(CorrelatedIDKey), id))
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
