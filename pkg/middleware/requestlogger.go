package middleware

import (
	"log/slog"
	"net/http"

	"github.com/MiSArch/shoppingcart/pkg/logger"
)

// RequestLogger stores a request-scoped logger in the context, pre-tagged
// with correlation_id, user_id, trace_id, and span_id where available.
// Handlers pick it up with logger.FromContext and never re-derive those
// fields themselves.
//
// Mount it after RequestLogging and Tracing; both contribute fields the
// enriched logger reads from the context. The user ID comes from the
// X-User-ID header the gateway sets on authenticated requests.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if userID := r.Header.Get(headerUserID); userID != "" {
				ctx = logger.WithUserID(ctx, userID)
			}

			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
