package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/MiSArch/shoppingcart/pkg/logger"
)

// Headers set by the gateway in front of this service.
const (
	headerCorrelationID = "X-Correlation-ID"
	headerUserID        = "X-User-ID"
)

// RequestLogging writes one access-log line per request and tags the request
// context with a correlation ID. The inbound X-Correlation-ID is reused when
// the gateway supplies one, so a single cart request can be followed across
// services; otherwise a fresh ID is generated here. Either way the ID is
// echoed in the response header.
func RequestLogging(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			correlationID := r.Header.Get(headerCorrelationID)
			if correlationID == "" {
				correlationID = uuid.New().String()
			}
			ctx := logger.WithCorrelationID(r.Context(), correlationID)
			w.Header().Set(headerCorrelationID, correlationID)

			sw := newStatusWriter(w)
			start := time.Now()
			next.ServeHTTP(sw, r.WithContext(ctx))

			l.InfoContext(ctx, "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", sw.status),
				slog.Duration("duration", time.Since(start)),
				slog.Int("bytes", sw.bytes),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("user_agent", r.UserAgent()),
				slog.String("correlation_id", correlationID),
			)
		})
	}
}
