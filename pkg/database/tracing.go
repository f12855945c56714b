package database

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MiSArch/shoppingcart/pkg/database"

// slowQueryWatch holds the process-wide slow query settings. Guarded by its
// own mutex because repositories read it on every query.
type slowQueryWatch struct {
	mu        sync.RWMutex
	threshold time.Duration
	logger    *slog.Logger
}

func (w *slowQueryWatch) set(threshold time.Duration, logger *slog.Logger) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.threshold = threshold
	w.logger = logger
}

func (w *slowQueryWatch) get() (time.Duration, *slog.Logger) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.threshold, w.logger
}

var slowQueries slowQueryWatch

// SetSlowQueryLogging configures slow query detection. Queries exceeding the
// threshold are logged as warnings with operation name, SQL statement, and
// duration. A zero threshold disables slow query logging.
func SetSlowQueryLogging(threshold time.Duration, logger *slog.Logger) {
	slowQueries.set(threshold, logger)
}

// TraceQuery starts a span for a database operation. The returned function
// must be called when the operation completes (typically via defer):
//
//	ctx, end := database.TraceQuery(ctx, "LoadCart", "SELECT items FROM carts WHERE user_id = $1")
//	defer func() { end(err) }()
//
// If slow query logging is enabled via SetSlowQueryLogging, queries exceeding
// the configured threshold are logged as warnings.
func TraceQuery(ctx context.Context, operation, statement string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := otel.Tracer(tracerName).Start(ctx, "db."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", operation),
			attribute.String("db.statement", statement),
		),
	)

	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		logIfSlow(ctx, operation, statement, start, err)
	}
}

func logIfSlow(ctx context.Context, operation, statement string, start time.Time, err error) {
	threshold, logger := slowQueries.get()
	if threshold <= 0 || logger == nil {
		return
	}
	elapsed := time.Since(start)
	if elapsed < threshold {
		return
	}

	attrs := []any{
		slog.String("operation", operation),
		slog.String("statement", statement),
		slog.Duration("duration", elapsed),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	logger.WarnContext(ctx, "slow query detected", attrs...)
}
