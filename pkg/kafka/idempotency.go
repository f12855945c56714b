package kafka

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// IdempotencyStore tracks processed event IDs so redelivered messages are not
// applied twice. Implementations must be safe for concurrent use.
type IdempotencyStore interface {
	// Contains reports whether the event ID has already been processed.
	Contains(ctx context.Context, eventID string) (bool, error)
	// Add marks an event ID as processed. Call it only after the handler
	// succeeded.
	Add(ctx context.Context, eventID string) error
}

// MemoryIdempotencyStore keeps processed-event markers in process memory.
// Suitable for a single instance; replicas sharing a consumer group need the
// Redis-backed store. Markers expire after the TTL to bound memory.
type MemoryIdempotencyStore struct {
	mu       sync.RWMutex
	deadline map[string]time.Time
	ttl      time.Duration
}

// NewMemoryIdempotencyStore creates an in-memory store. Expired markers are
// removed lazily on lookup.
func NewMemoryIdempotencyStore(ttl time.Duration) *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		deadline: make(map[string]time.Time),
		ttl:      ttl,
	}
}

// Contains reports whether a live marker exists for the event ID.
func (s *MemoryIdempotencyStore) Contains(_ context.Context, eventID string) (bool, error) {
	s.mu.RLock()
	expires, ok := s.deadline[eventID]
	s.mu.RUnlock()

	if !ok {
		return false, nil
	}
	if time.Now().After(expires) {
		s.mu.Lock()
		delete(s.deadline, eventID)
		s.mu.Unlock()
		return false, nil
	}
	return true, nil
}

// Add records a marker expiring one TTL from now.
func (s *MemoryIdempotencyStore) Add(_ context.Context, eventID string) error {
	s.mu.Lock()
	s.deadline[eventID] = time.Now().Add(s.ttl)
	s.mu.Unlock()
	return nil
}

// Len returns the number of markers, including any not yet lazily expired.
func (s *MemoryIdempotencyStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.deadline)
}

// IdempotentHandler wraps a handler with deduplication. A replayed
// order.created must not remove purchased items from the cart twice, so
// events whose ID is already in the store are acknowledged without running
// the inner handler.
//
// The guard fails open: if the store is unreachable the event is processed
// anyway, trading a possible duplicate for guaranteed delivery.
func IdempotentHandler(store IdempotencyStore, inner Handler, logger *slog.Logger) Handler {
	return func(ctx context.Context, event *Event) error {
		if event.EventID == "" {
			// Nothing to deduplicate on.
			return inner(ctx, event)
		}

		seen, err := store.Contains(ctx, event.EventID)
		if err != nil {
			logger.Warn("idempotency store lookup failed, processing anyway",
				slog.String("event_id", event.EventID),
				slog.String("error", err.Error()),
			)
			return inner(ctx, event)
		}
		if seen {
			ConsumerMessagesDuplicate.WithLabelValues(event.EventType, event.Source).Inc()
			logger.Debug("skipping duplicate event",
				slog.String("event_id", event.EventID),
				slog.String("event_type", event.EventType),
				slog.String("aggregate_id", event.AggregateID),
			)
			return nil
		}

		if err := inner(ctx, event); err != nil {
			return err
		}

		// Mark only after success so a failed handler gets the redelivery.
		if err := store.Add(ctx, event.EventID); err != nil {
			logger.Warn("failed to record processed event",
				slog.String("event_id", event.EventID),
				slog.String("error", err.Error()),
			)
		}
		return nil
	}
}
