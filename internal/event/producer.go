package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MiSArch/shoppingcart/internal/domain"
	pkgkafka "github.com/MiSArch/shoppingcart/pkg/kafka"
	"github.com/MiSArch/shoppingcart/pkg/logger"
)

// Outbound topics. Every successful mutation publishes exactly one event:
// clears go to the cleared topic, everything else to updated.
var (
	TopicCartUpdated = pkgkafka.Topic("cart", "updated")
	TopicCartCleared = pkgkafka.Topic("cart", "cleared")
)

// Event types carried in the envelope's event_type field.
const (
	EventTypeItemAdded       = "cart.item_added"
	EventTypeQuantityUpdated = "cart.quantity_updated"
	EventTypeItemRemoved     = "cart.item_removed"
	EventTypeItemsPurchased  = "cart.items_purchased"
	EventTypeCartCleared     = "cart.cleared"
)

// AggregateTypeCart is the aggregate type on every cart event envelope.
const AggregateTypeCart = "cart"

// SourceShoppingCart identifies this service as the event origin.
const SourceShoppingCart = "shoppingcart-service"

// CartUpdatedData is the payload of misarch.cart.updated events.
type CartUpdatedData struct {
	UserID        string    `json:"user_id"`
	Operation     string    `json:"operation"`
	ItemCount     int       `json:"item_count"`
	TotalQuantity int       `json:"total_quantity"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
}

// CartClearedData is the payload of misarch.cart.cleared events.
type CartClearedData struct {
	UserID        string    `json:"user_id"`
	Operation     string    `json:"operation"`
	LastUpdatedAt time.Time `json:"last_updated_at"`
}

// Producer publishes cart domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates an event producer for the shoppingcart service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishCartUpdated publishes the event matching a non-clear mutation.
func (p *Producer) PublishCartUpdated(ctx context.Context, cart *domain.Cart, op domain.OpKind) error {
	if p.kafka == nil {
		return nil
	}

	eventType := EventTypeForOp(op)
	data := CartUpdatedData{
		UserID:        cart.UserID.String(),
		Operation:     string(op),
		ItemCount:     cart.ItemCount(),
		TotalQuantity: cart.TotalQuantity(),
		LastUpdatedAt: cart.LastUpdatedAt,
	}

	event, err := pkgkafka.NewEvent(eventType, cart.UserID.String(), AggregateTypeCart, SourceShoppingCart, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", eventType, err)
	}
	// The operation rides in metadata so consumers can route without
	// decoding the payload.
	event.WithCorrelationID(logger.CorrelationIDFromContext(ctx)).
		WithMetadata("operation", string(op))

	if err := p.kafka.Publish(ctx, TopicCartUpdated, event); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}

	p.logger.DebugContext(ctx, "published cart event",
		slog.String("event_type", eventType),
		slog.String("user_id", cart.UserID.String()),
		slog.Int("item_count", cart.ItemCount()),
	)

	return nil
}

// PublishCartCleared publishes the cart.cleared event.
func (p *Producer) PublishCartCleared(ctx context.Context, cart *domain.Cart) error {
	if p.kafka == nil {
		return nil
	}

	data := CartClearedData{
		UserID:        cart.UserID.String(),
		Operation:     string(domain.OpCleared),
		LastUpdatedAt: cart.LastUpdatedAt,
	}

	event, err := pkgkafka.NewEvent(EventTypeCartCleared, cart.UserID.String(), AggregateTypeCart, SourceShoppingCart, data)
	if err != nil {
		return fmt.Errorf("create cart.cleared event: %w", err)
	}
	event.WithCorrelationID(logger.CorrelationIDFromContext(ctx)).
		WithMetadata("operation", string(domain.OpCleared))

	if err := p.kafka.Publish(ctx, TopicCartCleared, event); err != nil {
		return fmt.Errorf("publish cart.cleared event: %w", err)
	}

	p.logger.DebugContext(ctx, "published cart event",
		slog.String("event_type", EventTypeCartCleared),
		slog.String("user_id", cart.UserID.String()),
	)

	return nil
}

// EventTypeForOp maps an aggregate operation to its envelope event type.
func EventTypeForOp(op domain.OpKind) string {
	switch op {
	case domain.OpItemAdded:
		return EventTypeItemAdded
	case domain.OpQuantityUpdated:
		return EventTypeQuantityUpdated
	case domain.OpItemRemoved:
		return EventTypeItemRemoved
	case domain.OpItemsPurchased:
		return EventTypeItemsPurchased
	case domain.OpCleared:
		return EventTypeCartCleared
	default:
		return "cart." + string(op)
	}
}
