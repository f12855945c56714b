package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	pkgkafka "github.com/MiSArch/shoppingcart/pkg/kafka"
)

// Inbound topics this service subscribes to.
var (
	TopicProductVariantCreated = pkgkafka.Topic("product-variant", "created")
	TopicOrderCreated          = pkgkafka.Topic("order", "created")
	TopicUserCreated           = pkgkafka.Topic("user", "created")
)

// ProductVariantCreatedData is the payload of misarch.product-variant.created.
type ProductVariantCreatedData struct {
	ID string `json:"id"`
}

// UserCreatedData is the payload of misarch.user.created.
type UserCreatedData struct {
	ID string `json:"id"`
}

// OrderCreatedData is the payload of misarch.order.created, reduced to the
// fields this service consumes.
type OrderCreatedData struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	OrderItems []OrderItemData `json:"order_items"`
}

// OrderItemData links an order line back to the cart item it was bought from.
type OrderItemData struct {
	ShoppingCartItemID string `json:"shopping_cart_item_id"`
	Count              int    `json:"count"`
}

// CartService is the slice of the cart service the consumers drive.
type CartService interface {
	RemovePurchasedItems(ctx context.Context, userID string, itemIDs []string) error
	EnsureCart(ctx context.Context, userID string) error
}

// VariantRegistry records catalog-announced variant ids in the read model.
type VariantRegistry interface {
	Add(ctx context.Context, variantID uuid.UUID) error
}

// ConsumerHandler processes the inbound platform events.
type ConsumerHandler struct {
	carts    CartService
	variants VariantRegistry
	logger   *slog.Logger
}

// NewConsumerHandler creates a handler for inbound events.
func NewConsumerHandler(carts CartService, variants VariantRegistry, logger *slog.Logger) *ConsumerHandler {
	return &ConsumerHandler{
		carts:    carts,
		variants: variants,
		logger:   logger,
	}
}

// HandleProductVariantCreated records a newly announced variant in the read
// model so later add-item calls resolve without a catalog round trip.
func (h *ConsumerHandler) HandleProductVariantCreated(ctx context.Context, event *pkgkafka.Event) error {
	var data ProductVariantCreatedData
	if err := event.UnmarshalData(&data); err != nil {
		return fmt.Errorf("unmarshal product-variant.created data: %w", err)
	}

	variantID, err := uuid.Parse(data.ID)
	if err != nil {
		return fmt.Errorf("product-variant.created carries invalid variant id %q: %w", data.ID, err)
	}

	if err := h.variants.Add(ctx, variantID); err != nil {
		return err
	}

	h.logger.InfoContext(ctx, "variant recorded in read model",
		slog.String("variant_id", data.ID),
		slog.String("event_id", event.EventID),
	)

	return nil
}

// HandleOrderCreated removes the purchased items from the buyer's cart.
func (h *ConsumerHandler) HandleOrderCreated(ctx context.Context, event *pkgkafka.Event) error {
	var data OrderCreatedData
	if err := event.UnmarshalData(&data); err != nil {
		return fmt.Errorf("unmarshal order.created data: %w", err)
	}

	if len(data.OrderItems) == 0 {
		h.logger.WarnContext(ctx, "order.created event without items",
			slog.String("order_id", data.ID),
			slog.String("event_id", event.EventID),
		)
		return nil
	}

	itemIDs := make([]string, 0, len(data.OrderItems))
	for _, item := range data.OrderItems {
		itemIDs = append(itemIDs, item.ShoppingCartItemID)
	}

	if err := h.carts.RemovePurchasedItems(ctx, data.UserID, itemIDs); err != nil {
		return fmt.Errorf("remove purchased items for order %s: %w", data.ID, err)
	}

	h.logger.InfoContext(ctx, "purchased items pruned from cart",
		slog.String("order_id", data.ID),
		slog.String("user_id", data.UserID),
		slog.Int("item_count", len(itemIDs)),
	)

	return nil
}

// HandleUserCreated warms up the implicit-creation path so a brand-new user
// already has an empty cart persisted.
func (h *ConsumerHandler) HandleUserCreated(ctx context.Context, event *pkgkafka.Event) error {
	var data UserCreatedData
	if err := event.UnmarshalData(&data); err != nil {
		return fmt.Errorf("unmarshal user.created data: %w", err)
	}

	if err := h.carts.EnsureCart(ctx, data.ID); err != nil {
		return fmt.Errorf("ensure cart for user %s: %w", data.ID, err)
	}

	h.logger.InfoContext(ctx, "cart ensured for new user",
		slog.String("user_id", data.ID),
	)

	return nil
}

// NewConsumers creates one consumer per subscribed topic. Every handler runs
// behind idempotent delivery (keyed by event id) and ships poison messages
// to the DLQ after the retry budget is spent.
func NewConsumers(
	brokers []string,
	group string,
	handler *ConsumerHandler,
	store pkgkafka.IdempotencyStore,
	dlq *pkgkafka.DLQProducer,
	logger *slog.Logger,
) []*pkgkafka.Consumer {
	subscriptions := []struct {
		topic  string
		handle pkgkafka.Handler
	}{
		{TopicProductVariantCreated, handler.HandleProductVariantCreated},
		{TopicOrderCreated, handler.HandleOrderCreated},
		{TopicUserCreated, handler.HandleUserCreated},
	}

	consumers := make([]*pkgkafka.Consumer, 0, len(subscriptions))
	for _, sub := range subscriptions {
		cfg := pkgkafka.ConsumerConfig{
			Brokers:  brokers,
			GroupID:  group,
			Topic:    sub.topic,
			MinBytes: 1,
			MaxBytes: 10e6,
		}
		consumer := pkgkafka.NewConsumer(cfg, pkgkafka.IdempotentHandler(store, sub.handle, logger), logger).
			WithDLQ(dlq)
		consumers = append(consumers, consumer)
	}

	return consumers
}
