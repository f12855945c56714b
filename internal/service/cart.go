package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MiSArch/shoppingcart/internal/catalog"
	"github.com/MiSArch/shoppingcart/internal/domain"
	"github.com/MiSArch/shoppingcart/internal/event"
	"github.com/MiSArch/shoppingcart/internal/repository"
	apperrors "github.com/MiSArch/shoppingcart/pkg/errors"
)

// CartService implements the cart operations. Each mutation runs a full
// load-validate-apply-save cycle; when the conditional save loses to a
// concurrent writer the whole cycle is retried against the freshest state,
// so merge and uniqueness invariants hold without any in-process locking.
type CartService struct {
	repo     repository.CartRepository
	resolver catalog.Resolver
	producer *event.Producer
	logger   *slog.Logger
	attempts int
}

// NewCartService creates a cart service. saveAttempts bounds how many times
// a mutation is retried after losing a conditional save before the caller
// gets a conflict.
func NewCartService(
	repo repository.CartRepository,
	resolver catalog.Resolver,
	producer *event.Producer,
	logger *slog.Logger,
	saveAttempts int,
) *CartService {
	return &CartService{
		repo:     repo,
		resolver: resolver,
		producer: producer,
		logger:   logger,
		attempts: saveAttempts,
	}
}

// GetCart returns the user's cart. A user who never touched their cart gets
// an empty one; reads never fail with not-found.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	uid, err := parseIdentifier(userID, "user id")
	if err != nil {
		return nil, err
	}

	return s.loadCart(ctx, uid)
}

// AddItem puts quantity units of a variant into the user's cart, merging
// into an existing line when the variant is already present. The variant
// must exist in the product catalog; nothing enters the cart unverified.
func (s *CartService) AddItem(ctx context.Context, userID, variantID string, quantity int) (*domain.Cart, error) {
	uid, err := parseIdentifier(userID, "user id")
	if err != nil {
		return nil, err
	}
	vid, err := parseIdentifier(variantID, "variant id")
	if err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, apperrors.InvalidInput(fmt.Sprintf("quantity must be at least 1, got %d", quantity))
	}

	// Resolve once; variant existence does not depend on cart state, so
	// save retries reuse the confirmation.
	ref, err := s.resolver.Resolve(ctx, vid)
	if err != nil {
		return nil, fmt.Errorf("resolve variant %s: %w", vid, err)
	}

	cart, op, err := s.mutate(ctx, uid, func(cart *domain.Cart, now time.Time) (domain.OpKind, error) {
		return cart.AddItem(ref.ID, quantity, now)
	})
	if err != nil {
		return nil, err
	}

	s.publishCartUpdated(ctx, cart, op)

	s.logger.InfoContext(ctx, "item added to cart",
		slog.String("user_id", userID),
		slog.String("variant_id", variantID),
		slog.Int("quantity", quantity),
	)

	return cart, nil
}

// UpdateItemQuantity replaces the quantity of a cart item. A quantity of 0
// removes the item.
func (s *CartService) UpdateItemQuantity(ctx context.Context, userID, itemID string, quantity int) (*domain.Cart, error) {
	uid, err := parseIdentifier(userID, "user id")
	if err != nil {
		return nil, err
	}
	iid, err := parseIdentifier(itemID, "item id")
	if err != nil {
		return nil, err
	}

	cart, op, err := s.mutate(ctx, uid, func(cart *domain.Cart, now time.Time) (domain.OpKind, error) {
		return cart.UpdateItemQuantity(iid, quantity, now)
	})
	if err != nil {
		return nil, err
	}

	s.publishCartUpdated(ctx, cart, op)

	s.logger.InfoContext(ctx, "cart item quantity updated",
		slog.String("user_id", userID),
		slog.String("item_id", itemID),
		slog.Int("quantity", quantity),
	)

	return cart, nil
}

// RemoveItem deletes an item from the user's cart.
func (s *CartService) RemoveItem(ctx context.Context, userID, itemID string) (*domain.Cart, error) {
	uid, err := parseIdentifier(userID, "user id")
	if err != nil {
		return nil, err
	}
	iid, err := parseIdentifier(itemID, "item id")
	if err != nil {
		return nil, err
	}

	cart, op, err := s.mutate(ctx, uid, func(cart *domain.Cart, now time.Time) (domain.OpKind, error) {
		return cart.RemoveItem(iid, now)
	})
	if err != nil {
		return nil, err
	}

	s.publishCartUpdated(ctx, cart, op)

	s.logger.InfoContext(ctx, "item removed from cart",
		slog.String("user_id", userID),
		slog.String("item_id", itemID),
	)

	return cart, nil
}

// ClearCart empties the user's cart. The cart itself persists; clearing an
// already empty cart is still a recorded mutation.
func (s *CartService) ClearCart(ctx context.Context, userID string) (*domain.Cart, error) {
	uid, err := parseIdentifier(userID, "user id")
	if err != nil {
		return nil, err
	}

	cart, _, err := s.mutate(ctx, uid, func(cart *domain.Cart, now time.Time) (domain.OpKind, error) {
		return cart.Clear(now), nil
	})
	if err != nil {
		return nil, err
	}

	s.publishCartCleared(ctx, cart)

	s.logger.InfoContext(ctx, "cart cleared",
		slog.String("user_id", userID),
	)

	return cart, nil
}

// RemovePurchasedItems prunes the given cart item ids after an order was
// placed. Ids that are already gone are skipped, so redeliveries of the same
// order event settle as no-ops.
func (s *CartService) RemovePurchasedItems(ctx context.Context, userID string, itemIDs []string) error {
	uid, err := parseIdentifier(userID, "user id")
	if err != nil {
		return err
	}

	ids := make([]uuid.UUID, 0, len(itemIDs))
	for _, raw := range itemIDs {
		id, err := parseIdentifier(raw, "cart item id")
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}

	for attempt := 1; attempt <= s.attempts; attempt++ {
		cart, err := s.loadCart(ctx, uid)
		if err != nil {
			return err
		}

		expected := cart.LastUpdatedAt
		removed, op := cart.RemoveItemsByID(ids, time.Now().UTC())
		if removed == 0 {
			return nil
		}

		ok, err := s.repo.Save(ctx, cart, expected)
		if err != nil {
			return fmt.Errorf("save cart: %w", err)
		}
		if ok {
			s.publishCartUpdated(ctx, cart, op)
			s.logger.InfoContext(ctx, "purchased items removed from cart",
				slog.String("user_id", userID),
				slog.Int("removed", removed),
			)
			return nil
		}

		s.logger.DebugContext(ctx, "conditional save lost, retrying",
			slog.String("user_id", userID),
			slog.Int("attempt", attempt),
		)
	}

	return apperrors.Conflict("cart was modified concurrently, please retry")
}

// EnsureCart persists an empty cart for a user unless one already exists.
// No event is emitted; the cart never had content to report.
func (s *CartService) EnsureCart(ctx context.Context, userID string) error {
	uid, err := parseIdentifier(userID, "user id")
	if err != nil {
		return err
	}

	cart, err := s.loadCart(ctx, uid)
	if err != nil {
		return err
	}
	if !cart.LastUpdatedAt.IsZero() {
		return nil
	}

	// Stamp the first token; a persisted cart always carries one.
	cart.Clear(time.Now().UTC())

	ok, err := s.repo.Save(ctx, cart, time.Time{})
	if err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	if !ok {
		// Lost against a concurrent first write; the cart exists either way.
		return nil
	}

	s.logger.InfoContext(ctx, "cart initialized for new user",
		slog.String("user_id", userID),
	)

	return nil
}

// mutate runs one load-validate-apply-save cycle and retries the whole cycle
// when the conditional save reports a token mismatch.
func (s *CartService) mutate(
	ctx context.Context,
	userID uuid.UUID,
	apply func(cart *domain.Cart, now time.Time) (domain.OpKind, error),
) (*domain.Cart, domain.OpKind, error) {
	for attempt := 1; attempt <= s.attempts; attempt++ {
		cart, err := s.loadCart(ctx, userID)
		if err != nil {
			return nil, "", err
		}

		expected := cart.LastUpdatedAt
		op, err := apply(cart, time.Now().UTC())
		if err != nil {
			return nil, "", err
		}

		ok, err := s.repo.Save(ctx, cart, expected)
		if err != nil {
			return nil, "", fmt.Errorf("save cart: %w", err)
		}
		if ok {
			return cart, op, nil
		}

		s.logger.DebugContext(ctx, "conditional save lost, retrying",
			slog.String("user_id", userID.String()),
			slog.Int("attempt", attempt),
		)
	}

	return nil, "", apperrors.Conflict("cart was modified concurrently, please retry")
}

// loadCart loads and validates the user's cart. Invariant violations in the
// stored document abort the operation; the cart is never silently repaired.
func (s *CartService) loadCart(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	cart, err := s.repo.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	if err := cart.Validate(); err != nil {
		s.logger.ErrorContext(ctx, "persisted cart violates invariants",
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()),
		)
		return nil, apperrors.Internal(fmt.Errorf("cart %s is corrupted: %w", userID, err))
	}

	return cart, nil
}

func (s *CartService) publishCartUpdated(ctx context.Context, cart *domain.Cart, op domain.OpKind) {
	if err := s.producer.PublishCartUpdated(ctx, cart, op); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart event",
			slog.String("user_id", cart.UserID.String()),
			slog.String("operation", string(op)),
			slog.String("error", err.Error()),
		)
	}
}

func (s *CartService) publishCartCleared(ctx context.Context, cart *domain.Cart) {
	if err := s.producer.PublishCartCleared(ctx, cart); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart event",
			slog.String("user_id", cart.UserID.String()),
			slog.String("operation", string(domain.OpCleared)),
			slog.String("error", err.Error()),
		)
	}
}

// parseIdentifier validates an externally supplied id. Only the canonical
// 36-character UUID form is accepted; transport-layer typing is never
// trusted. The returned error names the field and the offending value.
func parseIdentifier(raw, field string) (uuid.UUID, error) {
	if len(raw) != 36 {
		return uuid.Nil, apperrors.InvalidInput(fmt.Sprintf("%s must be a UUID, got %q", field, raw))
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.InvalidInput(fmt.Sprintf("%s must be a UUID, got %q", field, raw))
	}
	return id, nil
}
