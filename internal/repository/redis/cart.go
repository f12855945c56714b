package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/MiSArch/shoppingcart/internal/domain"
	apperrors "github.com/MiSArch/shoppingcart/pkg/errors"
)

const keyPrefix = "cart:"

// watchRetries bounds how often a conditional save re-runs its WATCH
// transaction when the key changes between WATCH and EXEC. Exhaustion is
// reported as a token mismatch; the caller re-loads and retries anyway.
const watchRetries = 3

// errTokenMismatch aborts the save transaction when the stored token no
// longer matches the caller's expectation.
var errTokenMismatch = errors.New("cart token mismatch")

// CartRepository implements repository.CartRepository on Redis. Each cart is
// one JSON document under cart:{userID}; the conditional save runs as a
// WATCH + MULTI/EXEC transaction keyed on that document.
type CartRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCartRepository creates a Redis-backed cart repository. A ttl of zero
// keeps carts forever; a positive ttl lets abandoned carts expire, which is
// indistinguishable from an empty cart thanks to implicit creation.
func NewCartRepository(client *redis.Client, ttl time.Duration) *CartRepository {
	return &CartRepository{client: client, ttl: ttl}
}

func cartKey(userID uuid.UUID) string {
	return keyPrefix + userID.String()
}

// Load retrieves the cart for a user, returning a fresh empty cart when no
// document exists.
func (r *CartRepository) Load(ctx context.Context, userID uuid.UUID) (*domain.Cart, error) {
	data, err := r.client.Get(ctx, cartKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.NewCart(userID), nil
		}
		return nil, fmt.Errorf("redis get cart: %v: %w", err, apperrors.ErrServiceUnavail)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart %s: %w", userID, err)
	}

	return &cart, nil
}

// Save writes the cart only if the stored document's LastUpdatedAt still
// equals expectedLastUpdatedAt; a zero expected token requires the document
// to be absent. Reports (false, nil) when the token does not match.
func (r *CartRepository) Save(ctx context.Context, cart *domain.Cart, expectedLastUpdatedAt time.Time) (bool, error) {
	key := cartKey(cart.UserID)

	data, err := json.Marshal(cart)
	if err != nil {
		return false, fmt.Errorf("marshal cart %s: %w", cart.UserID, err)
	}

	save := func(tx *redis.Tx) error {
		stored, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			if !expectedLastUpdatedAt.IsZero() {
				return errTokenMismatch
			}
		case err != nil:
			return err
		default:
			if expectedLastUpdatedAt.IsZero() {
				return errTokenMismatch
			}
			// Only the token matters for the comparison.
			var current struct {
				LastUpdatedAt time.Time `json:"last_updated_at"`
			}
			if err := json.Unmarshal(stored, &current); err != nil {
				return fmt.Errorf("unmarshal stored cart %s: %w", cart.UserID, err)
			}
			if !current.LastUpdatedAt.Equal(expectedLastUpdatedAt) {
				return errTokenMismatch
			}
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, r.ttl)
			return nil
		})
		return err
	}

	// TxFailedErr means another writer touched the key between WATCH and
	// EXEC; re-running re-reads the document and re-checks the token.
	for attempt := 0; attempt < watchRetries; attempt++ {
		err := r.client.Watch(ctx, save, key)
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, errTokenMismatch):
			return false, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		default:
			return false, fmt.Errorf("redis save cart: %v: %w", err, apperrors.ErrServiceUnavail)
		}
	}

	return false, nil
}

// Delete removes the cart document. Deleting an absent cart is a no-op.
func (r *CartRepository) Delete(ctx context.Context, userID uuid.UUID) error {
	if err := r.client.Del(ctx, cartKey(userID)).Err(); err != nil {
		return fmt.Errorf("redis del cart: %v: %w", err, apperrors.ErrServiceUnavail)
	}
	return nil
}
