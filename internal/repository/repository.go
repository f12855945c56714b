package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/MiSArch/shoppingcart/internal/domain"
)

// CartRepository defines the persistence contract for cart aggregates.
//
// Save is the single concurrency-control primitive: the write succeeds only
// if the persisted cart's LastUpdatedAt still equals the expected token. A
// zero expected token means the cart must not be persisted yet. On a token
// mismatch Save reports (false, nil) and writes nothing; the caller re-loads
// and re-applies its mutation.
type CartRepository interface {
	// Load retrieves the cart for a user. Carts are created implicitly:
	// when nothing is persisted, Load returns a fresh empty cart with a
	// zero LastUpdatedAt rather than an error.
	Load(ctx context.Context, userID uuid.UUID) (*domain.Cart, error)

	// Save conditionally persists the cart (see type doc).
	Save(ctx context.Context, cart *domain.Cart, expectedLastUpdatedAt time.Time) (bool, error)

	// Delete removes the persisted cart. Deleting an absent cart is not an
	// error. Not used by the public cart operations; Clear persists an
	// empty cart instead.
	Delete(ctx context.Context, userID uuid.UUID) error
}
