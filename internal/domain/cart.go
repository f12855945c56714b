package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/MiSArch/shoppingcart/pkg/errors"
)

// OpKind identifies which mutation a cart operation performed, so the
// caller can emit the matching domain event.
type OpKind string

const (
	OpItemAdded       OpKind = "item_added"
	OpQuantityUpdated OpKind = "quantity_updated"
	OpItemRemoved     OpKind = "item_removed"
	OpItemsPurchased  OpKind = "items_purchased"
	OpCleared         OpKind = "cleared"
)

// CartItem is one product-variant selection within a cart. The variant id
// is a foreign reference into the product catalog; the cart never stores
// price, name, or other catalog-owned data.
type CartItem struct {
	ID        uuid.UUID `json:"id"`
	VariantID uuid.UUID `json:"variant_id"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
}

// Cart is the per-user shopping cart aggregate: plain data plus pure
// mutation logic. Persistence and event emission belong to the caller. A
// Cart value is owned by a single operation at a time and is not safe for
// concurrent use; concurrency control happens at the repository via the
// LastUpdatedAt token.
type Cart struct {
	UserID        uuid.UUID  `json:"user_id"`
	Items         []CartItem `json:"items"`
	LastUpdatedAt time.Time  `json:"last_updated_at"`
}

// NewCart returns an empty cart for the given user. The zero LastUpdatedAt
// marks a cart that has never been persisted.
func NewCart(userID uuid.UUID) *Cart {
	return &Cart{
		UserID: userID,
		Items:  []CartItem{},
	}
}

// AddItem puts quantity units of a variant into the cart. If the variant is
// already present the quantities merge into the existing line (AddedAt keeps
// its original value) and the operation reports OpQuantityUpdated; otherwise
// a new line with a fresh item id is appended and it reports OpItemAdded.
// A quantity below 1 is rejected with the cart unchanged.
func (c *Cart) AddItem(variantID uuid.UUID, quantity int, now time.Time) (OpKind, error) {
	if quantity < 1 {
		return "", apperrors.InvalidInput(fmt.Sprintf("quantity must be at least 1, got %d", quantity))
	}

	for i := range c.Items {
		if c.Items[i].VariantID == variantID {
			c.Items[i].Quantity += quantity
			c.touch(now)
			return OpQuantityUpdated, nil
		}
	}

	c.Items = append(c.Items, CartItem{
		ID:        uuid.New(),
		VariantID: variantID,
		Quantity:  quantity,
		AddedAt:   normalize(now),
	})
	c.touch(now)
	return OpItemAdded, nil
}

// UpdateItemQuantity replaces the quantity of an existing item. A quantity
// of 0 removes the item; a negative quantity is rejected with the cart
// unchanged.
func (c *Cart) UpdateItemQuantity(itemID uuid.UUID, quantity int, now time.Time) (OpKind, error) {
	if quantity < 0 {
		return "", apperrors.InvalidInput(fmt.Sprintf("quantity must not be negative, got %d", quantity))
	}

	i := c.findItem(itemID)
	if i < 0 {
		return "", apperrors.NotFound("cart item", itemID.String())
	}

	if quantity == 0 {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
		c.touch(now)
		return OpItemRemoved, nil
	}

	c.Items[i].Quantity = quantity
	c.touch(now)
	return OpQuantityUpdated, nil
}

// RemoveItem deletes an item from the cart.
func (c *Cart) RemoveItem(itemID uuid.UUID, now time.Time) (OpKind, error) {
	i := c.findItem(itemID)
	if i < 0 {
		return "", apperrors.NotFound("cart item", itemID.String())
	}

	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	c.touch(now)
	return OpItemRemoved, nil
}

// Clear empties the cart. The aggregate itself persists (an empty cart is a
// valid state, not an absent one) and the token advances even when there was
// nothing to remove, so repeated clears still record as mutations.
func (c *Cart) Clear(now time.Time) OpKind {
	c.Items = []CartItem{}
	c.touch(now)
	return OpCleared
}

// RemoveItemsByID deletes every item whose id appears in itemIDs. Ids that
// match nothing are skipped, not errors, so the operation is idempotent
// under event redelivery. The token advances only when at least one item was
// actually removed.
func (c *Cart) RemoveItemsByID(itemIDs []uuid.UUID, now time.Time) (int, OpKind) {
	if len(itemIDs) == 0 || len(c.Items) == 0 {
		return 0, OpItemsPurchased
	}

	drop := make(map[uuid.UUID]struct{}, len(itemIDs))
	for _, id := range itemIDs {
		drop[id] = struct{}{}
	}

	kept := c.Items[:0]
	removed := 0
	for _, item := range c.Items {
		if _, ok := drop[item.ID]; ok {
			removed++
			continue
		}
		kept = append(kept, item)
	}

	if removed == 0 {
		return 0, OpItemsPurchased
	}

	c.Items = kept
	c.touch(now)
	return removed, OpItemsPurchased
}

// Validate checks the structural invariants every persisted cart must hold:
// variant ids pairwise distinct and every quantity at least 1. A violation
// means the stored document was corrupted outside this service; callers must
// abort rather than repair.
func (c *Cart) Validate() error {
	seen := make(map[uuid.UUID]struct{}, len(c.Items))
	for _, item := range c.Items {
		if item.Quantity < 1 {
			return fmt.Errorf("cart item %s has quantity %d", item.ID, item.Quantity)
		}
		if _, ok := seen[item.VariantID]; ok {
			return fmt.Errorf("cart contains duplicate items for variant %s", item.VariantID)
		}
		seen[item.VariantID] = struct{}{}
	}
	return nil
}

// ItemCount returns the number of distinct items in the cart.
func (c *Cart) ItemCount() int {
	return len(c.Items)
}

// TotalQuantity returns the summed quantity across all items.
func (c *Cart) TotalQuantity() int {
	var total int
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

func (c *Cart) findItem(itemID uuid.UUID) int {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			return i
		}
	}
	return -1
}

// touch advances LastUpdatedAt. The new token is now when the clock moved
// forward, and the previous token plus one microsecond otherwise, so every
// accepted mutation strictly advances the token even under coarse or skewed
// clocks.
func (c *Cart) touch(now time.Time) {
	next := normalize(now)
	if !next.After(c.LastUpdatedAt) {
		next = c.LastUpdatedAt.Add(time.Microsecond)
	}
	c.LastUpdatedAt = next
}

// normalize forces UTC and microsecond precision so timestamps round-trip
// identically through JSON documents and timestamptz columns, keeping the
// token comparison a plain equality check in every backend.
func normalize(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
