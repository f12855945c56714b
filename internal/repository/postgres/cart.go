package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MiSArch/shoppingcart/internal/domain"
	"github.com/MiSArch/shoppingcart/pkg/database"
	apperrors "github.com/MiSArch/shoppingcart/pkg/errors"
)

const (
	selectCartSQL = `SELECT items, last_updated_at FROM carts WHERE user_id = $1`

	insertCartSQL = `INSERT INTO carts (user_id, items, last_updated_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id) DO NOTHING`

	updateCartSQL = `UPDATE carts
		 SET items = $2, last_updated_at = $3
		 WHERE user_id = $1 AND last_updated_at = $4`

	deleteCartSQL = `DELETE FROM carts WHERE user_id = $1`
)

// CartRepository implements repository.CartRepository on PostgreSQL. Each
// cart is one row in carts with its items as a jsonb document. The
// conditional save folds the token check into the statement itself
// (ON CONFLICT DO NOTHING for first writes, last_updated_at in the WHERE
// clause for updates), so check and write are a single atomic statement and
// the affected row count decides the outcome.
type CartRepository struct {
	db database.DBTX
}

// NewCartRepository creates a PostgreSQL-backed cart repository.
func NewCartRepository(db database.DBTX) *CartRepository {
	return &CartRepository{db: db}
}

// Load retrieves the cart for a user, returning a fresh empty cart when no
// row exists.
func (r *CartRepository) Load(ctx context.Context, userID uuid.UUID) (_ *domain.Cart, err error) {
	ctx, end := database.TraceQuery(ctx, "LoadCart", selectCartSQL)
	defer func() { end(err) }()

	var (
		itemsJSON     []byte
		lastUpdatedAt time.Time
	)

	err = r.db.QueryRow(ctx, selectCartSQL, userID).Scan(&itemsJSON, &lastUpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.NewCart(userID), nil
		}
		return nil, fmt.Errorf("select cart: %v: %w", err, apperrors.ErrServiceUnavail)
	}

	cart := &domain.Cart{
		UserID:        userID,
		LastUpdatedAt: lastUpdatedAt.UTC(),
	}
	if err = json.Unmarshal(itemsJSON, &cart.Items); err != nil {
		return nil, fmt.Errorf("unmarshal cart items %s: %w", userID, err)
	}

	return cart, nil
}

// Save writes the cart only if the stored row's last_updated_at still equals
// expectedLastUpdatedAt; a zero expected token inserts and loses against any
// existing row. Reports (false, nil) when the token does not match.
func (r *CartRepository) Save(ctx context.Context, cart *domain.Cart, expectedLastUpdatedAt time.Time) (_ bool, err error) {
	itemsJSON, err := json.Marshal(cart.Items)
	if err != nil {
		return false, fmt.Errorf("marshal cart items %s: %w", cart.UserID, err)
	}

	stmt := updateCartSQL
	if expectedLastUpdatedAt.IsZero() {
		stmt = insertCartSQL
	}
	ctx, end := database.TraceQuery(ctx, "SaveCart", stmt)
	defer func() { end(err) }()

	var ct pgconn.CommandTag
	if expectedLastUpdatedAt.IsZero() {
		ct, err = r.db.Exec(ctx, insertCartSQL,
			cart.UserID, itemsJSON, cart.LastUpdatedAt,
		)
	} else {
		ct, err = r.db.Exec(ctx, updateCartSQL,
			cart.UserID, itemsJSON, cart.LastUpdatedAt, expectedLastUpdatedAt,
		)
	}
	if err != nil {
		return false, fmt.Errorf("save cart: %v: %w", err, apperrors.ErrServiceUnavail)
	}

	return ct.RowsAffected() == 1, nil
}

// Delete removes the cart row. Deleting an absent cart is a no-op.
func (r *CartRepository) Delete(ctx context.Context, userID uuid.UUID) (err error) {
	ctx, end := database.TraceQuery(ctx, "DeleteCart", deleteCartSQL)
	defer func() { end(err) }()

	if _, err = r.db.Exec(ctx, deleteCartSQL, userID); err != nil {
		return fmt.Errorf("delete cart: %v: %w", err, apperrors.ErrServiceUnavail)
	}
	return nil
}
