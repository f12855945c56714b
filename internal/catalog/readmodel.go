package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// knownVariantsKey is the Redis set holding every variant id the catalog has
// announced through product-variant.created events.
const knownVariantsKey = "variants:known"

// ReadModel tracks which product variants exist. It stores bare variant ids
// only, not catalog data, so there is nothing in it to invalidate; a hit
// confirms existence without a catalog round trip.
type ReadModel struct {
	client *redis.Client
}

// NewReadModel creates a Redis-backed variant read model.
func NewReadModel(client *redis.Client) *ReadModel {
	return &ReadModel{client: client}
}

// Add records a variant id as existing.
func (m *ReadModel) Add(ctx context.Context, variantID uuid.UUID) error {
	if err := m.client.SAdd(ctx, knownVariantsKey, variantID.String()).Err(); err != nil {
		return fmt.Errorf("add variant to read model: %w", err)
	}
	return nil
}

// Contains reports whether a variant id is known to exist.
func (m *ReadModel) Contains(ctx context.Context, variantID uuid.UUID) (bool, error) {
	known, err := m.client.SIsMember(ctx, knownVariantsKey, variantID.String()).Result()
	if err != nil {
		return false, fmt.Errorf("check variant read model: %w", err)
	}
	return known, nil
}
