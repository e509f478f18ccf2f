package cache

import (
	"context"
	"errors"

	"github.com/NitheshChakaravarthySeelan/community-platform/internal/cart/domain"
)

// CartCache is a read-through cache for carts. Every Delete bumps a per-user
// generation; Set only stores a cart read under the current generation, so a
// slow read can never put back a cart that a mutation already replaced.
type CartCache interface {
	Get(ctx context.Context, userID string) (*domain.Cart, error)
	// Generation must be read before the store read whose result goes to Set.
	Generation(ctx context.Context, userID string) (int64, error)
	Set(ctx context.Context, userID string, cart *domain.Cart, gen int64) error
	Delete(ctx context.Context, userID string) error
}

var (
	ErrCacheMiss = errors.New("cache miss")
	// ErrStaleFill is returned by Set when the cart was invalidated after gen was read.
	ErrStaleFill = errors.New("cart invalidated during read")
)

// Noop is used when no Redis address is configured; every read misses.
type Noop struct{}

func (Noop) Get(context.Context, string) (*domain.Cart, error)      { return nil, ErrCacheMiss }
func (Noop) Generation(context.Context, string) (int64, error)      { return 0, nil }
func (Noop) Set(context.Context, string, *domain.Cart, int64) error { return nil }
func (Noop) Delete(context.Context, string) error                   { return nil }
