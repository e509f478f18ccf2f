package repository

import (
	"context"
	"errors"

	"github.com/NitheshChakaravarthySeelan/community-platform/internal/cart/domain"
)

var ErrCartNotFound = errors.New("cart not found")

// CartRepository persists one cart per user.
// Save inserts when the cart has no id and otherwise upserts on user id;
// concurrent writers race and the last write wins.
type CartRepository interface {
	FindByUser(ctx context.Context, userID string) (*domain.Cart, error)
	Save(ctx context.Context, cart *domain.Cart) (*domain.Cart, error)
}
